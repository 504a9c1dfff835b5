package switcher_test

import (
	"testing"
	"time"

	"github.com/petervdpas/mailshell/internal/accounts"
	"github.com/petervdpas/mailshell/internal/config"
	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/surface"
	"github.com/petervdpas/mailshell/internal/surface/surfacetest"
	"github.com/petervdpas/mailshell/internal/switcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	sched  *sched.Manual
	engine *surfacetest.Engine
	host   *surfacetest.Host
	bus    *notify.Bus
	pool   *surface.Pool
	sw     *switcher.Switcher
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cfg := config.Default()
	cfg.Accounts = append(cfg.Accounts, config.Account{
		Name:       "Shared",
		SessionKey: "gmail-3",
		URL:        "https://mail.google.com/mail/u/2/#inbox",
	})
	reg, err := accounts.FromConfig(cfg)
	require.NoError(t, err)

	r := &rig{
		sched:  sched.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		engine: &surfacetest.Engine{},
		host:   &surfacetest.Host{Width: 1200, Height: 800},
		bus:    notify.NewBus(50),
	}
	r.pool = surface.NewPool(surface.PoolConfig{
		Registry:  reg,
		Engine:    r.engine,
		Scheduler: r.sched,
		Publisher: r.bus,
	})
	r.sw = switcher.New(switcher.Config{
		Pool:         r.pool,
		Host:         r.host,
		Scheduler:    r.sched,
		Publisher:    r.bus,
		SidebarWidth: switcher.DefaultSidebarWidth,
		DetachDelay:  switcher.DefaultDetachDelay,
	})
	return r
}

// ready creates surface i and lets it finish its first load now.
func (r *rig) ready(t *testing.T, i int) (*surface.Surface, *surfacetest.Contents) {
	t.Helper()
	s, err := r.pool.Get(i)
	require.NoError(t, err)
	c := r.engine.For(s.ID())
	c.Ready()
	return s, c
}

func (r *rig) switchTo(t *testing.T, i int) {
	t.Helper()
	require.NoError(t, r.sw.SwitchTo(i))
}

func attachedIndices(r *rig) []int {
	var out []int
	for i := 0; i < 3; i++ {
		if s, ok := r.pool.Peek(i); ok && s.Attached() {
			out = append(out, i)
		}
	}
	return out
}

func TestColdSwitchWaitsForDOMReady(t *testing.T) {
	r := newRig(t)
	r.switchTo(t, 0)

	assert.Empty(t, r.host.Attached)
	_, ok := r.sw.CurrentIndex()
	assert.False(t, ok)

	s, _ := r.pool.Peek(0)
	c := r.engine.For(s.ID())
	c.Events.OnDOMReady()

	idx, ok := r.sw.CurrentIndex()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, surface.Rect{X: 60, Y: 0, Width: 1140, Height: 800}, c.Bounds)
	assert.Equal(t, 1, c.Count(surfacetest.OpFocus))
	assert.Equal(t, switcher.Idle, r.sw.Phase())
	// Never finished loading, so the switch asks for a fresh load as well.
	assert.Len(t, c.Loads(), 2)
}

func TestSwitchFreshnessTiers(t *testing.T) {
	cases := []struct {
		name    string
		age     time.Duration
		loads   int
		reloads int
	}{
		{"5 minutes", 5 * time.Minute, 0, 0},
		{"15 minutes", 15 * time.Minute, 0, 1},
		{"35 minutes", 35 * time.Minute, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t)
			_, c := r.ready(t, 1)
			r.sched.Advance(tc.age)
			c.Reset()

			r.switchTo(t, 1)

			assert.Equal(t, tc.loads, c.Count(surfacetest.OpLoad))
			assert.Equal(t, tc.reloads, c.Count(surfacetest.OpReload))
			idx, _ := r.sw.CurrentIndex()
			assert.Equal(t, 1, idx)
		})
	}
}

func TestSwitchLoadsBlankSurface(t *testing.T) {
	r := newRig(t)
	_, c := r.ready(t, 0)
	c.Events.OnNavigated("about:blank")
	c.Reset()

	r.switchTo(t, 0)
	assert.Equal(t, []string{"https://mail.google.com/mail/u/0/#inbox"}, c.Loads())
}

func TestAttachBeforeDetach(t *testing.T) {
	r := newRig(t)
	a, ca := r.ready(t, 0)
	b, cb := r.ready(t, 1)

	r.switchTo(t, 0)
	r.switchTo(t, 1)

	assert.Equal(t, []string{"attach:" + ca.ID, "attach:" + cb.ID}, r.host.Log)
	assert.Equal(t, switcher.Settling, r.sw.Phase())
	assert.True(t, a.Attached())
	assert.True(t, b.Attached())

	r.sched.Advance(49 * time.Millisecond)
	assert.Len(t, r.host.Attached, 2)

	r.sched.Advance(time.Millisecond)
	assert.Equal(t, []string{"attach:" + ca.ID, "attach:" + cb.ID, "detach:" + ca.ID}, r.host.Log)
	assert.Equal(t, switcher.Idle, r.sw.Phase())
	assert.Equal(t, []int{1}, attachedIndices(r))
}

func TestRapidSwitchesNeverAttachMoreThanTwo(t *testing.T) {
	r := newRig(t)
	_, ca := r.ready(t, 0)
	_, cb := r.ready(t, 1)
	_, cc := r.ready(t, 2)

	r.switchTo(t, 0)
	r.switchTo(t, 1)
	assert.LessOrEqual(t, len(r.host.Attached), 2)
	r.switchTo(t, 2)
	assert.LessOrEqual(t, len(r.host.Attached), 2)

	assert.Equal(t, []string{
		"attach:" + ca.ID,
		"attach:" + cb.ID,
		"detach:" + ca.ID,
		"attach:" + cc.ID,
	}, r.host.Log)

	r.sched.Advance(time.Second)
	assert.Equal(t, []int{2}, attachedIndices(r))
	assert.Equal(t, "detach:"+cb.ID, r.host.Log[len(r.host.Log)-1])
	assert.Len(t, r.host.Attached, 1)
}

func TestSwitchBackWhileSettling(t *testing.T) {
	r := newRig(t)
	_, ca := r.ready(t, 0)
	_, cb := r.ready(t, 1)

	r.switchTo(t, 0)
	r.switchTo(t, 1)
	r.switchTo(t, 0)
	r.sched.Advance(time.Second)

	assert.Equal(t, []int{0}, attachedIndices(r))
	assert.Equal(t, []surface.WebContents{ca}, r.host.Attached)
	assert.NotContains(t, r.host.Log, "detach:"+ca.ID)
	assert.Contains(t, r.host.Log, "detach:"+cb.ID)
}

func TestSwitchToSameIndexDoesNotDetach(t *testing.T) {
	r := newRig(t)
	r.ready(t, 0)

	r.switchTo(t, 0)
	r.switchTo(t, 0)
	r.sched.Advance(time.Second)

	assert.Equal(t, switcher.Idle, r.sw.Phase())
	assert.Equal(t, []int{0}, attachedIndices(r))
	assert.Len(t, r.host.Attached, 1)
}

func TestPendingColdSwitchIsSuperseded(t *testing.T) {
	r := newRig(t)
	r.switchTo(t, 0)
	cold, _ := r.pool.Peek(0)

	r.ready(t, 1)
	r.switchTo(t, 1)

	r.engine.For(cold.ID()).Events.OnDOMReady()

	idx, _ := r.sw.CurrentIndex()
	assert.Equal(t, 1, idx)
	assert.False(t, cold.Attached())
}

func TestSwitchOutOfRange(t *testing.T) {
	r := newRig(t)
	r.ready(t, 0)
	r.switchTo(t, 0)

	err := r.sw.SwitchTo(99)
	assert.ErrorIs(t, err, accounts.ErrIndexOutOfRange)
	idx, _ := r.sw.CurrentIndex()
	assert.Equal(t, 0, idx)
}

func TestRelayoutOnResize(t *testing.T) {
	r := newRig(t)
	_, c := r.ready(t, 0)
	r.switchTo(t, 0)

	r.host.Width, r.host.Height = 1000, 700
	r.sw.Relayout()
	assert.Equal(t, surface.Rect{X: 60, Y: 0, Width: 940, Height: 700}, c.Bounds)

	r.host.Width = 40
	r.sw.Relayout()
	assert.Equal(t, 0, c.Bounds.Width)

	r.host.Width = 1000
	r.sw.SetSidebarWidth(80)
	assert.Equal(t, surface.Rect{X: 80, Y: 0, Width: 920, Height: 700}, c.Bounds)
}

func TestDestroyedCurrentIsNotReported(t *testing.T) {
	r := newRig(t)
	s, _ := r.ready(t, 0)
	r.switchTo(t, 0)

	s.Destroy()
	_, ok := r.sw.Current()
	assert.False(t, ok)

	// Switching again transparently recreates it.
	r.switchTo(t, 0)
	fresh, _ := r.pool.Peek(0)
	assert.NotSame(t, s, fresh)
}

func TestSwitchPublishesEvent(t *testing.T) {
	r := newRig(t)
	r.ready(t, 1)
	r.switchTo(t, 1)

	hist := r.bus.History()
	last := hist[len(hist)-1]
	assert.Equal(t, notify.Switched, last.Kind)
	assert.Equal(t, 1, last.Account)
	assert.Equal(t, "Work", last.Name)
}

func TestRelease(t *testing.T) {
	r := newRig(t)
	r.ready(t, 0)
	r.ready(t, 1)
	r.switchTo(t, 0)
	r.switchTo(t, 1)

	r.sw.Release()
	r.sched.Advance(time.Second)

	_, ok := r.sw.Current()
	assert.False(t, ok)
	assert.Empty(t, attachedIndices(r))
	assert.Equal(t, switcher.Idle, r.sw.Phase())
}
