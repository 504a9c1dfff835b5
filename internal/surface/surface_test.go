package surface_test

import (
	"testing"
	"time"

	"github.com/petervdpas/mailshell/internal/accounts"
	"github.com/petervdpas/mailshell/internal/config"
	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/surface"
	"github.com/petervdpas/mailshell/internal/surface/surfacetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	personal = "https://mail.google.com/mail/u/0/#inbox"
	work     = "https://mail.google.com/mail/u/1/#inbox"
)

type fixture struct {
	sched  *sched.Manual
	engine *surfacetest.Engine
	opener *surfacetest.Opener
	bus    *notify.Bus
	pool   *surface.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := accounts.FromConfig(config.Default())
	require.NoError(t, err)

	f := &fixture{
		sched:  sched.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		engine: &surfacetest.Engine{},
		opener: &surfacetest.Opener{},
		bus:    notify.NewBus(50),
	}
	f.pool = surface.NewPool(surface.PoolConfig{
		Registry:  reg,
		Engine:    f.engine,
		Scheduler: f.sched,
		Publisher: f.bus,
		Opener:    f.opener,
	})
	return f
}

func (f *fixture) surface(t *testing.T, i int) (*surface.Surface, *surfacetest.Contents) {
	t.Helper()
	s, err := f.pool.Get(i)
	require.NoError(t, err)
	return s, f.engine.For(s.ID())
}

func kinds(events []notify.Event) []notify.Kind {
	var out []notify.Kind
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestNewSurfaceStartsLoadingHome(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 1)

	assert.Equal(t, surface.Loading, s.State())
	assert.Equal(t, []string{work}, c.Loads())
	assert.Equal(t, "persist:gmail-2", c.Partition)
	assert.Equal(t, work, s.Address())
	assert.False(t, s.DOMReady())
}

func TestLoadFinishedStampsTime(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)

	f.sched.Advance(3 * time.Second)
	c.Ready()

	assert.Equal(t, surface.Loaded, s.State())
	assert.Equal(t, f.sched.Now(), s.LastLoad())
	assert.Contains(t, kinds(f.bus.History()), notify.LoadFinished)
}

func TestNeverLoadedIsAlwaysStale(t *testing.T) {
	f := newFixture(t)
	s, _ := f.surface(t, 0)

	assert.True(t, s.IsStale(0))
	assert.True(t, s.IsStale(24*time.Hour))
	assert.Equal(t, int64(-1), s.Status().AgeSec)
}

func TestIsStaleUsesThreshold(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	c.Ready()

	f.sched.Advance(10 * time.Minute)
	assert.False(t, s.IsStale(10*time.Minute), "exactly at the threshold is still fresh")
	assert.True(t, s.IsStale(9*time.Minute))
	assert.Equal(t, int64(600), s.Status().AgeSec)
}

func TestTransientFailuresEachScheduleARetry(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	c.Reset()

	for i := 0; i < 3; i++ {
		c.Events.OnLoadFailed(surface.ErrNameNotResolved, "https://mail.google.com/mail/u/0/?other")
	}
	assert.Equal(t, surface.Failed, s.State())

	retries := f.sched.PendingFor(sched.RetryLoad)
	require.Len(t, retries, 3)
	for _, r := range retries {
		assert.Equal(t, s.ID(), r.Key.SurfaceID)
	}

	f.sched.Advance(1999 * time.Millisecond)
	assert.Empty(t, c.Loads())

	f.sched.Advance(time.Millisecond)
	assert.Equal(t, []string{personal, personal, personal}, c.Loads())
	assert.Equal(t, surface.Loading, s.State())
}

func TestRetryRearmsOnEveryFailure(t *testing.T) {
	f := newFixture(t)
	_, c := f.surface(t, 0)
	c.Reset()

	c.Events.OnLoadFailed(surface.ErrInternetDisconnected, personal)
	f.sched.Advance(2 * time.Second)
	c.Events.OnLoadFailed(surface.ErrServiceUnavailable, personal)
	f.sched.Advance(2 * time.Second)

	assert.Equal(t, []string{personal, personal}, c.Loads())
}

func TestNonTransientFailureOnlyLogs(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	c.Reset()

	c.Events.OnLoadFailed(surface.ErrOther, personal)
	assert.Equal(t, surface.Failed, s.State())
	assert.Empty(t, f.sched.Pending())

	f.sched.Advance(time.Minute)
	assert.Empty(t, c.Calls)
}

func TestRetryIsSkippedOnceDestroyed(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	c.Reset()

	c.Events.OnLoadFailed(surface.ErrNameNotResolved, personal)
	s.Destroy()
	f.sched.Advance(5 * time.Second)

	assert.Empty(t, c.Loads())
	assert.Equal(t, 1, c.Count(surfacetest.OpDestroy))
}

func TestUnresponsiveReloads(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	c.Ready()
	c.Reset()

	c.Events.OnUnresponsive()
	assert.Equal(t, 1, c.Count(surfacetest.OpReload))
	assert.Equal(t, surface.Loading, s.State())
	assert.False(t, s.Destroyed())
}

func TestProcessGoneLoadsHomeAfterDelay(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 1)
	c.Ready()
	c.Events.OnNavigated("https://mail.google.com/mail/u/1/#label/receipts")
	c.Reset()

	c.Events.OnProcessGone("crashed")
	assert.Equal(t, surface.Failed, s.State())
	f.sched.Advance(999 * time.Millisecond)
	assert.Empty(t, c.Loads())

	f.sched.Advance(time.Millisecond)
	assert.Equal(t, []string{work}, c.Loads())
	assert.Same(t, s, mustGet(t, f.pool, 1), "surface object survives a process crash")
}

func TestNavigatedToSigninPublishesReauth(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)

	c.Events.OnNavigated("https://accounts.google.com/o/oauth2/auth?x=signin")
	assert.NotContains(t, kinds(f.bus.History()), notify.ReauthNeeded)

	c.Events.OnNavigated("https://accounts.google.com/v3/signin/identifier")
	hist := f.bus.History()
	require.Equal(t, notify.ReauthNeeded, hist[len(hist)-1].Kind)
	assert.Equal(t, "Personal", hist[len(hist)-1].Name)
	assert.Equal(t, "https://accounts.google.com/v3/signin/identifier", s.Address())
}

func TestNavigationPolicy(t *testing.T) {
	f := newFixture(t)
	_, c := f.surface(t, 0)

	assert.True(t, c.Events.OnNavigationRequest("https://mail.google.com/mail/u/0/#sent", false))
	assert.True(t, c.Events.OnNavigationRequest("https://accounts.google.com/AddSession", true))
	assert.Empty(t, f.opener.Opened)

	assert.False(t, c.Events.OnNavigationRequest("https://example.com/newsletter", false))
	assert.False(t, c.Events.OnNavigationRequest("https://docs.example.org/", true))
	assert.Equal(t, []string{"https://example.com/newsletter", "https://docs.example.org/"}, f.opener.Opened)
}

func TestLoadRefusesForeignAddress(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	c.Reset()

	s.Load("https://example.com/")
	assert.Empty(t, c.Loads())
	assert.Equal(t, personal, s.Address())
}

func TestReloadWithoutAddressLoadsHome(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	c.Events.OnNavigated("about:blank")
	c.Reset()

	s.Reload()
	assert.Equal(t, []string{personal}, c.Loads())
	assert.Zero(t, c.Count(surfacetest.OpReload))
}

func TestDestroyedSurfaceIgnoresEverything(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)
	s.Destroy()
	c.Reset()

	s.Load(personal)
	s.Reload()
	s.Focus()
	c.Events.OnUnresponsive()
	c.Events.OnProcessGone("killed")
	c.Events.OnLoadFinished()

	assert.Empty(t, c.Calls)
	assert.Empty(t, f.sched.Pending())
	assert.Equal(t, surface.Destroyed, s.State())
}

func TestWhenReady(t *testing.T) {
	f := newFixture(t)
	s, c := f.surface(t, 0)

	ran := 0
	s.WhenReady(func() { ran++ })
	s.WhenReady(func() { ran++ })
	assert.Zero(t, ran)

	c.Events.OnDOMReady()
	assert.Equal(t, 2, ran)

	s.WhenReady(func() { ran++ })
	assert.Equal(t, 3, ran)

	c.Events.OnDOMReady()
	assert.Equal(t, 3, ran, "callbacks fire once")
}

func TestErrorKindFromCode(t *testing.T) {
	assert.Equal(t, surface.ErrInternetDisconnected, surface.ErrorKindFromCode(-106))
	assert.Equal(t, surface.ErrNameNotResolved, surface.ErrorKindFromCode(-105))
	assert.Equal(t, surface.ErrServiceUnavailable, surface.ErrorKindFromCode(-501))
	assert.Equal(t, surface.ErrOther, surface.ErrorKindFromCode(-3))
	assert.False(t, surface.ErrOther.Transient())
}

func mustGet(t *testing.T, p *surface.Pool, i int) *surface.Surface {
	t.Helper()
	s, err := p.Get(i)
	require.NoError(t, err)
	return s
}
