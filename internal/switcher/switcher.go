// Package switcher decides which account surface occupies the window's
// visible region and performs the swap.
//
// A swap attaches the incoming surface before detaching the outgoing one so
// the window never shows an empty frame:
//
//	Idle --SwitchTo--> Attaching --(old differs)--> Settling --detach delay--> Idle
//
// While Settling both surfaces are attached. A new switch during Settling
// detaches the old surface at once, so at most two are ever attached and
// exactly one is once the switcher is Idle.
package switcher

import (
	"time"

	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/surface"
	"github.com/petervdpas/mailshell/internal/util"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("switcher")

// Host is the window the surfaces are shown in.
type Host interface {
	// ContentSize is the current size of the window's content area.
	ContentSize() (width, height int)
	Attach(surface.WebContents)
	Detach(surface.WebContents)
}

type Phase int

const (
	Idle Phase = iota
	Attaching
	Settling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Attaching:
		return "attaching"
	case Settling:
		return "settling"
	default:
		return "unknown"
	}
}

// Thresholds are the staleness limits applied when a surface is shown.
// Older than Reload: reload in place. Older than FreshLoad (or blank):
// navigate back to the account's home.
type Thresholds struct {
	Reload    time.Duration
	FreshLoad time.Duration
}

var DefaultThresholds = Thresholds{
	Reload:    10 * time.Minute,
	FreshLoad: 30 * time.Minute,
}

const (
	DefaultSidebarWidth = 60
	DefaultDetachDelay  = 50 * time.Millisecond
)

type Config struct {
	Pool         *surface.Pool
	Host         Host
	Scheduler    sched.Scheduler
	Publisher    notify.Publisher
	SidebarWidth int
	DetachDelay  time.Duration
	Thresholds   Thresholds
}

type Switcher struct {
	pool  *surface.Pool
	host  Host
	sched sched.Scheduler
	pub   notify.Publisher

	sidebar     int
	detachDelay time.Duration
	thresholds  Thresholds

	phase    Phase
	current  *surface.Surface
	settling *surface.Surface

	// Generation counters. A deferred step whose generation is no longer
	// current has been superseded and does nothing.
	switchGen uint64
	settleGen uint64
}

func New(cfg Config) *Switcher {
	pub := cfg.Publisher
	if pub == nil {
		pub = notify.Discard{}
	}
	th := cfg.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds
	}
	return &Switcher{
		pool:        cfg.Pool,
		host:        cfg.Host,
		sched:       cfg.Scheduler,
		pub:         pub,
		sidebar:     cfg.SidebarWidth,
		detachDelay: cfg.DetachDelay,
		thresholds:  th,
	}
}

func (w *Switcher) SetThresholds(th Thresholds) { w.thresholds = th }
func (w *Switcher) SetDetachDelay(d time.Duration) {
	w.detachDelay = d
}

// SetSidebarWidth changes the leading-edge inset and re-lays out the
// attached surface.
func (w *Switcher) SetSidebarWidth(px int) {
	w.sidebar = px
	w.Relayout()
}

func (w *Switcher) Phase() Phase { return w.phase }

// Current returns the attached surface, if any and still alive.
func (w *Switcher) Current() (*surface.Surface, bool) {
	if w.current == nil || w.current.Destroyed() {
		return nil, false
	}
	return w.current, true
}

// CurrentIndex returns the account index of the attached surface.
func (w *Switcher) CurrentIndex() (int, bool) {
	s, ok := w.Current()
	if !ok {
		return -1, false
	}
	return s.Index(), true
}

// Region is the rectangle surfaces are shown in: the window content area
// minus the sidebar on the leading edge.
func (w *Switcher) Region() surface.Rect {
	width, height := w.host.ContentSize()
	return surface.Rect{
		X:      w.sidebar,
		Y:      0,
		Width:  max(0, width-w.sidebar),
		Height: max(0, height),
	}
}

// SwitchTo shows the surface for index, creating it if needed. A surface that
// has not reached its first DOM-ready is shown once it does; a later
// SwitchTo supersedes a switch still waiting.
func (w *Switcher) SwitchTo(index int) error {
	s, err := w.pool.Get(index)
	if err != nil {
		return err
	}

	w.switchGen++
	gen := w.switchGen
	if !s.DOMReady() {
		log.Infof("%s: waiting for DOM ready before switching", s.Account().Name)
	}
	s.WhenReady(func() {
		if gen != w.switchGen {
			log.Debugf("%s: switch superseded", s.Account().Name)
			return
		}
		w.perform(s)
	})
	return nil
}

func (w *Switcher) perform(s *surface.Surface) {
	if s.Destroyed() {
		log.Warnf("%s: surface destroyed before it could be shown", s.Account().Name)
		return
	}
	name := s.Account().Name
	prev := w.current

	s.SetBounds(w.Region())

	w.flushSettling(s)
	w.phase = Attaching
	w.host.Attach(s.Contents())
	s.MarkAttached(true)
	w.current = s

	if prev != nil && prev != s {
		w.settle(prev)
	} else {
		w.phase = Idle
	}

	w.refreshIfStale(s)
	s.Focus()

	log.Infof("switched to %d (%s)", s.Index(), name)
	w.pub.Publish(notify.Event{
		Kind:      notify.Switched,
		Account:   s.Index(),
		Name:      name,
		SurfaceID: s.ID(),
		At:        w.sched.Now(),
	})
}

// settle schedules the detach of the outgoing surface, giving the incoming
// one time to paint.
func (w *Switcher) settle(old *surface.Surface) {
	w.phase = Settling
	w.settling = old
	w.settleGen++
	gen := w.settleGen

	w.sched.After(sched.Key{SurfaceID: old.ID(), Reason: sched.DetachOld}, w.detachDelay, func() {
		if gen != w.settleGen {
			return
		}
		w.detach(old)
		w.settling = nil
		w.phase = Idle
	})
}

// flushSettling completes a pending detach immediately. If the surface
// being shown next is the one settling, it simply stays attached.
func (w *Switcher) flushSettling(next *surface.Surface) {
	old := w.settling
	if old == nil {
		return
	}
	w.settling = nil
	w.settleGen++
	if old != next {
		w.detach(old)
	}
}

func (w *Switcher) detach(s *surface.Surface) {
	w.host.Detach(s.Contents())
	s.MarkAttached(false)
	log.Debugf("%s: detached", s.Account().Name)
}

func (w *Switcher) refreshIfStale(s *surface.Surface) {
	switch {
	case util.IsBlankAddress(s.Address()) || s.IsStale(w.thresholds.FreshLoad):
		log.Infof("%s: stale or blank, loading %s", s.Account().Name, s.Account().Address)
		s.LoadHome()
	case s.IsStale(w.thresholds.Reload):
		log.Infof("%s: reloading to freshen content", s.Account().Name)
		s.Reload()
	}
}

// Relayout re-applies the visible region to the attached surface. Called on
// every window resize.
func (w *Switcher) Relayout() {
	if s, ok := w.Current(); ok {
		s.SetBounds(w.Region())
	}
}

// Release forgets all attachment state without touching the host. Used when
// the window is going away.
func (w *Switcher) Release() {
	w.switchGen++
	w.settleGen++
	if w.settling != nil {
		w.settling.MarkAttached(false)
		w.settling = nil
	}
	if w.current != nil {
		w.current.MarkAttached(false)
		w.current = nil
	}
	w.phase = Idle
}
