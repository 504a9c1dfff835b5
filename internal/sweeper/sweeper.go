// Package sweeper reloads surfaces that have sat unseen for too long. Its
// threshold is deliberately looser than the switcher's so the two never
// fight over the same surface.
package sweeper

import (
	"time"

	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/surface"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("sweeper")

const (
	DefaultInterval = 10 * time.Minute
	DefaultStale    = 45 * time.Minute
)

// Visible reports the surface currently on screen.
type Visible interface {
	Current() (*surface.Surface, bool)
}

type Sweeper struct {
	pool    *surface.Pool
	visible Visible
	sched   sched.Scheduler

	interval time.Duration
	stale    time.Duration
	stop     func()
}

func New(pool *surface.Pool, visible Visible, s sched.Scheduler, interval, stale time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if stale <= 0 {
		stale = DefaultStale
	}
	return &Sweeper{
		pool:     pool,
		visible:  visible,
		sched:    s,
		interval: interval,
		stale:    stale,
	}
}

// Start begins periodic sweeps. Calling Start on a running sweeper restarts
// its timer.
func (sw *Sweeper) Start() {
	sw.Stop()
	sw.stop = sw.sched.Every(sched.Key{Reason: sched.Sweep}, sw.interval, func() {
		sw.Sweep()
	})
	log.Infof("sweeping every %s, reloading hidden surfaces older than %s", sw.interval, sw.stale)
}

func (sw *Sweeper) Stop() {
	if sw.stop != nil {
		sw.stop()
		sw.stop = nil
	}
}

func (sw *Sweeper) Running() bool { return sw.stop != nil }

// SetTiming changes interval and threshold; a running sweeper is restarted
// when the interval changes.
func (sw *Sweeper) SetTiming(interval, stale time.Duration) {
	if stale > 0 {
		sw.stale = stale
	}
	if interval > 0 && interval != sw.interval {
		sw.interval = interval
		if sw.Running() {
			sw.Start()
		}
	}
}

// Sweep runs one pass and returns how many surfaces it reloaded. The
// visible surface, and anything still attached, is left alone.
func (sw *Sweeper) Sweep() int {
	current, _ := sw.visible.Current()
	n := 0
	sw.pool.Each(func(s *surface.Surface) {
		if s == current || s.Attached() {
			return
		}
		if !s.IsStale(sw.stale) {
			return
		}
		log.Infof("refreshing hidden surface %d (%s)", s.Index(), s.Account().Name)
		s.LoadHome()
		n++
	})
	return n
}
