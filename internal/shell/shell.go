// Package shell wires the account surfaces, view switcher and sweeper
// together and exposes the commands the UI drives them with.
package shell

import (
	"slices"
	"time"

	"github.com/petervdpas/mailshell/internal/accounts"
	"github.com/petervdpas/mailshell/internal/config"
	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/surface"
	"github.com/petervdpas/mailshell/internal/sweeper"
	"github.com/petervdpas/mailshell/internal/switcher"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("shell")

// Host is the window collaborator.
type Host interface {
	switcher.Host
	// Show makes the window visible once the first surface can be placed.
	Show()
}

type Deps struct {
	Config    config.Config
	Registry  *accounts.Registry
	Engine    surface.Engine
	Host      Host
	Opener    surface.Opener
	Scheduler sched.Scheduler
	// Executor is where calls from other goroutines are posted: the Loop
	// in production, Inline in tests.
	Executor  sched.Executor
	Publisher notify.Publisher
}

// Shell is the process-wide context: one per window.
type Shell struct {
	exec     sched.Executor
	sched    sched.Scheduler
	reg      *accounts.Registry
	host     Host
	pub      notify.Publisher
	pool     *surface.Pool
	switcher *switcher.Switcher
	sweeper  *sweeper.Sweeper

	cfg    config.Config
	ready  bool
	closed bool
	// requested is set by the first valid switch, pending or done.
	requested bool
}

func New(d Deps) (*Shell, error) {
	reg := d.Registry
	if reg == nil {
		var err error
		if reg, err = accounts.FromConfig(d.Config); err != nil {
			return nil, err
		}
	}
	pub := d.Publisher
	if pub == nil {
		pub = notify.Discard{}
	}
	exec := d.Executor
	if exec == nil {
		exec = Inline{}
	}
	t := d.Config.Timing

	pool := surface.NewPool(surface.PoolConfig{
		Registry:  reg,
		Engine:    d.Engine,
		Scheduler: d.Scheduler,
		Publisher: pub,
		Opener:    d.Opener,
		Delays:    delays(t),
	})
	sw := switcher.New(switcher.Config{
		Pool:         pool,
		Host:         d.Host,
		Scheduler:    d.Scheduler,
		Publisher:    pub,
		SidebarWidth: d.Config.Window.SidebarWidth,
		DetachDelay:  t.DetachDelay(),
		Thresholds:   thresholds(t),
	})

	return &Shell{
		exec:     exec,
		sched:    d.Scheduler,
		reg:      reg,
		host:     d.Host,
		pub:      pub,
		pool:     pool,
		switcher: sw,
		sweeper:  sweeper.New(pool, sw, d.Scheduler, t.SweepInterval(), t.SweepStale()),
		cfg:      d.Config,
	}, nil
}

func delays(t config.Timing) surface.Delays {
	return surface.Delays{Retry: t.RetryDelay(), ProcessGone: t.ProcessGoneDelay()}
}

func thresholds(t config.Timing) switcher.Thresholds {
	return switcher.Thresholds{Reload: t.ReloadAfter(), FreshLoad: t.FreshLoadAfter()}
}

func (sh *Shell) Registry() *accounts.Registry { return sh.reg }

// ---- commands ----

// SwitchAccount shows the account at index. Invalid indices are logged and
// ignored.
func (sh *Shell) SwitchAccount(index int) {
	sh.exec.Post(func() { sh.switchAccount(index) })
}

// RefreshCurrentView reloads the visible surface, if there is one.
func (sh *Shell) RefreshCurrentView() {
	sh.exec.Post(sh.refreshCurrentView)
}

// RefreshAllViews sends every surface back to its account's home address,
// which also recovers surfaces too broken to reload.
func (sh *Shell) RefreshAllViews() {
	sh.exec.Post(sh.refreshAllViews)
}

func (sh *Shell) switchAccount(index int) {
	if sh.closed {
		log.Debugf("switch-account %d after close ignored", index)
		return
	}
	if !sh.reg.Valid(index) {
		log.Errorf("switch-account: no account at index %d (have %d)", index, sh.reg.Len())
		return
	}
	sh.requested = true
	if err := sh.switcher.SwitchTo(index); err != nil {
		log.Errorf("switch-account %d: %v", index, err)
	}
}

func (sh *Shell) refreshCurrentView() {
	s, ok := sh.switcher.Current()
	if !ok {
		log.Debugf("refresh-current-view: nothing attached")
		return
	}
	log.Infof("manually refreshing %s", s.Account().Name)
	s.Reload()
}

func (sh *Shell) refreshAllViews() {
	log.Infof("manually refreshing all views")
	sh.pool.Each(func(s *surface.Surface) {
		s.LoadHome()
	})
}

// ---- window lifecycle ----

// OnReady is called once the window can display content. Every account's
// surface starts loading right away; the first account is shown after a
// short delay.
func (sh *Shell) OnReady() {
	sh.exec.Post(func() {
		if sh.ready || sh.closed {
			return
		}
		sh.ready = true
		for i := 0; i < sh.reg.Len(); i++ {
			if _, err := sh.pool.Get(i); err != nil {
				log.Errorf("create surface %d: %v", i, err)
			}
		}
		sh.host.Show()
		sh.sweeper.Start()

		sh.sched.After(sched.Key{Reason: sched.InitialSwitch}, sh.cfg.Timing.InitialSwitchDelay(), func() {
			if sh.requested {
				log.Debugf("initial switch skipped, a switch was already requested")
				return
			}
			sh.switchAccount(0)
		})
	})
}

// OnResize re-lays out the visible surface.
func (sh *Shell) OnResize() {
	sh.exec.Post(func() {
		if !sh.closed {
			sh.switcher.Relayout()
		}
	})
}

// OnClose tears everything down. Surfaces are not recreated afterwards.
func (sh *Shell) OnClose() {
	sh.exec.Post(func() {
		if sh.closed {
			return
		}
		sh.closed = true
		sh.sweeper.Stop()
		sh.switcher.Release()
		sh.pool.DestroyAll()
		log.Infof("all surfaces destroyed")
		sh.pub.Publish(notify.Event{Kind: notify.Shutdown, Account: -1, At: sh.sched.Now()})
	})
}

// ApplyConfig applies the parts of a new configuration that can change at
// runtime. Account changes need a restart, since indices must stay stable.
func (sh *Shell) ApplyConfig(cfg config.Config) {
	sh.exec.Post(func() {
		if !slices.Equal(sh.cfg.Accounts, cfg.Accounts) || sh.cfg.Navigation != cfg.Navigation {
			log.Warnf("account or navigation changes take effect after restart")
		}
		t := cfg.Timing
		sh.pool.SetDelays(delays(t))
		sh.switcher.SetThresholds(thresholds(t))
		sh.switcher.SetDetachDelay(t.DetachDelay())
		sh.sweeper.SetTiming(t.SweepInterval(), t.SweepStale())
		if cfg.Window.SidebarWidth != sh.cfg.Window.SidebarWidth {
			sh.switcher.SetSidebarWidth(cfg.Window.SidebarWidth)
		}

		accountsCfg, nav := sh.cfg.Accounts, sh.cfg.Navigation
		sh.cfg = cfg
		sh.cfg.Accounts, sh.cfg.Navigation = accountsCfg, nav
		log.Infof("timing updated")
	})
}

// ---- queries ----

type AccountInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
}

type Status struct {
	Attached int              `json:"attached"` // -1 when nothing is shown
	Phase    string           `json:"phase"`
	Closed   bool             `json:"closed"`
	Surfaces []surface.Status `json:"surfaces"`
}

// Accounts lists the registry for the sidebar. Safe from any goroutine.
func (sh *Shell) Accounts() []AccountInfo {
	all := sh.reg.All()
	out := make([]AccountInfo, len(all))
	for i, d := range all {
		out[i] = AccountInfo{Index: i, Name: d.Name, Icon: d.Icon}
	}
	return out
}

const queryTimeout = 2 * time.Second

// Status snapshots the shell. It round-trips through the executor, so it is
// safe from any goroutine; if the loop is stuck it gives up after a short
// wait and returns an empty status.
func (sh *Shell) Status() Status {
	ch := make(chan Status, 1)
	sh.exec.Post(func() { ch <- sh.status() })
	select {
	case st := <-ch:
		return st
	case <-time.After(queryTimeout):
		log.Warnf("status query timed out")
		return Status{Attached: -1}
	}
}

func (sh *Shell) status() Status {
	idx, ok := sh.switcher.CurrentIndex()
	if !ok {
		idx = -1
	}
	return Status{
		Attached: idx,
		Phase:    sh.switcher.Phase().String(),
		Closed:   sh.closed,
		Surfaces: sh.pool.Statuses(),
	}
}
