package surface

import (
	"time"

	"github.com/petervdpas/mailshell/internal/accounts"
	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/util"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("surface")

// Delays are the recovery delays shared by every surface of a pool.
type Delays struct {
	Retry       time.Duration
	ProcessGone time.Duration
}

// DefaultDelays match the engine's usual recovery times.
var DefaultDelays = Delays{
	Retry:       2 * time.Second,
	ProcessGone: time.Second,
}

// Surface is one account's content instance plus its health bookkeeping.
// No failure escapes a Surface: transient load errors are retried, hangs are
// reloaded, dead content processes are reloaded from scratch, and anything
// else is logged.
type Surface struct {
	id      string
	index   int
	account accounts.Descriptor

	contents WebContents
	sched    sched.Scheduler
	pub      notify.Publisher
	opener   Opener
	delays   *Delays

	state    State
	lastLoad time.Time // zero: never loaded
	address  string
	attached bool
	domReady bool
	onReady  []func()
}

func (s *Surface) ID() string                   { return s.id }
func (s *Surface) Index() int                   { return s.index }
func (s *Surface) Account() accounts.Descriptor { return s.account }
func (s *Surface) Address() string              { return s.address }
func (s *Surface) LastLoad() time.Time          { return s.lastLoad }
func (s *Surface) Attached() bool               { return s.attached }
func (s *Surface) DOMReady() bool               { return s.domReady }
func (s *Surface) Contents() WebContents        { return s.contents }

// State reports the lifecycle state. Contents destroyed underneath us by the
// engine count as Destroyed.
func (s *Surface) State() State {
	if s.state != Destroyed && s.contents.IsDestroyed() {
		s.markDestroyed()
	}
	return s.state
}

func (s *Surface) Destroyed() bool { return s.State() == Destroyed }

// Load navigates to address. Addresses outside the account's domains are
// refused; the surface never leaves its own service.
func (s *Surface) Load(address string) {
	if s.Destroyed() {
		log.Debugf("%s: load on destroyed surface ignored", s.account.Name)
		return
	}
	if !s.account.Policy.Allows(address) {
		log.Warnf("%s: refusing to load %s outside the account's domains", s.account.Name, address)
		return
	}
	s.state = Loading
	s.address = address
	log.Infof("%s: loading %s", s.account.Name, address)
	s.contents.LoadURL(address)
}

// LoadHome navigates back to the account's own address.
func (s *Surface) LoadHome() {
	s.Load(s.account.Address)
}

// Reload re-requests the current address. A surface that never had an
// address loads the account's home instead.
func (s *Surface) Reload() {
	if s.Destroyed() {
		return
	}
	if util.IsBlankAddress(s.address) {
		s.LoadHome()
		return
	}
	s.state = Loading
	log.Infof("%s: reloading", s.account.Name)
	s.contents.Reload()
}

// Focus gives keyboard focus to the content.
func (s *Surface) Focus() {
	if !s.Destroyed() {
		s.contents.Focus()
	}
}

// SetBounds places the content in the host window.
func (s *Surface) SetBounds(r Rect) {
	if !s.Destroyed() {
		s.contents.SetBounds(r)
	}
}

// MarkAttached records whether the surface occupies the visible region.
// Only the view switcher calls this.
func (s *Surface) MarkAttached(on bool) {
	s.attached = on
}

// IsStale reports whether the last successful load is older than threshold.
// A surface that never finished loading is always stale.
func (s *Surface) IsStale(threshold time.Duration) bool {
	if s.lastLoad.IsZero() {
		return true
	}
	return s.sched.Now().Sub(s.lastLoad) > threshold
}

// WhenReady runs fn once the first DOM-ready signal has arrived, immediately
// if it already has.
func (s *Surface) WhenReady(fn func()) {
	if s.domReady {
		fn()
		return
	}
	s.onReady = append(s.onReady, fn)
}

// Destroy releases the engine content. The Surface object stays around in
// Destroyed state; the pool replaces it on next access.
func (s *Surface) Destroy() {
	if s.state == Destroyed {
		return
	}
	if !s.contents.IsDestroyed() {
		s.contents.Destroy()
	}
	s.markDestroyed()
	log.Infof("%s: surface %s destroyed", s.account.Name, s.id)
}

func (s *Surface) markDestroyed() {
	s.state = Destroyed
	s.attached = false
	s.onReady = nil
}

func (s *Surface) publish(kind notify.Kind, address, detail string) {
	s.pub.Publish(notify.Event{
		Kind:      kind,
		Account:   s.index,
		Name:      s.account.Name,
		SurfaceID: s.id,
		Address:   address,
		Detail:    detail,
		At:        s.sched.Now(),
	})
}

// ---- engine events ----

func (s *Surface) OnLoadFailed(kind ErrorKind, address string) {
	if s.Destroyed() {
		return
	}
	s.state = Failed
	s.publish(notify.LoadFailed, address, kind.String())

	if !kind.Transient() {
		log.Warnf("%s: failed to load %s (%s)", s.account.Name, address, kind)
		return
	}

	// Every transient failure arms its own retry. Retries always go back to
	// the account's home address, not the address that failed.
	log.Warnf("%s: failed to load %s (%s), retrying in %s", s.account.Name, address, kind, s.delays.Retry)
	s.sched.After(sched.Key{SurfaceID: s.id, Reason: sched.RetryLoad}, s.delays.Retry, func() {
		if s.Destroyed() {
			return
		}
		log.Infof("%s: retrying load", s.account.Name)
		s.LoadHome()
	})
}

func (s *Surface) OnLoadFinished() {
	if s.Destroyed() {
		return
	}
	s.state = Loaded
	s.lastLoad = s.sched.Now()
	log.Infof("%s: loaded", s.account.Name)
	s.publish(notify.LoadFinished, s.address, "")
}

func (s *Surface) OnDOMReady() {
	if s.Destroyed() {
		return
	}
	log.Debugf("%s: DOM ready", s.account.Name)
	s.domReady = true
	pending := s.onReady
	s.onReady = nil
	for _, fn := range pending {
		fn()
	}
}

func (s *Surface) OnNavigated(address string) {
	if s.Destroyed() {
		return
	}
	s.address = address
	log.Debugf("%s: navigated to %s", s.account.Name, address)

	if s.account.Policy.IsSigninPrompt(address) {
		log.Warnf("%s: appears to need re-authentication", s.account.Name)
		s.publish(notify.ReauthNeeded, address, "")
	}
}

func (s *Surface) OnUnresponsive() {
	if s.Destroyed() {
		return
	}
	log.Warnf("%s: became unresponsive, reloading", s.account.Name)
	s.publish(notify.Unresponsive, s.address, "")
	s.Reload()
}

func (s *Surface) OnProcessGone(reason string) {
	if s.Destroyed() {
		return
	}
	log.Warnf("%s: content process gone (%s), reloading in %s", s.account.Name, reason, s.delays.ProcessGone)
	s.state = Failed
	s.publish(notify.ProcessGone, s.address, reason)

	s.sched.After(sched.Key{SurfaceID: s.id, Reason: sched.ProcessGone}, s.delays.ProcessGone, func() {
		if s.Destroyed() {
			return
		}
		s.LoadHome()
	})
}

func (s *Surface) OnNavigationRequest(address string, newWindow bool) bool {
	if s.account.Policy.Allows(address) {
		return true
	}
	log.Infof("%s: opening %s externally (new window: %v)", s.account.Name, address, newWindow)
	if err := s.opener.OpenExternal(address); err != nil {
		log.Errorf("%s: open external %s: %v", s.account.Name, address, err)
	}
	return false
}

// Status is a point-in-time view of a surface for UIs.
type Status struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	ID       string    `json:"id"`
	State    State     `json:"state"`
	Address  string    `json:"address"`
	LastLoad time.Time `json:"last_load"`
	AgeSec   int64     `json:"age_sec"` // -1: never loaded
	Attached bool      `json:"attached"`
}

func (s *Surface) Status() Status {
	age := int64(-1)
	if !s.lastLoad.IsZero() {
		age = int64(s.sched.Now().Sub(s.lastLoad) / time.Second)
	}
	return Status{
		Index:    s.index,
		Name:     s.account.Name,
		ID:       s.id,
		State:    s.State(),
		Address:  s.address,
		LastLoad: s.lastLoad,
		AgeSec:   age,
		Attached: s.attached,
	}
}
