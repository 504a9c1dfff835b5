package surface

import (
	"fmt"
	"sort"

	"github.com/petervdpas/mailshell/internal/accounts"
	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/sched"

	"github.com/google/uuid"
)

type PoolConfig struct {
	Registry  *accounts.Registry
	Engine    Engine
	Scheduler sched.Scheduler
	Publisher notify.Publisher
	Opener    Opener
	Delays    Delays
}

// Pool maps account index to its Surface. It is the only writer of that
// mapping.
type Pool struct {
	reg    *accounts.Registry
	engine Engine
	sched  sched.Scheduler
	pub    notify.Publisher
	opener Opener
	delays *Delays

	surfaces map[int]*Surface
}

func NewPool(cfg PoolConfig) *Pool {
	pub := cfg.Publisher
	if pub == nil {
		pub = notify.Discard{}
	}
	opener := cfg.Opener
	if opener == nil {
		opener = OpenerFunc(func(string) error { return nil })
	}
	delays := cfg.Delays
	if delays == (Delays{}) {
		delays = DefaultDelays
	}
	return &Pool{
		reg:      cfg.Registry,
		engine:   cfg.Engine,
		sched:    cfg.Scheduler,
		pub:      pub,
		opener:   opener,
		delays:   &delays,
		surfaces: make(map[int]*Surface),
	}
}

// SetDelays changes the recovery delays of every surface, existing or future.
func (p *Pool) SetDelays(d Delays) {
	*p.delays = d
}

func (p *Pool) Registry() *accounts.Registry { return p.reg }

// Get returns the live surface for index, creating it (and starting its
// initial load) if there is none or the existing one was destroyed.
func (p *Pool) Get(index int) (*Surface, error) {
	if s, ok := p.surfaces[index]; ok && !s.Destroyed() {
		return s, nil
	}

	account, err := p.reg.Get(index)
	if err != nil {
		return nil, err
	}
	if old, ok := p.surfaces[index]; ok {
		log.Infof("%s: surface %s was destroyed, recreating", account.Name, old.id)
	}

	s := &Surface{
		id:      uuid.NewString(),
		index:   index,
		account: account,
		sched:   p.sched,
		pub:     p.pub,
		opener:  p.opener,
		delays:  p.delays,
	}
	contents, err := p.engine.NewContents(s.id, account.Partition(), s)
	if err != nil {
		return nil, fmt.Errorf("create content for %s: %w", account.Name, err)
	}
	s.contents = contents
	p.surfaces[index] = s

	log.Infof("%s: created surface %s in %s", account.Name, s.id, account.Partition())
	s.LoadHome()
	return s, nil
}

// Peek returns the surface for index without creating one.
func (p *Pool) Peek(index int) (*Surface, bool) {
	s, ok := p.surfaces[index]
	return s, ok
}

// Each calls fn for every live surface in index order.
func (p *Pool) Each(fn func(*Surface)) {
	idx := make([]int, 0, len(p.surfaces))
	for i := range p.surfaces {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		if s := p.surfaces[i]; !s.Destroyed() {
			fn(s)
		}
	}
}

// Statuses describes every pool entry, destroyed ones included.
func (p *Pool) Statuses() []Status {
	out := make([]Status, 0, len(p.surfaces))
	for _, s := range p.surfaces {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// DestroyAll releases every surface. Used on window close and shutdown.
func (p *Pool) DestroyAll() {
	p.Each(func(s *Surface) {
		s.Destroy()
	})
}
