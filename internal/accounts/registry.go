// Package accounts holds the static, ordered list of mail accounts the shell
// hosts. Indices into the registry are stable for the life of the process.
package accounts

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/petervdpas/mailshell/internal/config"

	logging "github.com/ipfs/go-log/v2"
	"github.com/samber/lo"
)

var log = logging.Logger("accounts")

var (
	ErrIndexOutOfRange = errors.New("account index out of range")
	ErrDuplicateKey    = errors.New("duplicate isolation key")
	ErrNotNavigable    = errors.New("account address is outside its own navigation policy")
)

// Descriptor is one account. It is never mutated after the registry is built.
type Descriptor struct {
	Name         string
	Icon         string
	IsolationKey string
	Address      string

	Policy Policy
}

// Partition is the engine storage partition for this account. The "persist:"
// prefix keeps cookies on disk between runs.
func (d Descriptor) Partition() string {
	return "persist:" + d.IsolationKey
}

type Registry struct {
	accounts []Descriptor
}

// New builds a registry. Isolation keys must be unique; two accounts sharing a
// partition would share a login.
func New(descs []Descriptor) (*Registry, error) {
	if dups := lo.FindDuplicatesBy(descs, func(d Descriptor) string { return d.IsolationKey }); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, dups[0].IsolationKey)
	}
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	return &Registry{accounts: out}, nil
}

// FromConfig builds the registry from the accounts and navigation sections.
func FromConfig(cfg config.Config) (*Registry, error) {
	descs := make([]Descriptor, 0, len(cfg.Accounts))
	for i, a := range cfg.Accounts {
		service := strings.TrimSpace(a.ServiceDomain)
		if service == "" {
			u, err := url.Parse(a.URL)
			if err != nil {
				return nil, fmt.Errorf("account %d (%s): %w", i, a.Name, err)
			}
			service = u.Hostname()
		}
		d := Descriptor{
			Name:         a.Name,
			Icon:         a.Icon,
			IsolationKey: a.SessionKey,
			Address:      a.URL,
			Policy: Policy{
				ServiceDomain: service,
				AuthDomain:    cfg.Navigation.AuthDomain,
				SigninMarker:  cfg.Navigation.SigninMarker,
				OAuthMarker:   cfg.Navigation.OAuthMarker,
			},
		}
		// A surface refuses to load anything its policy denies, so such an
		// account would never show anything.
		if !d.Policy.Allows(d.Address) {
			return nil, fmt.Errorf("account %d (%s): %w: %s", i, a.Name, ErrNotNavigable, a.URL)
		}
		descs = append(descs, d)
	}
	r, err := New(descs)
	if err != nil {
		return nil, err
	}
	log.Debugf("registry built with %d account(s)", r.Len())
	return r, nil
}

func (r *Registry) Len() int { return len(r.accounts) }

// Get returns the descriptor at index i.
func (r *Registry) Get(i int) (Descriptor, error) {
	if i < 0 || i >= len(r.accounts) {
		return Descriptor{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(r.accounts))
	}
	return r.accounts[i], nil
}

// Valid reports whether i addresses an account.
func (r *Registry) Valid(i int) bool {
	return i >= 0 && i < len(r.accounts)
}

// All returns a copy of the descriptors in registry order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.accounts))
	copy(out, r.accounts)
	return out
}
