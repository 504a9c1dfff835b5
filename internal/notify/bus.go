// Package notify carries observable shell signals (re-auth prompts, load
// failures, switches) to whoever is listening: the frontend, the control
// bridge, tests.
package notify

import (
	"sync"
	"time"

	"github.com/petervdpas/mailshell/internal/util"
)

type Kind string

const (
	ReauthNeeded Kind = "reauth-needed"
	LoadFailed   Kind = "load-failed"
	LoadFinished Kind = "load-finished"
	Unresponsive Kind = "unresponsive"
	ProcessGone  Kind = "process-gone"
	Switched     Kind = "switched"
	Shutdown     Kind = "shutdown"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	Account   int       `json:"account"`
	Name      string    `json:"name,omitempty"`
	SurfaceID string    `json:"surface_id,omitempty"`
	Address   string    `json:"address,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher is what the core needs from a bus.
type Publisher interface {
	Publish(Event)
}

// DefaultHistory is the number of events kept for late subscribers.
const DefaultHistory = 200

// Bus fans events out to subscribers. Slow subscribers lose events rather
// than stall the shell loop.
type Bus struct {
	mu      sync.Mutex
	history *util.RingBuffer[Event]
	subs    map[chan Event]struct{}
}

func NewBus(history int) *Bus {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Bus{
		history: util.NewRingBuffer[Event](history),
		subs:    make(map[chan Event]struct{}),
	}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history.Push(e)
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// History returns retained events, oldest first.
func (b *Bus) History() []Event {
	return b.history.Snapshot()
}

// Subscribe returns a channel receiving every event published after the call.
func (b *Bus) Subscribe() (ch <-chan Event, cancel func()) {
	c := make(chan Event, 64)

	b.mu.Lock()
	b.subs[c] = struct{}{}
	b.mu.Unlock()

	cancel = func() {
		b.mu.Lock()
		if _, ok := b.subs[c]; ok {
			delete(b.subs, c)
			close(c)
		}
		b.mu.Unlock()
	}
	return c, cancel
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
