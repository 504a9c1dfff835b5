package shell

import (
	"context"
	"runtime/debug"
)

// Loop is the single goroutine that owns all shell state. Everything that
// touches surfaces, the pool or the switcher is posted here.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post queues fn. Work posted after the loop stopped is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case <-l.done:
	case l.tasks <- fn:
	}
}

// Run processes posted work until ctx is cancelled. A panicking task is
// logged and the loop carries on.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("shell loop task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Inline runs posted work immediately on the caller's goroutine.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }
