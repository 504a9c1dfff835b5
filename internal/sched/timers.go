package sched

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Timers is the production scheduler: clock timers whose callbacks are posted
// to an Executor so they run on the shell loop, never on the timer goroutine.
type Timers struct {
	clock clock.Clock
	exec  Executor
}

func NewTimers(clk clock.Clock, exec Executor) *Timers {
	if clk == nil {
		clk = clock.New()
	}
	return &Timers{clock: clk, exec: exec}
}

func (t *Timers) Now() time.Time { return t.clock.Now() }

func (t *Timers) After(key Key, d time.Duration, fn func()) {
	log.Debugf("scheduled %s in %s", key, d)
	t.clock.AfterFunc(d, func() {
		t.exec.Post(fn)
	})
}

func (t *Timers) Every(key Key, interval time.Duration, fn func()) func() {
	var stopped atomic.Bool
	ticker := t.clock.Ticker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				t.exec.Post(func() {
					// A tick may already be queued on the loop when stop runs.
					if !stopped.Load() {
						fn()
					}
				})
			}
		}
	}()
	log.Debugf("started %s every %s", key, interval)

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			close(done)
			log.Debugf("stopped %s", key)
		})
	}
}
