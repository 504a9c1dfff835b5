package sched

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Task describes a pending task of a Manual scheduler.
type Task struct {
	Key Key
	Due time.Time
}

type manualTask struct {
	Task
	seq      uint64
	fn       func()
	interval time.Duration
	stopped  *bool
}

// Manual is a deterministic scheduler for tests and simulations. Nothing runs
// until Advance moves its mock clock; tasks then run on the caller's
// goroutine in due order, FIFO among tasks due at the same instant.
type Manual struct {
	mu    sync.Mutex
	clock *clock.Mock
	seq   uint64
	tasks []*manualTask
}

func NewManual(start time.Time) *Manual {
	m := clock.NewMock()
	m.Set(start)
	return &Manual{clock: m}
}

// Clock exposes the mock clock, e.g. to share "now" with other components.
func (m *Manual) Clock() *clock.Mock { return m.clock }

func (m *Manual) Now() time.Time { return m.clock.Now() }

func (m *Manual) After(key Key, d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushLocked(key, m.clock.Now().Add(d), fn, 0, nil)
}

func (m *Manual) Every(key Key, interval time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	stopped := new(bool)
	m.pushLocked(key, m.clock.Now().Add(interval), fn, interval, stopped)
	return func() {
		m.mu.Lock()
		*stopped = true
		m.mu.Unlock()
	}
}

func (m *Manual) pushLocked(key Key, due time.Time, fn func(), interval time.Duration, stopped *bool) {
	m.seq++
	m.tasks = append(m.tasks, &manualTask{
		Task:     Task{Key: key, Due: due},
		seq:      m.seq,
		fn:       fn,
		interval: interval,
		stopped:  stopped,
	})
}

// Pending lists tasks not yet run, in the order they will run.
func (m *Manual) Pending() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	m.sortLocked()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Task)
	}
	return out
}

// PendingFor lists pending tasks with the given reason.
func (m *Manual) PendingFor(reason Reason) []Task {
	var out []Task
	for _, t := range m.Pending() {
		if t.Key.Reason == reason {
			out = append(out, t)
		}
	}
	return out
}

// Advance moves the clock forward by d, running every task that falls due on
// the way (including tasks scheduled by those tasks). Returns the number of
// tasks run.
func (m *Manual) Advance(d time.Duration) int {
	target := m.clock.Now().Add(d)
	ran := 0
	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		if t.Due.After(m.clock.Now()) {
			m.clock.Set(t.Due)
		}
		t.fn()
		ran++
	}
	if target.After(m.clock.Now()) {
		m.clock.Set(target)
	}
	return ran
}

// Flush runs everything already due without moving the clock.
func (m *Manual) Flush() int { return m.Advance(0) }

func (m *Manual) popDue(target time.Time) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	if len(m.tasks) == 0 {
		return nil
	}
	m.sortLocked()
	t := m.tasks[0]
	if t.Due.After(target) {
		return nil
	}
	m.tasks = m.tasks[1:]
	if t.interval > 0 {
		m.pushLocked(t.Key, t.Due.Add(t.interval), t.fn, t.interval, t.stopped)
	}
	return t
}

func (m *Manual) pruneLocked() {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if t.stopped != nil && *t.stopped {
			continue
		}
		live = append(live, t)
	}
	m.tasks = live
}

func (m *Manual) sortLocked() {
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if !m.tasks[i].Due.Equal(m.tasks[j].Due) {
			return m.tasks[i].Due.Before(m.tasks[j].Due)
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
}
