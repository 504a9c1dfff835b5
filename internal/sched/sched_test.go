package sched

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestManualRunsInDueOrder(t *testing.T) {
	m := NewManual(t0)
	var order []string
	m.After(Key{"b", RetryLoad}, 2*time.Second, func() { order = append(order, "b") })
	m.After(Key{"a", ProcessGone}, time.Second, func() { order = append(order, "a") })
	m.After(Key{"c", RetryLoad}, 2*time.Second, func() { order = append(order, "c") })

	assert.Equal(t, 0, m.Advance(500*time.Millisecond))
	assert.Len(t, m.Pending(), 3)

	assert.Equal(t, 3, m.Advance(2*time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, t0.Add(2500*time.Millisecond), m.Now())
	assert.Empty(t, m.Pending())
}

func TestManualTaskSeesItsDueTime(t *testing.T) {
	m := NewManual(t0)
	var at time.Time
	m.After(Key{"s", RetryLoad}, time.Second, func() { at = m.Now() })
	m.Advance(time.Minute)
	assert.Equal(t, t0.Add(time.Second), at)
}

func TestManualRunsTasksScheduledByTasks(t *testing.T) {
	m := NewManual(t0)
	runs := 0
	var again func()
	again = func() {
		runs++
		if runs < 3 {
			m.After(Key{"s", RetryLoad}, time.Second, again)
		}
	}
	m.After(Key{"s", RetryLoad}, time.Second, again)

	m.Advance(10 * time.Second)
	assert.Equal(t, 3, runs)
}

func TestManualEveryAndStop(t *testing.T) {
	m := NewManual(t0)
	ticks := 0
	stop := m.Every(Key{Reason: Sweep}, 10*time.Minute, func() { ticks++ })

	m.Advance(35 * time.Minute)
	assert.Equal(t, 3, ticks)
	require.Len(t, m.PendingFor(Sweep), 1)
	assert.Equal(t, t0.Add(40*time.Minute), m.PendingFor(Sweep)[0].Due)

	stop()
	m.Advance(time.Hour)
	assert.Equal(t, 3, ticks)
	assert.Empty(t, m.Pending())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "abc/retry-load", Key{"abc", RetryLoad}.String())
	assert.Equal(t, "sweep", Key{Reason: Sweep}.String())
}

type chanExec chan func()

func (c chanExec) Post(fn func()) { c <- fn }

func receive(t *testing.T, c chanExec) func() {
	t.Helper()
	select {
	case fn := <-c:
		return fn
	case <-time.After(2 * time.Second):
		t.Fatal("nothing posted to the executor")
		return nil
	}
}

func TestTimersPostToExecutor(t *testing.T) {
	mock := clock.NewMock()
	exec := make(chanExec, 4)
	tm := NewTimers(mock, exec)

	ran := false
	tm.After(Key{"s", RetryLoad}, 2*time.Second, func() { ran = true })

	mock.Add(time.Second)
	select {
	case <-exec:
		t.Fatal("fired early")
	case <-time.After(20 * time.Millisecond):
	}

	mock.Add(time.Second)
	receive(t, exec)()
	assert.True(t, ran)
}

func TestTimersEveryStopsQueuedTicks(t *testing.T) {
	mock := clock.NewMock()
	exec := make(chanExec, 4)
	tm := NewTimers(mock, exec)

	ticks := 0
	stop := tm.Every(Key{Reason: Sweep}, time.Minute, func() { ticks++ })

	mock.Add(time.Minute)
	receive(t, exec)()
	assert.Equal(t, 1, ticks)

	mock.Add(time.Minute)
	queued := receive(t, exec)
	stop()
	queued()
	assert.Equal(t, 1, ticks, "a tick queued before stop must not run")
}
