package shell

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInOrderAndSurvivesPanics(t *testing.T) {
	l := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	var got []int
	done := make(chan struct{})
	l.Post(func() { got = append(got, 1) })
	l.Post(func() { panic("boom") })
	l.Post(func() { got = append(got, 2) })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain")
	}
	assert.Equal(t, []int{1, 2}, got)

	cancel()
	<-l.Done()

	posted := make(chan struct{})
	go func() {
		l.Post(func() { t.Error("ran after stop") })
		close(posted)
	}()
	select {
	case <-posted:
	case <-time.After(time.Second):
		require.Fail(t, "Post blocked after the loop stopped")
	}
}
