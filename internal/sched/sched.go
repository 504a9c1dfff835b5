// Package sched runs deferred work for the shell. Every task carries a Key so
// logs and tests can tell which surface scheduled it and why.
package sched

import (
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("sched")

type Reason string

const (
	RetryLoad     Reason = "retry-load"
	ProcessGone   Reason = "process-gone"
	DetachOld     Reason = "detach-old"
	InitialSwitch Reason = "initial-switch"
	Sweep         Reason = "sweep"
)

type Key struct {
	SurfaceID string
	Reason    Reason
}

func (k Key) String() string {
	if k.SurfaceID == "" {
		return string(k.Reason)
	}
	return fmt.Sprintf("%s/%s", k.SurfaceID, k.Reason)
}

// Scheduler defers work onto the shell loop. Scheduled tasks cannot be
// cancelled individually; later work simply supersedes them.
type Scheduler interface {
	Now() time.Time
	After(key Key, d time.Duration, fn func())
	// Every runs fn each interval until stop is called.
	Every(key Key, interval time.Duration, fn func()) (stop func())
}

// Executor serialises work onto a single goroutine.
type Executor interface {
	Post(fn func())
}
