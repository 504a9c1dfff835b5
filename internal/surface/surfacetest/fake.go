// Package surfacetest provides recording fakes of the engine, host window and
// external opener.
package surfacetest

import (
	"errors"

	"github.com/petervdpas/mailshell/internal/surface"
)

const (
	OpLoad    = "load"
	OpReload  = "reload"
	OpFocus   = "focus"
	OpBounds  = "bounds"
	OpDestroy = "destroy"
)

type Call struct {
	Op  string
	Arg string
}

// Contents records every call made on it.
type Contents struct {
	ID        string
	Partition string
	Events    surface.Events
	Calls     []Call
	Bounds    surface.Rect
	destroyed bool
}

func (c *Contents) LoadURL(address string) { c.Calls = append(c.Calls, Call{OpLoad, address}) }
func (c *Contents) Reload()                { c.Calls = append(c.Calls, Call{OpReload, ""}) }
func (c *Contents) Focus()                 { c.Calls = append(c.Calls, Call{OpFocus, ""}) }
func (c *Contents) SetBounds(r surface.Rect) {
	c.Bounds = r
	c.Calls = append(c.Calls, Call{OpBounds, r.String()})
}
func (c *Contents) Destroy() {
	c.destroyed = true
	c.Calls = append(c.Calls, Call{OpDestroy, ""})
}
func (c *Contents) IsDestroyed() bool { return c.destroyed }

// Kill simulates the engine tearing the content down on its own.
func (c *Contents) Kill() { c.destroyed = true }

// Count returns how many calls of op were made.
func (c *Contents) Count(op string) int {
	n := 0
	for _, call := range c.Calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

// Loads returns the addresses passed to LoadURL, in order.
func (c *Contents) Loads() []string {
	var out []string
	for _, call := range c.Calls {
		if call.Op == OpLoad {
			out = append(out, call.Arg)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (c *Contents) Reset() { c.Calls = nil }

// Ready delivers DOM-ready followed by load-finished.
func (c *Contents) Ready() {
	c.Events.OnDOMReady()
	c.Events.OnLoadFinished()
}

var ErrCreate = errors.New("engine refused to create content")

type Engine struct {
	Created []*Contents
	Fail    bool
}

func (e *Engine) NewContents(surfaceID, partition string, events surface.Events) (surface.WebContents, error) {
	if e.Fail {
		return nil, ErrCreate
	}
	c := &Contents{ID: surfaceID, Partition: partition, Events: events}
	e.Created = append(e.Created, c)
	return c, nil
}

// For returns the content created for surfaceID.
func (e *Engine) For(surfaceID string) *Contents {
	for _, c := range e.Created {
		if c.ID == surfaceID {
			return c
		}
	}
	return nil
}

// Last returns the most recently created content.
func (e *Engine) Last() *Contents {
	if len(e.Created) == 0 {
		return nil
	}
	return e.Created[len(e.Created)-1]
}

// Host is a fake window. Log records "attach:<id>" / "detach:<id>" in order.
type Host struct {
	Width, Height int
	Attached      []surface.WebContents
	Log           []string
}

func (h *Host) ContentSize() (int, int) { return h.Width, h.Height }

func (h *Host) Attach(w surface.WebContents) {
	if !h.IsAttached(w) {
		h.Attached = append(h.Attached, w)
	}
	h.Log = append(h.Log, "attach:"+w.(*Contents).ID)
}

func (h *Host) Detach(w surface.WebContents) {
	for i, a := range h.Attached {
		if a == w {
			h.Attached = append(h.Attached[:i], h.Attached[i+1:]...)
			break
		}
	}
	h.Log = append(h.Log, "detach:"+w.(*Contents).ID)
}

func (h *Host) IsAttached(w surface.WebContents) bool {
	for _, a := range h.Attached {
		if a == w {
			return true
		}
	}
	return false
}

type Opener struct {
	Opened []string
}

func (o *Opener) OpenExternal(address string) error {
	o.Opened = append(o.Opened, address)
	return nil
}
