// Package webview adapts the shell's engine and host interfaces to the wails
// window. Content instances live in the frontend; Go drives them with
// runtime events and the frontend reports back through bound methods.
package webview

import (
	"errors"
	"sync"

	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/surface"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("webview")

// Frontend event names, Go to JS.
const (
	EvCreate  = "surface:create"
	EvLoad    = "surface:load"
	EvReload  = "surface:reload"
	EvFocus   = "surface:focus"
	EvBounds  = "surface:bounds"
	EvDestroy = "surface:destroy"
	EvAttach  = "surface:attach"
	EvDetach  = "surface:detach"
)

// Report types, JS to Go.
const (
	RepLoadFailed   = "load-failed"
	RepLoadFinished = "load-finished"
	RepDOMReady     = "dom-ready"
	RepNavigated    = "navigated"
	RepUnresponsive = "unresponsive"
	RepProcessGone  = "process-gone"
	RepDestroyed    = "destroyed"
)

// Emitter sends one event to the frontend. In production it wraps
// runtime.EventsEmit with the wails context.
type Emitter func(name string, data ...any)

var ErrNoEmitter = errors.New("webview: frontend not ready")

// Report is what the frontend sends for one content instance.
type Report struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Code   int    `json:"code,omitempty"`
	URL    string `json:"url,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Engine creates frontend-side content instances.
type Engine struct {
	exec sched.Executor

	mu       sync.RWMutex
	emit     Emitter
	contents map[string]*Contents
}

func NewEngine(exec sched.Executor) *Engine {
	return &Engine{
		exec:     exec,
		contents: make(map[string]*Contents),
	}
}

// SetEmitter connects the engine to the frontend. Until it is called
// NewContents fails.
func (e *Engine) SetEmitter(emit Emitter) {
	e.mu.Lock()
	e.emit = emit
	e.mu.Unlock()
}

func (e *Engine) send(name string, data any) {
	e.mu.RLock()
	emit := e.emit
	e.mu.RUnlock()
	if emit == nil {
		log.Debugf("dropping %s, no frontend", name)
		return
	}
	emit(name, data)
}

func (e *Engine) NewContents(surfaceID, partition string, events surface.Events) (surface.WebContents, error) {
	e.mu.Lock()
	if e.emit == nil {
		e.mu.Unlock()
		return nil, ErrNoEmitter
	}
	c := &Contents{engine: e, id: surfaceID, partition: partition, events: events}
	e.contents[surfaceID] = c
	e.mu.Unlock()

	e.send(EvCreate, map[string]string{"id": surfaceID, "partition": partition})
	return c, nil
}

func (e *Engine) lookup(id string) (*Contents, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.contents[id]
	return c, ok
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.contents, id)
	e.mu.Unlock()
}

// Dispatch routes a frontend report to its surface on the shell loop.
// Reports for unknown or destroyed instances are dropped.
func (e *Engine) Dispatch(r Report) {
	c, ok := e.lookup(r.ID)
	if !ok {
		log.Debugf("report %s for unknown surface %s", r.Type, r.ID)
		return
	}
	e.exec.Post(func() { c.deliver(r) })
}

// AllowNavigation is asked by the frontend before a content instance
// navigates or opens a window. It answers synchronously.
func (e *Engine) AllowNavigation(id, address string, newWindow bool) bool {
	c, ok := e.lookup(id)
	if !ok {
		return false
	}
	return c.events.OnNavigationRequest(address, newWindow)
}

// Contents is the Go handle of one frontend content instance. Its methods
// run on the shell loop.
type Contents struct {
	engine    *Engine
	id        string
	partition string
	events    surface.Events
	destroyed bool
}

func (c *Contents) ID() string { return c.id }

func (c *Contents) LoadURL(address string) {
	c.engine.send(EvLoad, map[string]string{"id": c.id, "url": address})
}

func (c *Contents) Reload() {
	c.engine.send(EvReload, map[string]string{"id": c.id})
}

func (c *Contents) Focus() {
	c.engine.send(EvFocus, map[string]string{"id": c.id})
}

func (c *Contents) SetBounds(r surface.Rect) {
	c.engine.send(EvBounds, map[string]any{"id": c.id, "rect": r})
}

func (c *Contents) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.engine.forget(c.id)
	c.engine.send(EvDestroy, map[string]string{"id": c.id})
}

func (c *Contents) IsDestroyed() bool { return c.destroyed }

func (c *Contents) deliver(r Report) {
	if c.destroyed {
		return
	}
	ev := c.events
	switch r.Type {
	case RepLoadFailed:
		ev.OnLoadFailed(surface.ErrorKindFromCode(r.Code), r.URL)
	case RepLoadFinished:
		ev.OnLoadFinished()
	case RepDOMReady:
		ev.OnDOMReady()
	case RepNavigated:
		ev.OnNavigated(r.URL)
	case RepUnresponsive:
		ev.OnUnresponsive()
	case RepProcessGone:
		ev.OnProcessGone(r.Reason)
	case RepDestroyed:
		// the frontend dropped the instance; the pool sees IsDestroyed
		c.destroyed = true
		c.engine.forget(c.id)
	default:
		log.Warnf("surface %s: unknown report type %q", c.id, r.Type)
	}
}
