package webview

import (
	"sync"

	"github.com/petervdpas/mailshell/internal/surface"
	"github.com/petervdpas/mailshell/internal/util"
)

// Window is the shell host backed by the wails window.
type Window struct {
	engine *Engine

	mu     sync.Mutex
	width  int
	height int
	// size asks the runtime when the frontend has not reported yet.
	size func() (int, int)
	show func()
}

func NewWindow(engine *Engine, size func() (int, int), show func()) *Window {
	return &Window{engine: engine, size: size, show: show}
}

// SetSize records the content size the frontend reported.
func (w *Window) SetSize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
}

func (w *Window) ContentSize() (int, int) {
	w.mu.Lock()
	width, height := w.width, w.height
	w.mu.Unlock()
	if (width <= 0 || height <= 0) && w.size != nil {
		return w.size()
	}
	return width, height
}

func (w *Window) Attach(c surface.WebContents) {
	if id, ok := contentsID(c); ok {
		w.engine.send(EvAttach, map[string]string{"id": id})
	}
}

func (w *Window) Detach(c surface.WebContents) {
	if id, ok := contentsID(c); ok {
		w.engine.send(EvDetach, map[string]string{"id": id})
	}
}

func (w *Window) Show() {
	if w.show != nil {
		w.show()
	}
}

func contentsID(c surface.WebContents) (string, bool) {
	wc, ok := c.(*Contents)
	if !ok {
		log.Errorf("host got foreign contents %T", c)
		return "", false
	}
	return wc.id, true
}

// Opener hands addresses to the desktop. browse is the runtime's browser
// opener; without one the system opener from util is used.
type Opener struct {
	browse func(address string)
}

func NewOpener(browse func(address string)) *Opener {
	return &Opener{browse: browse}
}

func (o *Opener) OpenExternal(address string) error {
	if o.browse == nil {
		return util.OpenURL(address)
	}
	u, err := util.ExternalURL(address)
	if err != nil {
		return err
	}
	o.browse(u)
	return nil
}
