// Package surface wraps the embedded browser engine. A Surface is one
// isolated web-content instance bound to one account; the Pool owns one
// Surface per account index.
//
// Nothing in this package is safe for concurrent use. Everything runs on
// the shell loop, and engine adapters must post their callbacks there.
package surface

import "fmt"

// Rect is a region of the host window in window content coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// WebContents is one engine-side content instance.
type WebContents interface {
	LoadURL(address string)
	Reload()
	Focus()
	SetBounds(Rect)
	Destroy()
	IsDestroyed() bool
}

// Events is the set of signals an engine delivers for one WebContents.
type Events interface {
	OnLoadFailed(kind ErrorKind, address string)
	OnLoadFinished()
	OnDOMReady()
	OnNavigated(address string)
	OnUnresponsive()
	OnProcessGone(reason string)

	// OnNavigationRequest is consulted before an in-place navigation or a
	// new window. false means the engine must not navigate. It only reads
	// immutable account data, so adapters may call it from any goroutine.
	OnNavigationRequest(address string, newWindow bool) bool
}

// Engine creates isolated content instances. partition selects the
// cookie/storage partition.
type Engine interface {
	NewContents(surfaceID, partition string, events Events) (WebContents, error)
}

// Opener hands an address to the operating system's default handler.
type Opener interface {
	OpenExternal(address string) error
}

type OpenerFunc func(address string) error

func (f OpenerFunc) OpenExternal(address string) error { return f(address) }
