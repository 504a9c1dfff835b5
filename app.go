// app.go
package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/petervdpas/mailshell/internal/accounts"
	"github.com/petervdpas/mailshell/internal/config"
	"github.com/petervdpas/mailshell/internal/control"
	"github.com/petervdpas/mailshell/internal/diag"
	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/sched"
	"github.com/petervdpas/mailshell/internal/shell"
	"github.com/petervdpas/mailshell/internal/util"
	"github.com/petervdpas/mailshell/internal/webview"

	"github.com/benbjohnson/clock"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Frontend event carrying notify events.
const shellEvent = "shell:event"

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfgPath string
	cfg     config.Config
	reg     *accounts.Registry

	loop   *shell.Loop
	bus    *notify.Bus
	logs   *diag.LogBuffer
	engine *webview.Engine
	window *webview.Window
	shell  *shell.Shell

	bridge     *control.Server
	stopWatch  func()
	logCapture io.Closer
}

func NewApp(cfgPath string, cfg config.Config) (*App, error) {
	reg, err := accounts.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		cfg:     cfg,
		reg:     reg,
		loop:    shell.NewLoop(0),
		bus:     notify.NewBus(0),
		logs:    diag.NewLogBuffer(0),
	}
	a.engine = webview.NewEngine(a.loop)
	a.window = webview.NewWindow(a.engine, a.windowSize, a.showWindow)

	a.shell, err = shell.New(shell.Deps{
		Config:    cfg,
		Registry:  reg,
		Engine:    a.engine,
		Host:      a.window,
		Opener:    webview.NewOpener(a.browse),
		Scheduler: sched.NewTimers(clock.New(), a.loop),
		Executor:  a.loop,
		Publisher: a.bus,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) startup(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.logCapture = a.logs.Capture()
	if err := diag.ApplyLevels(a.cfg.Log); err != nil {
		log.Printf("log levels: %v", err)
	}

	a.engine.SetEmitter(func(name string, data ...any) {
		runtime.EventsEmit(a.ctx, name, data...)
	})

	go a.loop.Run(a.ctx)
	go a.forwardEvents()

	stop, err := config.Watch(a.cfgPath, a.applyConfig)
	if err != nil {
		log.Printf("config watch: %v", err)
	} else {
		a.stopWatch = stop
	}

	if a.cfg.Control.Addr != "" {
		a.bridge = control.New(control.Options{
			Addr:  a.cfg.Control.Addr,
			Shell: a.shell,
			Bus:   a.bus,
			Logs:  a.logs,
		})
		if _, err := a.bridge.Start(); err != nil {
			log.Printf("control bridge: %v", err)
			a.bridge = nil
		}
	}
}

// domReady fires once the frontend has loaded and can receive surface events.
func (a *App) domReady(ctx context.Context) {
	a.shell.OnReady()
}

func (a *App) shutdown(ctx context.Context) {
	a.shell.OnClose()
	a.waitLoop(2 * time.Second)

	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.bridge != nil {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = a.bridge.Close(sctx)
		cancel()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.logCapture != nil {
		_ = a.logCapture.Close()
	}
	log.Println("SHUTDOWN: Complete")
}

// waitLoop returns once everything posted before it has run, or after d.
func (a *App) waitLoop(d time.Duration) {
	done := make(chan struct{})
	a.loop.Post(func() { close(done) })
	select {
	case <-done:
	case <-a.loop.Done():
	case <-time.After(d):
		log.Printf("shell loop did not drain within %s", d)
	}
}

func (a *App) applyConfig(cfg config.Config) {
	if err := diag.ApplyLevels(cfg.Log); err != nil {
		log.Printf("log levels: %v", err)
	}
	a.shell.ApplyConfig(cfg)
}

func (a *App) forwardEvents() {
	ch, cancel := a.bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-a.ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			runtime.EventsEmit(a.ctx, shellEvent, e)
		}
	}
}

func (a *App) windowSize() (int, int) {
	if a.ctx == nil {
		return a.cfg.Window.Width, a.cfg.Window.Height
	}
	return runtime.WindowGetSize(a.ctx)
}

func (a *App) showWindow() {
	if a.ctx != nil {
		runtime.WindowShow(a.ctx)
	}
}

func (a *App) browse(url string) {
	runtime.BrowserOpenURL(a.ctx, url)
}

// iconHandler serves the sidebar icons named in the config, resolved
// against the config file's directory. Anything else is a 404.
func (a *App) iconHandler() http.Handler {
	base := filepath.Dir(a.cfgPath)
	icons := make(map[string]string)
	for _, d := range a.reg.All() {
		if d.Icon == "" {
			continue
		}
		icons[path.Clean("/"+filepath.ToSlash(d.Icon))] = util.ResolvePath(base, d.Icon)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, ok := icons[path.Clean(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, file)
	})
}

// -------------------------
// Bound API for the frontend
// -------------------------

func (a *App) SwitchAccount(index int) { a.shell.SwitchAccount(index) }

func (a *App) RefreshCurrentView() { a.shell.RefreshCurrentView() }

func (a *App) RefreshAllViews() { a.shell.RefreshAllViews() }

func (a *App) GetAccounts() []shell.AccountInfo { return a.shell.Accounts() }

func (a *App) GetStatus() shell.Status { return a.shell.Status() }

func (a *App) GetLogs(n int) []diag.LogEntry { return a.logs.Tail(n) }

func (a *App) GetEvents() []notify.Event { return a.bus.History() }

// GetControlURL is empty when the control bridge is off.
func (a *App) GetControlURL() string {
	if a.bridge == nil {
		return ""
	}
	return "http://" + a.bridge.Addr()
}

// SurfaceEvent is how the frontend reports what a content instance did.
func (a *App) SurfaceEvent(r webview.Report) { a.engine.Dispatch(r) }

// AllowNavigation answers before a content instance navigates or opens a
// window; false means the frontend must cancel it.
func (a *App) AllowNavigation(id, url string, newWindow bool) bool {
	return a.engine.AllowNavigation(id, url, newWindow)
}

// WindowResized reports the content area size.
func (a *App) WindowResized(width, height int) {
	a.window.SetSize(width, height)
	a.shell.OnResize()
}
