// Package control is the loopback HTTP bridge for driving a running shell
// from scripts and the browser: commands, status, events and logs.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/petervdpas/mailshell/internal/diag"
	"github.com/petervdpas/mailshell/internal/notify"
	"github.com/petervdpas/mailshell/internal/shell"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("control")

// Commands is the part of the shell the bridge drives.
type Commands interface {
	SwitchAccount(index int)
	RefreshCurrentView()
	RefreshAllViews()
	Accounts() []shell.AccountInfo
	Status() shell.Status
}

type Options struct {
	// Addr to listen on. A missing host means 127.0.0.1.
	Addr  string
	Shell Commands
	Bus   *notify.Bus
	// Logs is optional; without it the log endpoints are not registered.
	Logs *diag.LogBuffer
}

type Server struct {
	opts Options

	mu   sync.Mutex
	srv  *http.Server
	addr string
}

var ErrNotLoopback = errors.New("control: refusing to listen on a non-loopback address")

func New(opts Options) *Server {
	return &Server{opts: opts}
}

// Start listens and serves in the background. It returns the bound address.
func (s *Server) Start() (string, error) {
	addr, err := loopbackAddr(s.opts.Addr)
	if err != nil {
		return "", err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("control bridge stopped: %v", err)
		}
	}()
	log.Infof("control bridge on http://%s", ln.Addr())
	return ln.Addr().String(), nil
}

// Addr is the bound address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func loopbackAddr(addr string) (string, error) {
	if addr == "" {
		return "127.0.0.1:0", nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	switch host {
	case "":
		return net.JoinHostPort("127.0.0.1", port), nil
	case "localhost":
		return addr, nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return "", ErrNotLoopback
	}
	return addr, nil
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	sh := s.opts.Shell

	mux.HandleFunc("/api/switch", withCORS(post(func(w http.ResponseWriter, r *http.Request) {
		idx, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			http.Error(w, "index must be an integer", http.StatusBadRequest)
			return
		}
		sh.SwitchAccount(idx)
		w.WriteHeader(http.StatusAccepted)
	})))

	mux.HandleFunc("/api/refresh", withCORS(post(func(w http.ResponseWriter, r *http.Request) {
		sh.RefreshCurrentView()
		w.WriteHeader(http.StatusAccepted)
	})))

	mux.HandleFunc("/api/refresh-all", withCORS(post(func(w http.ResponseWriter, r *http.Request) {
		sh.RefreshAllViews()
		w.WriteHeader(http.StatusAccepted)
	})))

	mux.HandleFunc("/api/accounts", withCORS(get(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sh.Accounts())
	})))

	mux.HandleFunc("/api/status", withCORS(get(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sh.Status())
	})))

	mux.HandleFunc("/api/events", withCORS(get(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Bus == nil {
			writeJSON(w, []notify.Event{})
			return
		}
		writeJSON(w, s.opts.Bus.History())
	})))

	if s.opts.Logs != nil {
		mux.HandleFunc("/api/logs", withCORS(s.opts.Logs.ServeLogsJSON))
		mux.HandleFunc("/api/logs/stream", withCORS(s.opts.Logs.ServeLogsSSE))
	}

	mux.HandleFunc("/ws", s.serveWS)

	return localOnly(mux)
}

// localOnly rejects anything that did not come over loopback.
func localOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
