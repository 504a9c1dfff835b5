package control

import (
	"encoding/json"
	"net/http"

	"github.com/petervdpas/mailshell/internal/notify"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The frontend is served from the wails asset origin, not from us.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Command names accepted over the websocket.
const (
	CmdSwitchAccount  = "switch-account"
	CmdRefreshCurrent = "refresh-current-view"
	CmdRefreshAll     = "refresh-all-views"
	CmdStatus         = "status"
)

// Request is a client to server message.
type Request struct {
	Cmd   string `json:"cmd"`
	Index *int   `json:"index,omitempty"`
}

// Message is a server to client message. Exactly one of Event, Status or
// Error is set, matching Type.
type Message struct {
	Type   string        `json:"type"` // event | ack | status | error
	Cmd    string        `json:"cmd,omitempty"`
	Event  *notify.Event `json:"event,omitempty"`
	Status any           `json:"status,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	client := uuid.NewString()
	log.Debugf("ws client %s connected", client)
	defer log.Debugf("ws client %s gone", client)

	var events <-chan notify.Event
	if s.opts.Bus != nil {
		ch, cancel := s.opts.Bus.Subscribe()
		defer cancel()
		events = ch
	}

	replies := make(chan Message, 16)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case replies <- s.handleRequest(client, data):
			default:
				log.Warnf("ws client %s: reply queue full, dropping", client)
			}
		}
	}()

	for {
		var msg Message
		select {
		case <-r.Context().Done():
			return
		case <-readDone:
			return
		case m := <-replies:
			msg = m
		case e, ok := <-events:
			if !ok {
				return
			}
			msg = Message{Type: "event", Event: &e}
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) handleRequest(client string, data []byte) Message {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Message{Type: "error", Error: "bad request: " + err.Error()}
	}
	sh := s.opts.Shell
	log.Debugf("ws client %s: %s", client, req.Cmd)

	switch req.Cmd {
	case CmdSwitchAccount:
		if req.Index == nil {
			return Message{Type: "error", Cmd: req.Cmd, Error: "missing index"}
		}
		sh.SwitchAccount(*req.Index)
	case CmdRefreshCurrent:
		sh.RefreshCurrentView()
	case CmdRefreshAll:
		sh.RefreshAllViews()
	case CmdStatus:
		return Message{Type: "status", Cmd: req.Cmd, Status: sh.Status()}
	default:
		return Message{Type: "error", Cmd: req.Cmd, Error: "unknown command"}
	}
	return Message{Type: "ack", Cmd: req.Cmd}
}
