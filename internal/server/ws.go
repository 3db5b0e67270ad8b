package server

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/loykin/waitforme/internal/events"
	"github.com/loykin/waitforme/internal/ui"
)

const (
	wsSendBufferSize = 64
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 60 * time.Second
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isLocalOrigin,
}

// Envelope is one message on the event stream.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// CommandMessage is what a UI sends to request an action.
type CommandMessage struct {
	Command string `json:"command"`
}

func envelopeFor(ev events.Event) Envelope {
	switch e := ev.(type) {
	case events.ConfigDataEvent:
		return Envelope{Event: e.Name(), Data: e.Config}
	case events.LoadingMessageEvent:
		return Envelope{Event: e.Name(), Data: e.Message}
	default:
		return Envelope{Event: ev.Name(), Data: ev}
	}
}

// handleEvents upgrades to a websocket, replays the current config and last
// status, then streams bus events. Slow clients lose events rather than
// stalling the bus.
func (r *Router) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan Envelope, wsSendBufferSize)
	push := func(env Envelope) {
		select {
		case send <- env:
		default:
		}
	}
	var unsub func()
	if r.bus != nil {
		unsub = r.bus.SubscribeAll(func(ev events.Event) { push(envelopeFor(ev)) })
	}
	push(envelopeFor(events.ConfigDataEvent{Config: r.ctrl.Config()}))
	if st := r.ctrl.Snapshot().LastStatus; st != nil {
		push(envelopeFor(*st))
	}

	done := make(chan struct{})
	go r.writePump(conn, send, done)
	r.readPump(conn, push)

	if unsub != nil {
		unsub()
	}
	close(done)
}

func (r *Router) readPump(conn *websocket.Conn, push func(Envelope)) {
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg CommandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			push(Envelope{Event: "error", Data: "invalid JSON message"})
			continue
		}
		cmd, ok := ui.ParseCommand(msg.Command)
		if !ok {
			push(Envelope{Event: "error", Data: "unknown command: " + msg.Command})
			continue
		}
		if err := ui.Dispatch(r.ctrl, cmd); err != nil {
			r.logger.Error("command failed", "command", string(cmd), "error", err)
			push(Envelope{Event: "error", Data: err.Error()})
		}
	}
}

func (r *Router) writePump(conn *websocket.Conn, send <-chan Envelope, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case <-done:
			return
		case env := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
