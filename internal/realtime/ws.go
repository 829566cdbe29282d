package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"blueprint/api/internal/command"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what clients send over the socket.
type clientMessage struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// Conn adapts a websocket to the hub's Sink interface. The read loop
// handles join/leave/ping; the write pump owns all writes to the socket.
type Conn struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan any
}

// Enqueue hands an event to the write pump without blocking. A full
// buffer means the client has stopped reading; the hub drops it.
func (c *Conn) Enqueue(e command.Event) bool {
	select {
	case c.send <- e:
		return true
	default:
		return false
	}
}

func (c *Conn) reply(v any) {
	select {
	case c.send <- v:
	default:
	}
}

func (c *Conn) readLoop() {
	defer func() {
		c.hub.Disconnect(c)
		close(c.send)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read: %v", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(map[string]any{"type": "error", "message": "malformed message"})
			continue
		}

		switch msg.Action {
		case "join_session":
			if err := c.hub.Join(msg.SessionID, c); err != nil {
				c.reply(map[string]any{"type": "error", "message": "unknown session"})
			}
		case "leave_session":
			c.hub.Leave(msg.SessionID, c)
		case "ping":
			// Activity credit only for sessions this connection joined.
			if c.hub.Joined(msg.SessionID, c) {
				c.hub.presence.Touch(msg.SessionID)
			}
			c.reply(map[string]any{"type": "pong"})
		default:
			c.reply(map[string]any{"type": "error", "message": "unknown action"})
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case v, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades HTTP requests to websocket connections bound to the
// hub.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade: %v", err)
		return
	}
	c := &Conn{
		hub:  h.hub,
		ws:   ws,
		send: make(chan any, sendBuffer),
	}
	go c.writePump()
	go c.readLoop()
}
