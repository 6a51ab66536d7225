// Package progress broadcasts per-phase run progress over a websocket, the
// optional live view spec.md §5 allows alongside the console findings
// report. It is adapted from the teacher's internal/websocket/hub.go: one
// active client at a time, a buffered broadcast channel, register/unregister
// over channels guarded by a single goroutine rather than a mutex-per-field.
package progress

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one progress update: a stage transition, a per-pair replay tick,
// or a final findings count. Type distinguishes which.
type Event struct {
	Type      string `json:"type"` // "stage_started", "stage_finished", "pair_progress", "findings"
	Stage     string `json:"stage,omitempty"`
	Pair      string `json:"pair,omitempty"`
	Count     int    `json:"count,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Hub holds at most one active websocket client and fans Broadcast calls out
// to it. A run proceeds identically whether or not a client is attached.
type Hub struct {
	client     *client
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	log        *zap.Logger
}

// NewHub builds a Hub that logs connection lifecycle events through log.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log,
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// Run drives the hub's register/unregister/broadcast loop. Call it in its
// own goroutine for the lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			if h.client != nil {
				close(h.client.send)
			}
			h.client = c
			h.log.Info("progress client connected")

		case c := <-h.unregister:
			if h.client == c {
				close(h.client.send)
				h.client = nil
				h.log.Info("progress client disconnected")
			}

		case evt := <-h.broadcast:
			if h.client == nil {
				continue
			}
			select {
			case h.client.send <- evt:
			default:
				h.log.Warn("progress client too slow, dropping connection")
				close(h.client.send)
				h.client = nil
			}
		}
	}
}

// Broadcast enqueues evt for the active client, if any. Non-blocking: a run
// never stalls waiting on a progress viewer.
func (h *Hub) Broadcast(evt Event) {
	select {
	case h.broadcast <- evt:
	default:
		h.log.Warn("progress broadcast channel full, dropping event", zap.String("type", evt.Type))
	}
}

// ServeWS upgrades r to a websocket connection and registers it as the hub's
// active client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("progress upgrade failed", zap.Error(err))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan Event, 256)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for evt := range c.send {
		if err := c.conn.WriteJSON(evt); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func stageEvent(typ, stage string) Event {
	return Event{Type: typ, Stage: stage, Timestamp: time.Now().Unix()}
}

// StageStarted is a convenience constructor for a "stage_started" event.
func StageStarted(stage string) Event { return stageEvent("stage_started", stage) }

// StageFinished is a convenience constructor for a "stage_finished" event.
func StageFinished(stage string) Event { return stageEvent("stage_finished", stage) }
