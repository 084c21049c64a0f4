// Package display pushes queue updates, alerts and play commands to the
// waiting-room displays over WebSockets, and reports whether any connected
// display has unlocked audio playback.
package display

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/watch"
)

// Event is one outbound message to displays.
type Event struct {
	Type    string          `json:"type"` // queue-update, alert, alert-clear, play
	Station string          `json:"station,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	At      time.Time       `json:"at"`
}

// clientMessage is an inbound control message from a display.
type clientMessage struct {
	Action   string   `json:"action"` // subscribe, audio-unlocked
	Stations []string `json:"stations,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	id       string
	stations map[string]struct{} // empty set = all stations
	send     chan []byte
	conn     Conn
	unlocked bool
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Displays are kiosk devices on the clinic network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades an HTTP request to a display connection.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("display upgrade failed", "error", err)
		return
	}

	c := &client{
		id:       uuid.NewString(),
		stations: make(map[string]struct{}),
		send:     make(chan []byte, 64),
		conn:     conn,
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("display connected", "client_id", c.id)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
	slog.Info("display disconnected", "client_id", c.id)
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		h.mu.Lock()
		switch msg.Action {
		case "subscribe":
			c.stations = make(map[string]struct{}, len(msg.Stations))
			for _, st := range msg.Stations {
				c.stations[st] = struct{}{}
			}
		case "audio-unlocked":
			c.unlocked = true
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// Broadcast delivers an event to every display subscribed to its station.
// Events with no station go to everyone. Slow displays are skipped.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal display event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if ev.Station != "" && len(c.stations) > 0 {
			if _, ok := c.stations[ev.Station]; !ok {
				continue
			}
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// Unlocked reports whether at least one connected display confirmed the
// user-interaction audio gate. The scheduler skips ticks until then.
func (h *Hub) Unlocked() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.unlocked {
			return true
		}
	}
	return false
}

// PushQueue sends a station's current queue snapshot to its displays.
func (h *Hub) PushQueue(station string, records []models.PatientRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		slog.Error("marshal queue snapshot", "error", err)
		return
	}
	h.Broadcast(Event{Type: "queue-update", Station: station, Data: data})
}

// RaiseAlert shows the arrival cue on a station's displays.
func (h *Hub) RaiseAlert(station string, alert watch.Alert) {
	data, err := json.Marshal(map[string]any{
		"kind":        alert.Kind,
		"priority":    alert.Priority,
		"duration_ms": alert.Duration.Milliseconds(),
	})
	if err != nil {
		slog.Error("marshal alert", "error", err)
		return
	}
	h.Broadcast(Event{Type: "alert", Station: station, Data: data})
}

// ClearAlert removes the cue once its timer ends or the session tears down.
func (h *Hub) ClearAlert(station string) {
	h.Broadcast(Event{Type: "alert-clear", Station: station})
}
