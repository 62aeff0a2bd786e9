// Package realtime pushes slot changes to open booking pages over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	writeWait      = 5 * time.Second
	defaultPong    = 60 * time.Second
	sendBufferSize = 32
	maxReadBytes   = 512
)

// SlotChange tells clients to refetch slots for a doctor and date.
type SlotChange struct {
	Type     string `json:"type"`
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	// Reason is informational: booking, cancellation, holiday, schedule.
	Reason string `json:"reason,omitempty"`
}

// AllDoctors is the subscription key that receives changes for every doctor.
const AllDoctors = "*"

// client is one websocket subscriber. Only the write pump touches conn for
// writing; send is closed by the hub when the client is removed.
type client struct {
	key  string
	send chan []byte
	conn *websocket.Conn
}

// Hub fans out slot changes to websocket subscribers keyed by doctor ID.
// Broadcasting never blocks: a subscriber whose buffer is full is dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*client]struct{}
	upgrader    websocket.Upgrader
	logger      *logging.Logger
	pongWait    time.Duration
}

// NewHub creates a hub. allowedOrigins empty accepts any origin.
func NewHub(allowedOrigins []string, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		subscribers: make(map[string]map[*client]struct{}),
		logger:      logger,
		pongWait:    defaultPong,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// NotifySlotsChanged broadcasts a change for doctorID on date. An empty
// doctorID means the change affects every doctor, such as a clinic holiday.
func (h *Hub) NotifySlotsChanged(_ context.Context, doctorID, date, reason string) {
	msg := SlotChange{Type: "slots.changed", DoctorID: doctorID, Date: date, Reason: reason}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if doctorID == "" {
		h.broadcast(payload)
		return
	}
	h.broadcast(payload, doctorID, AllDoctors)
}

// Subscribers returns the number of open connections for key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[key])
}

// Routes mounts the websocket endpoints.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/doctors/{doctorID}/slots", h.ServeDoctor)
	r.Get("/slots", h.ServeAll)
	return r
}

// ServeDoctor handles GET /ws/doctors/{doctorID}/slots.
func (h *Hub) ServeDoctor(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "doctorID"))
}

// ServeAll handles GET /ws/slots, used by the admin calendar.
func (h *Hub) ServeAll(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, AllDoctors)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, key string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{key: key, send: make(chan []byte, sendBufferSize), conn: conn}
	h.add(c)
	go h.writePump(c)
	h.readPump(c)
}

// readPump keeps the read deadline moving on pongs. Clients never send
// anything meaningful, so reading only detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[c.key] == nil {
		h.subscribers[c.key] = make(map[*client]struct{})
	}
	h.subscribers[c.key][c] = struct{}{}
}

// remove unregisters c and closes its send channel. Safe to call twice.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.subscribers[c.key]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.subscribers, c.key)
	}
	close(c.send)
}

// broadcast queues payload for every subscriber under keys, or under every
// key when none are given.
func (h *Hub) broadcast(payload []byte, keys ...string) {
	var slow []*client
	h.mu.RLock()
	if len(keys) == 0 {
		for key := range h.subscribers {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		for c := range h.subscribers[key] {
			select {
			case c.send <- payload:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket subscriber", "key", c.key)
		h.remove(c)
	}
}
