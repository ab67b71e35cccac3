// Package ws pushes live fleet state to dashboard clients over
// WebSocket. The engine's callbacks feed the hub; each connected client
// gets every vehicle movement and delivery event.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// Message is the envelope pushed to clients.
type Message struct {
	Type       string            `json:"type"`
	Vehicles   []models.Vehicle  `json:"vehicles,omitempty"`
	Deliveries []models.Delivery `json:"deliveries,omitempty"`
	ServerTime int64             `json:"serverTime"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub owns the set of connected dashboard clients.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	upgrader    websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uint64]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP lets the hub be mounted directly on a mux.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// ServeWS upgrades the request and keeps the connection registered
// until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	id := h.nextID.Add(1)
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	log.WithField("client_id", id).Debug("Dashboard client connected")

	// Clients never send application data; the read loop only notices
	// the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.subscribers, id)
	h.mu.Unlock()
	conn.Close()

	log.WithField("client_id", id).Debug("Dashboard client disconnected")
}

// BroadcastVehicles pushes a vehicle movement snapshot.
func (h *Hub) BroadcastVehicles(vehicles []models.Vehicle) {
	h.broadcast(Message{Type: "vehicles", Vehicles: vehicles})
}

// BroadcastDeliveries pushes a delivery event snapshot.
func (h *Hub) BroadcastDeliveries(deliveries []models.Delivery) {
	h.broadcast(Message{Type: "deliveries", Deliveries: deliveries})
}

func (h *Hub) broadcast(msg Message) {
	msg.ServerTime = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("Failed to marshal push message")
		return
	}

	h.mu.Lock()
	subs := make(map[uint64]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.send(data); err != nil {
			log.WithFields(log.Fields{"client_id": id}).WithError(err).Debug("Dropping dashboard client")
			sub.conn.Close()
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
		}
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		sub.conn.Close()
		delete(h.subscribers, id)
	}
}
