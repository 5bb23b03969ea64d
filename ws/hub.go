// Package ws streams session events to connected players.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"fairplay/config"
	"fairplay/fairness"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event types pushed to subscribers.
const (
	EventDerived  = "derived"
	EventRevealed = "revealed"
)

// Event is one message on a session feed.
type Event struct {
	Type      string           `json:"type"`
	SessionID string           `json:"sessionId"`
	Entry     *fairness.Entry  `json:"entry,omitempty"`
	Reveal    *fairness.Reveal `json:"reveal,omitempty"`
}

// client is one websocket subscribed to a single session.
type client struct {
	id         string
	session    string
	conn       *websocket.Conn
	send       chan []byte
	writeMutex sync.Mutex
}

// Hub fans protocol events out to the subscribers of each session. It
// implements fairness.Notifier.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*client]struct{})}
}

// Derived pushes a freshly derived entry to the session's subscribers.
func (h *Hub) Derived(sessionID string, e fairness.Entry) {
	h.broadcast(Event{Type: EventDerived, SessionID: sessionID, Entry: &e})
}

// Revealed pushes the reveal to the session's subscribers.
func (h *Hub) Revealed(r fairness.Reveal) {
	h.broadcast(Event{Type: EventRevealed, SessionID: r.SessionID, Reveal: &r})
}

// Subscribers returns the number of live connections for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.subs[c.session]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.session] = set
	}
	set[c] = struct{}{}
	total := len(set)
	h.mu.Unlock()

	log.WithFields(log.Fields{"client": c.id, "session": c.session, "subscribers": total}).Info("Client subscribed")
}

// unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set := h.subs[c.session]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, c.session)
	}
	close(c.send)
	log.WithFields(log.Fields{"client": c.id, "session": c.session}).Info("Client unsubscribed")
}

func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).WithField("session", ev.SessionID).Error("Failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs[ev.SessionID] {
		select {
		case c.send <- data:
		default:
			// A subscriber that cannot keep up would miss draws; drop it so
			// it reconnects and refetches the log.
			log.WithField("client", c.id).Warn("Send buffer full, dropping client")
			h.removeLocked(c)
		}
	}
}

// ServeSession upgrades the request and subscribes it to sessionID. The
// caller is responsible for checking the session exists.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("remote", r.RemoteAddr).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:      uuid.NewString(),
		session: sessionID,
		conn:    conn,
		send:    make(chan []byte, config.WSSendBuffer),
	}
	h.register(c)

	go c.writePump()
	go c.readPump(h)
}

// writePump sends queued events and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				log.WithError(err).WithField("client", c.id).Debug("Write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
	return c.conn.WriteMessage(messageType, data)
}

// readPump discards client frames; the feed is one-way. It exists to process
// pongs and notice disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("client", c.id).Warn("Read error")
			}
			return
		}
	}
}
