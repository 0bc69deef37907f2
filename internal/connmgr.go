package internal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roomcast/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192
	sendBuffer = 256
)

// Connection binds one websocket to one user. A user may hold several live
// connections at once (multi-tab); every one of them receives that user's
// events.
type Connection struct {
	id   string
	user User
	sock *websocket.Conn
	send chan []byte
	mgr  *ConnManager

	// sendMu serializes enqueue against closeSend: broadcasts run on other
	// users' goroutines, so without it a disconnect could close send while a
	// fan-out is mid-enqueue and panic the whole process.
	sendMu sync.Mutex
	closed bool
}

func newConnection(mgr *ConnManager, sock *websocket.Conn, user User) *Connection {
	return &Connection{
		id:   uuid.NewString(),
		user: user,
		sock: sock,
		send: make(chan []byte, sendBuffer),
		mgr:  mgr,
	}
}

// User returns the identity this connection was resolved to.
func (c *Connection) User() User {
	return c.user
}

// Deliver queues one event for this connection only. Used for replies that
// must not fan out to the user's other tabs, such as validation errors.
func (c *Connection) Deliver(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("encode event: %v", err)
		return
	}
	if !c.enqueue(payload) {
		c.mgr.miss(c)
	}
}

func (c *Connection) enqueue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// dispatcher is what the read loop hands decoded events to.
type dispatcher interface {
	Dispatch(origin *Connection, event *Event)
}

func (c *Connection) readPump(d dispatcher) {
	defer func() {
		c.mgr.Unregister(c)
		c.sock.Close()
	}()
	c.sock.SetReadLimit(maxMsgSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.sock.ReadMessage()
		if err != nil {
			// normal close or read error, deferred cleanup takes over
			break
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.Deliver(newErrorEvent(ErrInvalidEvent))
			continue
		}
		// the connection's bound identity is authoritative
		event.User = c.user.ID
		d.Dispatch(c, &event)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ConnManager owns the live connection table and maps user ids to their
// connections. Presence flips and last-disconnect cleanup hang off Register
// and Unregister.
type ConnManager struct {
	mu       sync.RWMutex
	byUser   map[string]map[*Connection]bool
	presence *PresenceTracker
	metrics  *Metrics

	// onOffline runs after a user's last connection is gone; wiring points it
	// at room cleanup. Set before the first Register, never after.
	onOffline func(user User)
}

func NewConnManager(presence *PresenceTracker, metrics *Metrics) *ConnManager {
	return &ConnManager{
		byUser:   make(map[string]map[*Connection]bool),
		presence: presence,
		metrics:  metrics,
	}
}

// Register adds the connection to the table and flips presence if this is the
// user's first live connection.
func (m *ConnManager) Register(c *Connection) {
	m.mu.Lock()
	set, ok := m.byUser[c.user.ID]
	if !ok {
		set = make(map[*Connection]bool)
		m.byUser[c.user.ID] = set
	}
	set[c] = true
	m.mu.Unlock()

	m.metrics.IncConn()
	if m.presence.Connected(c.user.ID) {
		logger.Info("user %s online", c.user.ID)
	}
	logger.Debug("connection %s registered for %s", c.id, c.user.ID)
}

// Unregister removes the connection. When it was the user's last one, presence
// flips offline and the offline hook fires.
func (m *ConnManager) Unregister(c *Connection) {
	m.mu.Lock()
	set, ok := m.byUser[c.user.ID]
	if ok {
		if _, present := set[c]; !present {
			ok = false
		} else {
			delete(set, c)
			if len(set) == 0 {
				delete(m.byUser, c.user.ID)
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	c.closeSend()
	m.metrics.DecConn()
	if m.presence.Disconnected(c.user.ID) {
		logger.Info("user %s offline", c.user.ID)
		if m.onOffline != nil {
			m.onOffline(c.user)
		}
	}
}

// Send delivers one event to every live connection of the user. Best effort:
// an offline user or a full send buffer is a logged miss, never an error to
// the caller.
func (m *ConnManager) Send(userID string, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("encode event: %v", err)
		return
	}
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.byUser[userID]))
	for c := range m.byUser[userID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	if len(conns) == 0 {
		m.metrics.IncMiss()
		logger.Debug("delivery miss: %s has no live connection", userID)
		return
	}
	for _, c := range conns {
		if !c.enqueue(payload) {
			m.miss(c)
		}
	}
}

// miss handles a connection whose send buffer is full. The socket is closed so
// the read pump unwinds through the normal Unregister path; the slow client
// reconnects if it wants back in.
func (m *ConnManager) miss(c *Connection) {
	m.metrics.IncMiss()
	logger.Error("delivery miss: dropping slow connection %s (%s)", c.id, c.user.ID)
	if c.sock != nil {
		_ = c.sock.Close()
	}
}

// CloseAll tears down every live connection, used on shutdown.
func (m *ConnManager) CloseAll() {
	m.mu.RLock()
	conns := make([]*Connection, 0)
	for _, set := range m.byUser {
		for c := range set {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()
	for _, c := range conns {
		if c.sock != nil {
			_ = c.sock.Close()
		}
	}
}
