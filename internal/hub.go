package internal

import (
	"sync"
	"time"

	"roomcast/pkg/logger"
)

// Hub is the room registry: rooms are created lazily on first join and
// garbage-collected once empty, after a grace period that absorbs
// reconnect races.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	conns   Sender
	history History
	metrics *Metrics

	typingTTL time.Duration
	gcGrace   time.Duration
	backlog   int
}

func NewHub(conns Sender, history History, metrics *Metrics, typingTTL, gcGrace time.Duration, backlog int) *Hub {
	return &Hub{
		rooms:     make(map[string]*Room),
		conns:     conns,
		history:   history,
		metrics:   metrics,
		typingTTL: typingTTL,
		gcGrace:   gcGrace,
		backlog:   backlog,
	}
}

// Exists reports whether a room with the given id is currently live, without
// creating it. Backs the lightweight /exists probe.
func (h *Hub) Exists(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[id]
	return ok
}

// Get returns the live room or nil.
func (h *Hub) Get(id string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[id]
}

// GetOrCreate returns the existing room or atomically creates an empty one.
// Concurrent calls for the same unseen id yield exactly one room.
func (h *Hub) GetOrCreate(id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[id]; ok {
		return room
	}
	room := newRoom(id, h.conns, h.history, h.metrics, h.typingTTL, h.backlog)
	h.rooms[id] = room
	h.metrics.IncRoom()
	logger.Info("room %s created", id)
	return room
}

// ReleaseIfEmpty schedules deletion of the room if its membership is empty.
// With a grace period configured the check re-runs after the delay, so a
// client that drops and rejoins quickly keeps the room (and its in-memory
// log) alive.
func (h *Hub) ReleaseIfEmpty(id string) {
	if h.gcGrace <= 0 {
		h.reap(id)
		return
	}
	time.AfterFunc(h.gcGrace, func() { h.reap(id) })
}

func (h *Hub) reap(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	if !ok || !room.retire() {
		return
	}
	delete(h.rooms, id)
	h.metrics.DecRoom()
	logger.Info("room %s reclaimed", id)
}

// Join resolves the room through the registry, creating it if needed, and adds
// the user. A room retired between resolution and join answers with
// ErrRoomNotFound and the join retries against a fresh room, so a joiner can
// never be stranded in a room the registry no longer serves.
func (h *Hub) Join(roomID, userID string) (members []string, backlog []Message, joined bool) {
	for {
		room := h.GetOrCreate(roomID)
		members, backlog, joined, err := room.Join(userID)
		if err == nil {
			return members, backlog, joined
		}
	}
}

// RoomCount returns the number of live rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// DropUser removes the user from every room they had joined, announcing the
// membership change per room. Used when a user's last connection is gone;
// membership is a runtime view and is not restored on reconnect.
func (h *Hub) DropUser(userID string) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	for _, room := range rooms {
		if removed, empty := room.Leave(userID); removed && empty {
			h.ReleaseIfEmpty(room.ID())
		}
	}
}

// BroadcastPresence pushes a status change into every room the user is a
// member of. Weakly ordered with respect to messages; a lost update is
// corrected by the next roster broadcast.
func (h *Hub) BroadcastPresence(userID string, status Status) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	for _, room := range rooms {
		room.BroadcastPresence(userID, status)
	}
}
