package internal

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"roomcast/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// all origins allowed in development; tighten when exposed publicly
		return true
	},
}

// Server ties the websocket endpoint and the small HTTP surface to the core.
type Server struct {
	hub      *Hub
	conns    *ConnManager
	router   *Router
	presence *PresenceTracker
	identity IdentityResolver
	metrics  *Metrics
}

func NewServer(hub *Hub, conns *ConnManager, router *Router, presence *PresenceTracker, identity IdentityResolver, metrics *Metrics) *Server {
	return &Server{
		hub:      hub,
		conns:    conns,
		router:   router,
		presence: presence,
		identity: identity,
		metrics:  metrics,
	}
}

// ServeWS resolves identity, upgrades the request and starts the connection
// pumps. A `room` query parameter is a convenience join: it is dispatched as
// a regular join intent so the path stays single.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	roomKey := r.URL.Query().Get("room")

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("upgrade error: %v", err)
		return
	}

	conn := newConnection(s.conns, sock, user)
	s.conns.Register(conn)
	go conn.writePump()

	if roomKey != "" {
		s.router.Dispatch(conn, &Event{Type: EventJoinRoom, Room: roomKey, User: user.ID})
	}
	go conn.readPump(s.router)
}

// HandleRoomExists probes for a live room without creating it.
func (s *Server) HandleRoomExists(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	if s.hub.Exists(room) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// HandleStatus reports the derived presence of a user.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user":   user,
		"status": string(s.presence.StatusOf(user)),
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"rooms":        s.hub.RoomCount(),
		"online_users": s.presence.ActiveCount(),
	})
}

// MetricsHandler exposes the counters as JSON.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

// Routes registers every handler on the mux. wsPath is where clients connect.
func (s *Server) Routes(mux *http.ServeMux, wsPath string) {
	mux.HandleFunc(wsPath, s.ServeWS)
	mux.HandleFunc("/exists", s.HandleRoomExists)
	mux.HandleFunc("/status", s.HandleStatus)
	mux.HandleFunc("/healthz", s.HandleHealth)
	mux.Handle("/metrics", s.MetricsHandler())
}

// Shutdown closes every live connection.
func (s *Server) Shutdown() {
	s.conns.CloseAll()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
