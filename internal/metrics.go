package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics holds service counters cheap enough to bump on every hot path.
type Metrics struct {
	activeConns    atomic.Int64
	activeRooms    atomic.Int64
	messages       atomic.Uint64
	reactions      atomic.Uint64
	deliveryMisses atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn()     { m.activeConns.Add(1) }
func (m *Metrics) DecConn()     { m.activeConns.Add(-1) }
func (m *Metrics) IncRoom()     { m.activeRooms.Add(1) }
func (m *Metrics) DecRoom()     { m.activeRooms.Add(-1) }
func (m *Metrics) IncMessage()  { m.messages.Add(1) }
func (m *Metrics) IncReaction() { m.reactions.Add(1) }
func (m *Metrics) IncMiss()     { m.deliveryMisses.Add(1) }

// Misses returns the delivery-miss total, mostly for tests.
func (m *Metrics) Misses() uint64 { return m.deliveryMisses.Load() }

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"active_connections":    m.activeConns.Load(),
		"active_rooms":          m.activeRooms.Load(),
		"messages_total":        m.messages.Load(),
		"reactions_total":       m.reactions.Load(),
		"delivery_misses_total": m.deliveryMisses.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
