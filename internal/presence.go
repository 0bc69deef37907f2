package internal

import "sync"

// PresenceUpdate is one entry on the subscription feed.
type PresenceUpdate struct {
	User   string
	Status Status
}

// PresenceTracker keeps counts of active connections per user. A user is
// online while at least one connection is live, regardless of room membership.
type PresenceTracker struct {
	mu     sync.Mutex
	online map[string]int
	subs   []chan PresenceUpdate
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{online: make(map[string]int)}
}

// Connected records one more live connection and reports whether the user
// just came online.
func (p *PresenceTracker) Connected(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID]++
	if p.online[userID] == 1 {
		p.notifyLocked(userID, StatusOnline)
		return true
	}
	return false
}

// Disconnected records one dropped connection and reports whether the user
// just went offline.
func (p *PresenceTracker) Disconnected(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	count, ok := p.online[userID]
	if !ok {
		return false
	}
	if count <= 1 {
		delete(p.online, userID)
		p.notifyLocked(userID, StatusOffline)
		return true
	}
	p.online[userID] = count - 1
	return false
}

func (p *PresenceTracker) Online(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID] > 0
}

// StatusOf reports the derived presence state for a user.
func (p *PresenceTracker) StatusOf(userID string) Status {
	if p.Online(userID) {
		return StatusOnline
	}
	return StatusOffline
}

// ActiveCount returns how many distinct users are online.
func (p *PresenceTracker) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online)
}

// Subscribe returns a feed of status changes. Updates are best effort: a
// subscriber that falls behind loses entries rather than blocking the tracker.
func (p *PresenceTracker) Subscribe() <-chan PresenceUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan PresenceUpdate, 16)
	p.subs = append(p.subs, ch)
	return ch
}

func (p *PresenceTracker) notifyLocked(userID string, status Status) {
	for _, ch := range p.subs {
		select {
		case ch <- PresenceUpdate{User: userID, Status: status}:
		default:
		}
	}
}
