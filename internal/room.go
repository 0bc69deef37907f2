package internal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomcast/pkg/logger"
)

const (
	// roomLogLimit caps the in-memory message ring kept for reaction lookups
	// and for join backlog when no history store is attached.
	roomLogLimit = 256

	historyTimeout = 2 * time.Second
)

// Room scopes membership and message ordering for one channel. All mutating
// operations serialize on the room mutex; sequence assignment and fan-out for
// a message happen under the same hold, so every member observes the same
// order. Rooms never block each other.
type Room struct {
	id      string
	conns   Sender
	history History
	metrics *Metrics

	typingTTL time.Duration
	backlog   int

	mu        sync.Mutex
	dead      bool
	members   map[string]bool
	seq       uint64
	log       []*Message
	byID      map[string]*Message
	typing    map[string]*typingState
	typingGen uint64 // generation counter for typing timers
}

type typingState struct {
	timer *time.Timer
	gen   uint64
}

func newRoom(id string, conns Sender, history History, metrics *Metrics, typingTTL time.Duration, backlog int) *Room {
	return &Room{
		id:        id,
		conns:     conns,
		history:   history,
		metrics:   metrics,
		typingTTL: typingTTL,
		backlog:   backlog,
		members:   make(map[string]bool),
		byID:      make(map[string]*Message),
		typing:    make(map[string]*typingState),
	}
}

// ID returns the room key.
func (r *Room) ID() string {
	return r.id
}

// Size returns the current member count.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a sorted snapshot of member user ids.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

func (r *Room) membersLocked() []string {
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the user is currently joined.
func (r *Room) Contains(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[userID]
}

// Join adds the user and announces the new roster to every member. Rejoining
// is a no-op. The returned backlog is the recent message history the joiner
// should be seeded with; it comes from the attached history store when there
// is one, otherwise from the in-memory ring.
//
// With a history store attached the backlog is read after the membership
// update, so a message posted in between can arrive both live and in the
// backlog, or in neither when its async store write has not landed yet.
// Sequence numbers make the overlap detectable: clients drop backlog entries
// whose seq they have already seen.
//
// Returns ErrRoomNotFound when the room has been retired by the registry;
// callers resolve a fresh room through the hub and retry.
func (r *Room) Join(userID string) (members []string, backlog []Message, joined bool, err error) {
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return nil, nil, false, ErrRoomNotFound
	}
	if r.members[userID] {
		members = r.membersLocked()
		r.mu.Unlock()
		return members, nil, false, nil
	}
	r.members[userID] = true
	members = r.membersLocked()
	r.broadcastLocked(newRoomStateEvent(r.id, members))
	if r.history == nil {
		for _, msg := range r.tailLocked(r.backlog) {
			backlog = append(backlog, *msg)
		}
	}
	r.mu.Unlock()

	if r.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		recent, err := r.history.Recent(ctx, r.id, r.backlog)
		if err != nil {
			logger.Error("room %s: history fetch: %v", r.id, err)
		} else {
			backlog = recent
		}
	}
	logger.Debug("room %s: %s joined (%d members)", r.id, userID, len(members))
	return members, backlog, true, nil
}

// retire marks the room dead so late joiners holding a stale pointer bounce
// back to the registry. Refused while anyone is still a member.
func (r *Room) retire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 || r.dead {
		return false
	}
	r.dead = true
	return true
}

// Leave removes the user and announces the shrunk roster. Reports whether the
// user was a member and whether the room is now empty.
func (r *Room) Leave(userID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[userID] {
		return false, len(r.members) == 0
	}
	delete(r.members, userID)
	r.stopTypingLocked(userID)
	r.broadcastLocked(newRoomStateEvent(r.id, r.membersLocked()))
	logger.Debug("room %s: %s left (%d members)", r.id, userID, len(r.members))
	return true, len(r.members) == 0
}

// PostMessage validates, sequences and fans out one message. The sequence
// number is assigned and the event queued to every member under a single hold
// of the room mutex, so no later message can overtake it anywhere. The author
// receives the echo too; the broadcast is the single source of truth for all
// clients, author included.
//
// clientID is an optional client-supplied message id; when blank the server
// assigns one. A clientID already used in this room is rejected.
func (r *Room) PostMessage(authorID, body, clientID string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyContent
	}

	r.mu.Lock()
	if clientID != "" {
		if _, taken := r.byID[clientID]; taken {
			r.mu.Unlock()
			return nil, ErrDuplicateID
		}
	}
	id := clientID
	if id == "" {
		id = uuid.NewString()
	}
	r.seq++
	msg := &Message{
		ID:     id,
		Room:   r.id,
		Author: authorID,
		Body:   body,
		Seq:    r.seq,
		Ts:     time.Now().Unix(),
	}
	r.appendLocked(msg)
	// sending supersedes any live typing indicator from the author
	if r.stopTypingLocked(authorID) {
		r.broadcastExceptLocked(newTypingEvent(r.id, authorID, false), authorID)
	}
	r.broadcastLocked(newMessageEvent(msg))
	r.mu.Unlock()

	r.metrics.IncMessage()
	if r.history != nil {
		go r.appendHistory(msg)
	}
	return msg, nil
}

// React bumps the reaction counter on a message this room still remembers and
// fans the new count out to every member. There is no reactor identity and no
// dedup: reacting twice counts twice.
func (r *Room) React(messageID string) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.byID[messageID]
	if !ok {
		return nil, ErrUnknownMessage
	}
	msg.Reactions++
	r.broadcastLocked(newReactionEvent(r.id, msg))
	r.metrics.IncReaction()
	return msg, nil
}

// Typing relays a composition signal to every member except the sender.
// Last write wins; an active signal expires on its own after typingTTL with
// no further activity, so a vanished client cannot leave a stale indicator.
func (r *Room) Typing(userID string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !active {
		r.stopTypingLocked(userID)
		r.broadcastExceptLocked(newTypingEvent(r.id, userID, false), userID)
		return
	}
	r.typingGen++
	gen := r.typingGen
	if st, ok := r.typing[userID]; ok {
		st.timer.Stop()
	}
	r.typing[userID] = &typingState{
		gen:   gen,
		timer: time.AfterFunc(r.typingTTL, func() { r.expireTyping(userID, gen) }),
	}
	r.broadcastExceptLocked(newTypingEvent(r.id, userID, true), userID)
}

func (r *Room) expireTyping(userID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.typing[userID]
	if !ok || st.gen != gen {
		// a newer signal superseded this timer
		return
	}
	delete(r.typing, userID)
	r.broadcastExceptLocked(newTypingEvent(r.id, userID, false), userID)
}

// stopTypingLocked cancels any pending expiry and reports whether the user
// had an active indicator.
func (r *Room) stopTypingLocked(userID string) bool {
	st, ok := r.typing[userID]
	if !ok {
		return false
	}
	st.timer.Stop()
	delete(r.typing, userID)
	return true
}

func (r *Room) appendLocked(msg *Message) {
	r.log = append(r.log, msg)
	r.byID[msg.ID] = msg
	if len(r.log) > roomLogLimit {
		evicted := r.log[0]
		r.log = r.log[1:]
		delete(r.byID, evicted.ID)
	}
}

func (r *Room) tailLocked(n int) []*Message {
	if n <= 0 || n > len(r.log) {
		n = len(r.log)
	}
	return r.log[len(r.log)-n:]
}

func (r *Room) appendHistory(msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := r.history.Append(ctx, msg); err != nil {
		// history is a collaborator, not the source of truth: the broadcast
		// already happened and stands
		logger.Error("room %s: history append: %v", r.id, err)
	}
}

func (r *Room) broadcastLocked(event *Event) {
	for id := range r.members {
		r.conns.Send(id, event)
	}
}

func (r *Room) broadcastExceptLocked(event *Event, skipUserID string) {
	for id := range r.members {
		if id == skipUserID {
			continue
		}
		r.conns.Send(id, event)
	}
}

// BroadcastPresence pushes a presence change to every member, provided the
// subject is (still) one of them.
func (r *Room) BroadcastPresence(userID string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[userID] {
		return
	}
	r.broadcastLocked(newPresenceEvent(userID, status))
}
