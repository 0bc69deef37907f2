package internal

import (
	"testing"
	"time"
)

type routerFixture struct {
	mgr    *ConnManager
	hub    *Hub
	router *Router
}

func newRouterFixture(rateLimit int) *routerFixture {
	metrics := NewMetrics()
	presence := NewPresenceTracker()
	mgr := NewConnManager(presence, metrics)
	hub := NewHub(mgr, nil, metrics, time.Minute, 0, 50)
	router := NewRouter(hub, mgr, NewRateLimiter(rateLimit, time.Minute))
	return &routerFixture{mgr: mgr, hub: hub, router: router}
}

func (f *routerFixture) connect(userID string) *Connection {
	c := newConnection(f.mgr, nil, User{ID: userID, Name: userID})
	f.mgr.Register(c)
	return c
}

func pick(events []Event, kind EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestJoinCreatesRoomAndBroadcastsRoster(t *testing.T) {
	f := newRouterFixture(100)
	alice := f.connect("alice")
	bob := f.connect("bob")

	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "general"})
	if !f.hub.Exists("general") {
		t.Fatalf("join did not create the room")
	}
	f.router.Dispatch(bob, &Event{Type: EventJoinRoom, Room: "general"})

	states := pick(drainEvents(t, alice), EventRoomState)
	if len(states) != 2 {
		t.Fatalf("alice saw %d roster updates", len(states))
	}
	got := states[len(states)-1].Members
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("final roster: %v", got)
	}
}

func TestRejoinAnswersWithRoster(t *testing.T) {
	f := newRouterFixture(100)
	alice := f.connect("alice")
	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "general"})
	drainEvents(t, alice)

	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "general"})
	got := drainEvents(t, alice)
	if len(got) != 1 || got[0].Type != EventRoomState {
		t.Fatalf("rejoin reply: %+v", got)
	}
	if f.hub.Get("general").Size() != 1 {
		t.Fatalf("rejoin changed membership")
	}
}

// Mirrors the canonical two-user exchange: both in "general", two messages in
// order, two undeduplicated reactions on the first.
func TestTwoUserExchange(t *testing.T) {
	f := newRouterFixture(100)
	alice := f.connect("alice")
	bob := f.connect("bob")
	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "general"})
	f.router.Dispatch(bob, &Event{Type: EventJoinRoom, Room: "general"})
	drainEvents(t, alice)
	drainEvents(t, bob)

	f.router.Dispatch(alice, &Event{Type: EventSendMessage, Room: "general", Body: "hi"})
	f.router.Dispatch(bob, &Event{Type: EventSendMessage, Room: "general", Body: "yo"})

	var firstID string
	for _, c := range []*Connection{alice, bob} {
		msgs := pick(drainEvents(t, c), EventMessage)
		if len(msgs) != 2 {
			t.Fatalf("%s received %d messages", c.user.ID, len(msgs))
		}
		if msgs[0].Message.Seq != 1 || msgs[0].Message.Body != "hi" {
			t.Fatalf("first message wrong: %+v", msgs[0].Message)
		}
		if msgs[1].Message.Seq != 2 || msgs[1].Message.Body != "yo" {
			t.Fatalf("second message wrong: %+v", msgs[1].Message)
		}
		firstID = msgs[0].Message.ID
	}

	f.router.Dispatch(alice, &Event{Type: EventAddReaction, Room: "general", MessageID: firstID})
	f.router.Dispatch(alice, &Event{Type: EventAddReaction, Room: "general", MessageID: firstID})
	for _, c := range []*Connection{alice, bob} {
		reactions := pick(drainEvents(t, c), EventReaction)
		if len(reactions) != 2 {
			t.Fatalf("%s received %d reaction events", c.user.ID, len(reactions))
		}
		if reactions[0].Reactions != 1 || reactions[1].Reactions != 2 {
			t.Fatalf("%s observed counts %d, %d", c.user.ID, reactions[0].Reactions, reactions[1].Reactions)
		}
	}
}

func TestValidationErrorsStayLocal(t *testing.T) {
	f := newRouterFixture(100)
	alice := f.connect("alice")
	bob := f.connect("bob")
	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "general"})
	f.router.Dispatch(bob, &Event{Type: EventJoinRoom, Room: "general"})
	drainEvents(t, alice)
	drainEvents(t, bob)

	cases := []struct {
		event *Event
		code  string
	}{
		{&Event{Type: EventSendMessage, Room: "general", Body: "  "}, CodeEmptyContent},
		{&Event{Type: EventSendMessage, Room: "nowhere", Body: "hi"}, CodeRoomNotFound},
		{&Event{Type: EventAddReaction, Room: "general", MessageID: "nope"}, CodeUnknownMessage},
		{&Event{Type: EventAddReaction, Room: "general"}, CodeInvalidEvent},
		{&Event{Type: EventType("bogus")}, CodeInvalidEvent},
		{&Event{Type: EventLeaveRoom, Room: "nowhere"}, CodeRoomNotFound},
	}
	for _, tc := range cases {
		f.router.Dispatch(alice, tc.event)
		got := drainEvents(t, alice)
		if len(got) != 1 || got[0].Type != EventError || got[0].Code != tc.code {
			t.Fatalf("event %+v: got %+v, want code %s", tc.event, got, tc.code)
		}
		if leaked := drainEvents(t, bob); len(leaked) != 0 {
			t.Fatalf("error for %+v leaked to bob: %+v", tc.event, leaked)
		}
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newRouterFixture(1)
	alice := f.connect("alice")
	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "general"})
	drainEvents(t, alice)

	f.router.Dispatch(alice, &Event{Type: EventSendMessage, Room: "general", Body: "one"})
	f.router.Dispatch(alice, &Event{Type: EventSendMessage, Room: "general", Body: "two"})

	got := drainEvents(t, alice)
	if msgs := pick(got, EventMessage); len(msgs) != 1 {
		t.Fatalf("expected exactly one accepted message, got %d", len(msgs))
	}
	errs := pick(got, EventError)
	if len(errs) != 1 || errs[0].Code != CodeRateLimited {
		t.Fatalf("expected rate_limited error, got %+v", errs)
	}
}

func TestTypingForUnknownRoomIsDropped(t *testing.T) {
	f := newRouterFixture(100)
	alice := f.connect("alice")
	f.router.Dispatch(alice, &Event{Type: EventTyping, Room: "nowhere", Active: true})
	if got := drainEvents(t, alice); len(got) != 0 {
		t.Fatalf("typing relay errored: %+v", got)
	}
}

func TestLastDisconnectLeavesEveryRoom(t *testing.T) {
	f := newRouterFixture(100)
	alice := f.connect("alice")
	bob := f.connect("bob")
	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "general"})
	f.router.Dispatch(alice, &Event{Type: EventJoinRoom, Room: "random"})
	f.router.Dispatch(bob, &Event{Type: EventJoinRoom, Room: "general"})
	drainEvents(t, alice)
	drainEvents(t, bob)

	f.mgr.Unregister(alice)

	room := f.hub.Get("general")
	if room == nil || room.Contains("alice") {
		t.Fatalf("alice still in general after disconnect")
	}
	if f.hub.Exists("random") {
		t.Fatalf("emptied room survived the disconnect")
	}

	got := drainEvents(t, bob)
	presence := pick(got, EventPresence)
	if len(presence) != 1 || presence[0].User != "alice" || presence[0].Status != string(StatusOffline) {
		t.Fatalf("bob missed the offline flip: %+v", presence)
	}
	states := pick(got, EventRoomState)
	if len(states) != 1 || len(states[0].Members) != 1 || states[0].Members[0] != "bob" {
		t.Fatalf("bob missed the roster shrink: %+v", states)
	}
}
