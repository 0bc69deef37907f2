package internal

// EventType discriminates the JSON envelopes exchanged over a connection.
type EventType string

// Inbound intents.
const (
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventSendMessage EventType = "send_message"
	EventAddReaction EventType = "add_reaction"
	EventTyping      EventType = "typing"
)

// Outbound notifications.
const (
	EventMessage   EventType = "message"
	EventReaction  EventType = "reaction"
	EventPresence  EventType = "presence"
	EventRoomState EventType = "room_state"
	EventHistory   EventType = "history"
	EventError     EventType = "error"
)

// Event is the envelope both directions share. Fields are sparse; which ones
// are set depends on Type. On inbound events the server overwrites User with
// the identity bound to the connection, so clients cannot spoof each other.
type Event struct {
	Type      EventType `json:"type"`
	Room      string    `json:"room,omitempty"`
	User      string    `json:"user,omitempty"`
	Body      string    `json:"body,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Active    bool      `json:"active,omitempty"`
	Status    string    `json:"status,omitempty"`
	Members   []string  `json:"members,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Reactions int64     `json:"reactions,omitempty"`
	Code      string    `json:"code,omitempty"`
}

func newMessageEvent(msg *Message) *Event {
	return &Event{Type: EventMessage, Room: msg.Room, Message: msg}
}

func newReactionEvent(roomID string, msg *Message) *Event {
	return &Event{Type: EventReaction, Room: roomID, MessageID: msg.ID, Reactions: msg.Reactions}
}

func newTypingEvent(roomID, userID string, active bool) *Event {
	return &Event{Type: EventTyping, Room: roomID, User: userID, Active: active}
}

func newPresenceEvent(userID string, status Status) *Event {
	return &Event{Type: EventPresence, User: userID, Status: string(status)}
}

func newRoomStateEvent(roomID string, members []string) *Event {
	return &Event{Type: EventRoomState, Room: roomID, Members: members}
}

func newErrorEvent(err error) *Event {
	return &Event{Type: EventError, Code: CodeOf(err), Body: err.Error()}
}
