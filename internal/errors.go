package internal

import "errors"

// Error codes carried on outbound error events.
const (
	CodeInvalidEvent   = "invalid_event"
	CodeEmptyContent   = "empty_content"
	CodeUnknownMessage = "unknown_message"
	CodeRoomNotFound   = "room_not_found"
	CodeDuplicateID    = "duplicate_message"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal"
)

var (
	// ErrEmptyContent rejects messages that are blank after trimming.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrUnknownMessage is returned when a reaction references a message id
	// the room has never seen or has already evicted.
	ErrUnknownMessage = errors.New("unknown message id")
	// ErrRoomNotFound is returned for operations against a room the registry
	// has no live entry for. The client may resynchronize by rejoining.
	ErrRoomNotFound = errors.New("room not found")
	// ErrDuplicateID rejects a client-supplied message id already used in the room.
	ErrDuplicateID = errors.New("duplicate message id")
	// ErrInvalidEvent rejects envelopes with a missing or unknown type, or
	// required fields left blank.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrRateLimited rejects sends over the per-user flood limit.
	ErrRateLimited = errors.New("sending too fast, slow down")
)

// CodeOf maps an error to the wire code for error events.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrEmptyContent):
		return CodeEmptyContent
	case errors.Is(err, ErrUnknownMessage):
		return CodeUnknownMessage
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrDuplicateID):
		return CodeDuplicateID
	case errors.Is(err, ErrInvalidEvent):
		return CodeInvalidEvent
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
