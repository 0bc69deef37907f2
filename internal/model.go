package internal

import "context"

// User is the logical identity a connection is bound to. Where it comes from
// (directory, auth gateway, query param) is the resolver's business.
type User struct {
	ID   string
	Name string
}

// Status is the presence state derived from live connections.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Message is a chat message accepted by a room. Immutable once broadcast,
// except for the reaction counter.
type Message struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Seq       uint64 `json:"seq"`
	Ts        int64  `json:"ts"`
	Reactions int64  `json:"reactions"`
}

// History is the optional durable-store collaborator. The core never requires
// one; without it message backlog lives only in room memory.
type History interface {
	Append(ctx context.Context, msg *Message) error
	Recent(ctx context.Context, roomID string, limit int) ([]Message, error)
}

// Directory is the user-lookup collaborator backing identity resolution.
type Directory interface {
	UpsertUser(ctx context.Context, id, name string) error
	GetUserName(ctx context.Context, id string) (string, error)
}

// Sender delivers one event to every live connection of a user.
// Delivery is best effort; a user with no connections is a silent miss.
type Sender interface {
	Send(userID string, event *Event)
}
