package internal

import (
	"errors"
	"net/http"
	"strings"

	"roomcast/pkg/logger"
)

// IdentityResolver maps a transport-level request to a logical user before
// the websocket upgrade. Swapping in a real directory or auth gateway happens
// here; the core only ever sees the resolved User.
type IdentityResolver interface {
	Resolve(r *http.Request) (User, error)
}

// ErrNoIdentity is returned when a request carries no resolvable identity.
var ErrNoIdentity = errors.New("missing user identity")

// QueryIdentity resolves identity from the `user` and `name` query
// parameters. When a directory is attached, supplied names are recorded and
// missing ones looked up, so display names survive reconnects.
type QueryIdentity struct {
	Directory Directory
}

func (q QueryIdentity) Resolve(r *http.Request) (User, error) {
	id := strings.TrimSpace(r.URL.Query().Get("user"))
	if id == "" {
		return User{}, ErrNoIdentity
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if q.Directory != nil {
		if name != "" {
			if err := q.Directory.UpsertUser(r.Context(), id, name); err != nil {
				logger.Error("identity: upsert %s: %v", id, err)
			}
		} else if known, err := q.Directory.GetUserName(r.Context(), id); err == nil {
			name = known
		}
	}
	if name == "" {
		name = id
	}
	return User{ID: id, Name: name}, nil
}
