package internal

import (
	"strings"

	"roomcast/pkg/logger"
)

// Router is pure dispatch: it validates inbound intents, resolves the target
// room through the hub, and invokes the room operation. Invalid input is
// answered on the originating connection only and never reaches room state.
type Router struct {
	hub     *Hub
	conns   *ConnManager
	limiter *RateLimiter
}

func NewRouter(hub *Hub, conns *ConnManager, limiter *RateLimiter) *Router {
	rt := &Router{hub: hub, conns: conns, limiter: limiter}
	conns.onOffline = rt.handleOffline
	return rt
}

// handleOffline runs when a user's last connection drops: members of shared
// rooms hear the presence flip, then the user is removed from every room.
func (rt *Router) handleOffline(user User) {
	rt.hub.BroadcastPresence(user.ID, StatusOffline)
	rt.hub.DropUser(user.ID)
}

// Dispatch routes one inbound event. origin carries the resolved identity;
// event.User has already been overwritten with it.
func (rt *Router) Dispatch(origin *Connection, event *Event) {
	switch event.Type {
	case EventJoinRoom:
		rt.join(origin, event)
	case EventLeaveRoom:
		rt.leave(origin, event)
	case EventSendMessage:
		rt.sendMessage(origin, event)
	case EventAddReaction:
		rt.addReaction(origin, event)
	case EventTyping:
		rt.typing(origin, event)
	default:
		logger.Debug("router: unknown event type %q from %s", event.Type, origin.User().ID)
		origin.Deliver(newErrorEvent(ErrInvalidEvent))
	}
}

func (rt *Router) join(origin *Connection, event *Event) {
	roomID := strings.TrimSpace(event.Room)
	if roomID == "" {
		origin.Deliver(newErrorEvent(ErrInvalidEvent))
		return
	}
	members, backlog, joined := rt.hub.Join(roomID, origin.User().ID)
	if !joined {
		// rejoin is a no-op; answer with the current roster so the client can
		// resynchronize anyway
		origin.Deliver(newRoomStateEvent(roomID, members))
		return
	}
	if len(backlog) > 0 {
		origin.Deliver(&Event{Type: EventHistory, Room: roomID, Messages: backlog})
	}
}

func (rt *Router) leave(origin *Connection, event *Event) {
	roomID := strings.TrimSpace(event.Room)
	if roomID == "" {
		origin.Deliver(newErrorEvent(ErrInvalidEvent))
		return
	}
	room := rt.hub.Get(roomID)
	if room == nil {
		origin.Deliver(newErrorEvent(ErrRoomNotFound))
		return
	}
	if _, empty := room.Leave(origin.User().ID); empty {
		rt.hub.ReleaseIfEmpty(roomID)
	}
}

func (rt *Router) sendMessage(origin *Connection, event *Event) {
	roomID := strings.TrimSpace(event.Room)
	if roomID == "" {
		origin.Deliver(newErrorEvent(ErrInvalidEvent))
		return
	}
	if strings.TrimSpace(event.Body) == "" {
		origin.Deliver(newErrorEvent(ErrEmptyContent))
		return
	}
	userID := origin.User().ID
	if !rt.limiter.Allow(userID) {
		logger.Debug("router: rate limited %s in %s", userID, roomID)
		origin.Deliver(newErrorEvent(ErrRateLimited))
		return
	}
	room := rt.hub.Get(roomID)
	if room == nil {
		origin.Deliver(newErrorEvent(ErrRoomNotFound))
		return
	}
	if _, err := room.PostMessage(userID, event.Body, event.MessageID); err != nil {
		origin.Deliver(newErrorEvent(err))
	}
}

func (rt *Router) addReaction(origin *Connection, event *Event) {
	roomID := strings.TrimSpace(event.Room)
	if roomID == "" || strings.TrimSpace(event.MessageID) == "" {
		origin.Deliver(newErrorEvent(ErrInvalidEvent))
		return
	}
	room := rt.hub.Get(roomID)
	if room == nil {
		origin.Deliver(newErrorEvent(ErrRoomNotFound))
		return
	}
	if _, err := room.React(event.MessageID); err != nil {
		origin.Deliver(newErrorEvent(err))
	}
}

func (rt *Router) typing(origin *Connection, event *Event) {
	roomID := strings.TrimSpace(event.Room)
	if roomID == "" {
		return
	}
	room := rt.hub.Get(roomID)
	if room == nil {
		// typing is best effort; nothing to relay without a live room
		return
	}
	room.Typing(origin.User().ID, event.Active)
}
