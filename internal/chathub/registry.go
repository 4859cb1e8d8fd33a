package chathub

import (
	"sync"

	"supportchat/backend/internal/models"
)

// Registry is the in-memory presence map: user id to live connections, plus
// per-connection room subscriptions. It is the only shared mutable state of
// the chat core and is safe for concurrent use.
//
// Presence is process-local. A multi-process deployment shares messages via
// the Redis broadcast channel instead of sharing presence.
type Registry struct {
	mu sync.RWMutex

	// byUser maps a user id to every live connection of that user.
	byUser map[string][]Client
	// rooms maps a conversation id to the connections subscribed to its
	// live event stream.
	rooms map[string]map[Client]struct{}
	// joined is the reverse index used to clean up on unregister.
	joined map[Client]map[string]struct{}
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string][]Client),
		rooms:  make(map[string]map[Client]struct{}),
		joined: make(map[Client]map[string]struct{}),
	}
}

// Register records a connection after identity resolution succeeded.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[c.GetUserID()] = append(r.byUser[c.GetUserID()], c)
}

// Unregister removes a connection and all its room subscriptions. It is
// idempotent: a second call for the same connection, or a call for an unknown
// one, returns false and changes nothing.
func (r *Registry) Unregister(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[c.GetUserID()]
	if !ok {
		return false
	}
	found := false
	kept := conns[:0]
	for _, conn := range conns {
		if conn == c {
			found = true
			continue
		}
		kept = append(kept, conn)
	}
	if !found {
		return false
	}
	if len(kept) == 0 {
		delete(r.byUser, c.GetUserID())
	} else {
		r.byUser[c.GetUserID()] = kept
	}

	for roomID := range r.joined[c] {
		delete(r.rooms[roomID], c)
		if len(r.rooms[roomID]) == 0 {
			delete(r.rooms, roomID)
		}
	}
	delete(r.joined, c)
	return true
}

// ConnectionsFor returns every live connection of the user, possibly none.
func (r *Registry) ConnectionsFor(userID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Client(nil), r.byUser[userID]...)
}

// OperatorConnections returns every live operator connection, used to
// broadcast new-conversation alerts before anyone claims the thread.
func (r *Registry) OperatorConnections() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Client
	for _, conns := range r.byUser {
		for _, c := range conns {
			if c.GetRole() == models.RoleOperator {
				out = append(out, c)
			}
		}
	}
	return out
}

// OperatorOnline reports whether at least one operator connection is live.
func (r *Registry) OperatorOnline() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conns := range r.byUser {
		for _, c := range conns {
			if c.GetRole() == models.RoleOperator {
				return true
			}
		}
	}
	return false
}

// JoinRoom subscribes a connection to a conversation's live event stream.
func (r *Registry) JoinRoom(c Client, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[conversationID] == nil {
		r.rooms[conversationID] = make(map[Client]struct{})
	}
	r.rooms[conversationID][c] = struct{}{}
	if r.joined[c] == nil {
		r.joined[c] = make(map[string]struct{})
	}
	r.joined[c][conversationID] = struct{}{}
}

// RoomConnections returns the connections currently joined to a conversation.
func (r *Registry) RoomConnections(conversationID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.rooms[conversationID]))
	for c := range r.rooms[conversationID] {
		out = append(out, c)
	}
	return out
}

// InRoom reports whether the connection is joined to the conversation.
func (r *Registry) InRoom(c Client, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[c][conversationID]
	return ok
}
