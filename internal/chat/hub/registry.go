// Package hub owns the server-side session registry: the single active
// transport binding per user, plus presence fan-out to everyone else.
package hub

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/IsaacEduardo/chat-umn/internal/protocol"
	"github.com/google/uuid"
)

// Peer is the write side of one connection. Implementations must be safe for
// concurrent Send calls.
type Peer interface {
	Send(kind protocol.EventKind, payload any) error
	Close(reason string)
}

// Session is the registered binding for one authenticated connection.
type Session struct {
	UserID    uuid.UUID
	Username  string
	PublicKey string

	// SigningKey is the user's custodied private key, cached at auth so the
	// dispatch path signs without another lookup.
	SigningKey string

	// Token distinguishes this connection from a later one for the same user.
	Token uuid.UUID

	// SessionKey encrypts this session's messages at rest.
	SessionKey []byte

	Peer      Peer
	CreatedAt time.Time
}

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// Registry maps user id → active session. Keys are sharded so operations on
// distinct users never contend on one lock.
type Registry struct {
	shards [shardCount]shard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[uuid.UUID]*Session)
	}
	return r
}

func (r *Registry) shardFor(userID uuid.UUID) *shard {
	h := fnv.New32a()
	h.Write(userID[:])
	return &r.shards[h.Sum32()%shardCount]
}

// Register stores s as the active session for its user. Last connect wins:
// any previously registered session is returned so the caller can close it.
func (r *Registry) Register(s *Session) (replaced *Session) {
	sh := r.shardFor(s.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	replaced = sh.sessions[s.UserID]
	sh.sessions[s.UserID] = s
	return replaced
}

// Remove clears the registered session for userID and returns it.
//
// Removal is keyed by bare user id, not session token: when a reconnect has
// already replaced the session, the disconnect of the older connection still
// clears the newer one. Known race, kept to match the deployed behavior.
func (r *Registry) Remove(userID uuid.UUID) *Session {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s := sh.sessions[userID]
	delete(sh.sessions, userID)
	return s
}

// Get returns the active session for userID, if any.
func (r *Registry) Get(userID uuid.UUID) (*Session, bool) {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	s, ok := sh.sessions[userID]
	return s, ok
}

// Snapshot lists every online user for the onlineUsers event.
func (r *Registry) Snapshot() []protocol.OnlineUser {
	var users []protocol.OnlineUser
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for _, s := range sh.sessions {
			users = append(users, protocol.OnlineUser{
				ID:        s.UserID.String(),
				Username:  s.Username,
				PublicKey: s.PublicKey,
			})
		}
		sh.mu.RUnlock()
	}
	return users
}

// Broadcast sends an event to every session except the one for exceptID.
// Send errors are the peer's problem; a dead peer is reaped by its own read
// loop and must not block fan-out to the rest.
func (r *Registry) Broadcast(exceptID uuid.UUID, kind protocol.EventKind, payload any) {
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		peers := make([]Peer, 0, len(sh.sessions))
		for id, s := range sh.sessions {
			if id == exceptID {
				continue
			}
			peers = append(peers, s.Peer)
		}
		sh.mu.RUnlock()

		for _, p := range peers {
			_ = p.Send(kind, payload)
		}
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
