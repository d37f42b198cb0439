package client

import (
	"sort"
	"sync"
	"time"

	"github.com/IsaacEduardo/chat-umn/internal/protocol"
)

type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// Message is the client-side view of one chat message.
type Message struct {
	ID             string
	TempID         string
	SenderID       string
	SenderUsername string
	Content        string
	Timestamp      time.Time
	Status         MessageStatus
	Received       bool
	Verified       bool
}

// TypingUser is one member of a conversation's typing set.
type TypingUser struct {
	UserID   string
	Username string
}

// Store holds per-conversation message logs, the online-user set, typing
// state, unread counters and the connectivity flag. All methods are safe for
// concurrent use; the client's run loop is the only writer in practice, UI
// code reads.
type Store struct {
	mu sync.RWMutex

	messages     map[string][]Message
	onlineUsers  []protocol.OnlineUser
	typing       []TypingUser
	unread       map[string]int
	selectedUser string
	connected    bool
}

func NewStore() *Store {
	return &Store{
		messages: make(map[string][]Message),
		unread:   make(map[string]int),
	}
}

func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// AddMessage upserts a message into the conversation log. An existing entry
// with the same server id or temp id is updated in place; the log stays
// ordered by timestamp.
func (s *Store) AddMessage(conversationID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[conversationID]
	for i := range log {
		sameID := msg.ID != "" && log[i].ID == msg.ID
		sameTemp := msg.TempID != "" && log[i].TempID == msg.TempID
		if sameID || sameTemp {
			log[i] = msg
			s.messages[conversationID] = log
			return
		}
	}

	log = append(log, msg)
	sort.SliceStable(log, func(i, j int) bool {
		return log[i].Timestamp.Before(log[j].Timestamp)
	})
	s.messages[conversationID] = log
}

// UpdateMessage applies fn to the message with tempID, if present.
func (s *Store) UpdateMessage(conversationID, tempID string, fn func(*Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[conversationID]
	for i := range log {
		if log[i].TempID == tempID {
			fn(&log[i])
			return
		}
	}
}

func (s *Store) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages[conversationID]...)
}

func (s *Store) SetOnlineUsers(users []protocol.OnlineUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlineUsers = append([]protocol.OnlineUser(nil), users...)
}

func (s *Store) AddOnlineUser(u protocol.OnlineUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.onlineUsers {
		if existing.ID == u.ID {
			return
		}
	}
	s.onlineUsers = append(s.onlineUsers, u)
}

func (s *Store) RemoveOnlineUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.onlineUsers[:0]
	for _, u := range s.onlineUsers {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	s.onlineUsers = kept
}

func (s *Store) OnlineUsers() []protocol.OnlineUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.OnlineUser(nil), s.onlineUsers...)
}

// SetTyping records that userID is typing; a newer notification supersedes
// the previous entry for the same user.
func (s *Store) SetTyping(userID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.typing {
		if s.typing[i].UserID == userID {
			s.typing[i].Username = username
			return
		}
	}
	s.typing = append(s.typing, TypingUser{UserID: userID, Username: username})
}

func (s *Store) RemoveTyping(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.typing[:0]
	for _, u := range s.typing {
		if u.UserID != userID {
			kept = append(kept, u)
		}
	}
	s.typing = kept
}

func (s *Store) TypingUsers() []TypingUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TypingUser(nil), s.typing...)
}

// SelectConversation marks the peer whose conversation is on screen and
// clears its unread counter.
func (s *Store) SelectConversation(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedUser = userID
	delete(s.unread, userID)
}

func (s *Store) SelectedConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedUser
}

// IncrementUnread bumps the counter for senderID unless that conversation is
// currently selected.
func (s *Store) IncrementUnread(senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedUser == senderID {
		return
	}
	s.unread[senderID]++
}

func (s *Store) Unread(senderID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[senderID]
}
