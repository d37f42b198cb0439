// Package protocol defines the websocket wire format shared by server and
// client: a closed set of event kinds, their payloads, and the envelope that
// carries them. Unknown kinds are rejected at decode time instead of being
// dropped by name-based dispatch.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type EventKind string

// Client → server events.
const (
	EventAuth        EventKind = "auth"
	EventSendMessage EventKind = "sendMessage"
	EventTyping      EventKind = "typing"
	EventStopTyping  EventKind = "stopTyping"
)

// Server → client events.
const (
	EventMessageSent       EventKind = "messageSent"
	EventNewMessage        EventKind = "newMessage"
	EventUserTyping        EventKind = "userTyping"
	EventUserStoppedTyping EventKind = "userStoppedTyping"
	EventOnlineUsers       EventKind = "onlineUsers"
	EventUserOnline        EventKind = "userOnline"
	EventUserOffline       EventKind = "userOffline"
	EventError             EventKind = "error"
)

// Envelope frames every event on the wire.
type Envelope struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	TempID     string `json:"tempId"`
}

type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

type MessageSentPayload struct {
	MessageID  string    `json:"messageId"`
	ReceiverID string    `json:"receiverId"`
	TempID     string    `json:"tempId"`
	Timestamp  time.Time `json:"timestamp"`
}

type NewMessagePayload struct {
	MessageID        string    `json:"messageId"`
	SenderID         string    `json:"senderId"`
	SenderUsername   string    `json:"senderUsername"`
	SenderPublicKey  string    `json:"senderPublicKey"`
	Content          string    `json:"content"`
	EncryptedContent string    `json:"encryptedContent"`
	Signature        string    `json:"signature"`
	MessageHash      string    `json:"messageHash"`
	Timestamp        time.Time `json:"timestamp"`
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type OnlineUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

type OnlineUsersPayload struct {
	Users []OnlineUser `json:"users"`
}

type PresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	TempID  string `json:"tempId,omitempty"`
}

// ClientEvent is a decoded client → server event. Exactly one payload field
// is set, matching Kind.
type ClientEvent struct {
	Kind EventKind
	Auth *AuthPayload
	Send *SendMessagePayload
	Typ  *TypingPayload
}

// ServerEvent is a decoded server → client event.
type ServerEvent struct {
	Kind        EventKind
	Sent        *MessageSentPayload
	New         *NewMessagePayload
	Typing      *UserTypingPayload
	OnlineUsers *OnlineUsersPayload
	Presence    *PresencePayload
	Err         *ErrorPayload
}

func Encode(kind EventKind, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "protocol.Encode.Marshal")
	}
	return json.Marshal(Envelope{Event: kind, Data: data})
}

// DecodeClientEvent parses a frame received by the server. Frames carrying an
// unlisted event kind are an error, never silently ignored.
func DecodeClientEvent(raw []byte) (*ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "protocol.DecodeClientEvent.Envelope")
	}

	ev := &ClientEvent{Kind: env.Event}
	switch env.Event {
	case EventAuth:
		ev.Auth = new(AuthPayload)
		return ev, unmarshalData(env.Data, ev.Auth)
	case EventSendMessage:
		ev.Send = new(SendMessagePayload)
		return ev, unmarshalData(env.Data, ev.Send)
	case EventTyping, EventStopTyping:
		ev.Typ = new(TypingPayload)
		return ev, unmarshalData(env.Data, ev.Typ)
	default:
		return nil, errors.Errorf("unknown client event %q", env.Event)
	}
}

// DecodeServerEvent parses a frame received by the client.
func DecodeServerEvent(raw []byte) (*ServerEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "protocol.DecodeServerEvent.Envelope")
	}

	ev := &ServerEvent{Kind: env.Event}
	switch env.Event {
	case EventMessageSent:
		ev.Sent = new(MessageSentPayload)
		return ev, unmarshalData(env.Data, ev.Sent)
	case EventNewMessage:
		ev.New = new(NewMessagePayload)
		return ev, unmarshalData(env.Data, ev.New)
	case EventUserTyping, EventUserStoppedTyping:
		ev.Typing = new(UserTypingPayload)
		return ev, unmarshalData(env.Data, ev.Typing)
	case EventOnlineUsers:
		ev.OnlineUsers = new(OnlineUsersPayload)
		return ev, unmarshalData(env.Data, ev.OnlineUsers)
	case EventUserOnline, EventUserOffline:
		ev.Presence = new(PresencePayload)
		return ev, unmarshalData(env.Data, ev.Presence)
	case EventError:
		ev.Err = new(ErrorPayload)
		return ev, unmarshalData(env.Data, ev.Err)
	default:
		return nil, errors.Errorf("unknown server event %q", env.Event)
	}
}

func unmarshalData(data json.RawMessage, into any) error {
	if len(data) == 0 {
		return errors.New("event payload missing")
	}
	return errors.Wrap(json.Unmarshal(data, into), "protocol.unmarshalData")
}
