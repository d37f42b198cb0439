package chat

import (
	"context"

	"github.com/IsaacEduardo/chat-umn/internal/chat/hub"
	"github.com/google/uuid"
)

type ChatUsecase interface {
	// Connect activates an authenticated session: registers it (closing any
	// session it supersedes), marks the user online, broadcasts userOnline
	// and sends the new session the online-users snapshot.
	Connect(ctx context.Context, sess *hub.Session) error

	// Disconnect tears down presence for userID: removes the registered
	// session, marks the user offline and broadcasts userOffline.
	Disconnect(ctx context.Context, userID uuid.UUID)

	// SendMessage runs the dispatch pipeline: validate, rate-limit, resolve
	// receiver, encrypt at rest, hash+sign, persist, ack the sender, then
	// push to the receiver if online. The returned error is delivered to the
	// sender as an error event correlated by cmd.TempID.
	SendMessage(ctx context.Context, sender *hub.Session, cmd SendMessageCommand) error

	// Typing relays a typing/stopTyping notification to the receiver's
	// active session; dropped silently when the receiver is offline.
	Typing(ctx context.Context, sender *hub.Session, cmd TypingCommand)
}
