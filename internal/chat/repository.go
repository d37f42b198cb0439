package chat

import (
	"context"

	"github.com/IsaacEduardo/chat-umn/internal/chat/model"
	"github.com/google/uuid"
)

type MessageRepository interface {
	// CreateMessage persists a message record; the record is immutable after
	// insert except the delivered/read flags.
	CreateMessage(ctx context.Context, msg *model.Message) error

	// MarkDelivered batch-flips the delivered flag for messages addressed to
	// receiverID. Backs the delivered-flag update the client issues after
	// history sync.
	MarkDelivered(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) error

	MarkRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) error

	// ListConversation pages the history of a user pair, oldest first within
	// the page. Reconnecting clients resynchronize through this.
	ListConversation(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*model.Message, error)
}
