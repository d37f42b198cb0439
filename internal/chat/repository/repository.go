package repository

import (
	"context"

	"github.com/IsaacEduardo/chat-umn/internal/chat/model"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type MessageRepository struct {
	db     *bun.DB
	logger *logger.Logger
}

func NewMessageRepository(db *bun.DB, logger logger.Logger) *MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: &logger,
	}
}

func (r *MessageRepository) CreateMessage(ctx context.Context, msg *model.Message) error {

	_, err := r.db.NewInsert().Model(msg).Returning("*").Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "chatRepo.CreateMessage.Insert: ")
	}
	return nil
}

func (r *MessageRepository) MarkDelivered(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.NewUpdate().
		Model((*model.Message)(nil)).
		Set("is_delivered = ?", true).
		Where("receiver_id = ?", receiverID).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "chatRepo.MarkDelivered.Update: ")
	}
	return nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.NewUpdate().
		Model((*model.Message)(nil)).
		Set("is_read = ?", true).
		Where("receiver_id = ?", receiverID).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "chatRepo.MarkRead.Update: ")
	}
	return nil
}

func (r *MessageRepository) ListConversation(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.db.NewSelect().
		Model(&msgs).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "chatRepo.ListConversation.Scan: ")
	}
	return msgs, nil
}
