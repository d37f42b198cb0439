package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/IsaacEduardo/chat-umn/config"
	"github.com/IsaacEduardo/chat-umn/internal/chat"
	"github.com/IsaacEduardo/chat-umn/internal/chat/crypto"
	"github.com/IsaacEduardo/chat-umn/internal/chat/hub"
	"github.com/IsaacEduardo/chat-umn/internal/chat/model"
	"github.com/IsaacEduardo/chat-umn/internal/chat/ratelimit"
	"github.com/IsaacEduardo/chat-umn/internal/protocol"
	"github.com/IsaacEduardo/chat-umn/internal/user"
	"github.com/IsaacEduardo/chat-umn/pkg/errors"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"

	"github.com/google/uuid"
)

type ChatUsecase struct {
	users    user.UserRepository
	messages chat.MessageRepository
	registry *hub.Registry
	limiter  *ratelimit.Limiter
	logger   logger.Logger
	config   config.Config
}

func NewChatUsecase(
	users user.UserRepository,
	messages chat.MessageRepository,
	registry *hub.Registry,
	limiter *ratelimit.Limiter,
	logger logger.Logger,
	config config.Config,
) *ChatUsecase {
	return &ChatUsecase{
		users:    users,
		messages: messages,
		registry: registry,
		limiter:  limiter,
		logger:   logger,
		config:   config,
	}
}

func (uc *ChatUsecase) Connect(ctx context.Context, sess *hub.Session) error {
	if err := uc.users.SetOnline(ctx, sess.UserID, true); err != nil {
		uc.logger.Error("failed to mark user online", "user_id", sess.UserID, "err", err)
		return errors.Internal("failed to update presence")
	}

	if replaced := uc.registry.Register(sess); replaced != nil {
		// Last connect wins; the superseded connection is told why.
		replaced.Peer.Close("session superseded by a newer connection")
	}

	uc.registry.Broadcast(sess.UserID, protocol.EventUserOnline, protocol.PresencePayload{
		UserID:   sess.UserID.String(),
		Username: sess.Username,
	})

	if err := sess.Peer.Send(protocol.EventOnlineUsers, protocol.OnlineUsersPayload{
		Users: uc.registry.Snapshot(),
	}); err != nil {
		uc.logger.Warn("failed to send online snapshot", "user_id", sess.UserID, "err", err)
	}

	uc.logger.Info("user connected", "user_id", sess.UserID, "username", sess.Username)
	return nil
}

func (uc *ChatUsecase) Disconnect(ctx context.Context, userID uuid.UUID) {
	// Removal is by bare user id; a delayed disconnect after a rapid
	// reconnect clears the replacement session too (see hub.Registry.Remove).
	uc.registry.Remove(userID)

	if err := uc.users.SetOnline(ctx, userID, false); err != nil {
		uc.logger.Error("failed to mark user offline", "user_id", userID, "err", err)
	}

	uc.registry.Broadcast(userID, protocol.EventUserOffline, protocol.PresencePayload{
		UserID: userID.String(),
	})

	uc.logger.Info("user disconnected", "user_id", userID)
}

func (uc *ChatUsecase) SendMessage(ctx context.Context, sender *hub.Session, cmd chat.SendMessageCommand) error {
	// A superseded or torn-down session may still have frames in flight;
	// only the active registration for this user may dispatch.
	if cur, ok := uc.registry.Get(sender.UserID); !ok || cur.Token != sender.Token {
		return errors.ErrSenderNotConnected
	}

	if cmd.ReceiverID == "" || cmd.Content == "" || cmd.TempID == "" {
		return errors.ErrMissingFields
	}
	if strings.TrimSpace(cmd.Content) == "" {
		return errors.ErrEmptyContent
	}
	if len(cmd.Content) > uc.config.Chat.MaxMessageLength {
		return errors.ErrContentTooLong
	}

	if !uc.limiter.Allow(sender.UserID.String(), ratelimit.ActionMessage) {
		uc.logger.Warn("send rate limited", "user_id", sender.UserID)
		return errors.ErrRateLimited
	}

	receiverID, err := uuid.Parse(cmd.ReceiverID)
	if err != nil {
		return errors.ErrReceiverNotFound
	}

	// Existence in durable storage, not online status.
	receiver, err := uc.users.GetUserByID(ctx, receiverID)
	if err != nil || receiver == nil {
		return errors.ErrReceiverNotFound
	}

	encrypted, err := crypto.Seal(cmd.Content, sender.SessionKey)
	if err != nil {
		uc.logger.Error("failed to encrypt message", "err", err)
		return errors.Internal("failed to encrypt message")
	}

	hash := crypto.HashContent(cmd.Content)
	signature, err := crypto.Sign(cmd.Content, sender.SigningKey)
	if err != nil {
		uc.logger.Error("failed to sign message", "err", err)
		return errors.Internal("failed to sign message")
	}

	msg := &model.Message{
		SenderID:         sender.UserID,
		ReceiverID:       receiverID,
		Content:          cmd.Content,
		EncryptedContent: encrypted,
		MessageHash:      hash,
		Signature:        signature,
		CreatedAt:        time.Now(),
	}
	if err := uc.messages.CreateMessage(ctx, msg); err != nil {
		uc.logger.Error("failed to persist message", "sender_id", sender.UserID, "err", err)
		return errors.ErrPersistFailed(err)
	}

	// Ack the sender before any receiver push: ack latency is bounded by
	// persistence latency alone.
	if err := sender.Peer.Send(protocol.EventMessageSent, protocol.MessageSentPayload{
		MessageID:  msg.ID.String(),
		ReceiverID: cmd.ReceiverID,
		TempID:     cmd.TempID,
		Timestamp:  msg.CreatedAt,
	}); err != nil {
		uc.logger.Warn("failed to ack sender", "sender_id", sender.UserID, "err", err)
	}

	// At most one push, only to a currently connected receiver. An offline
	// receiver resynchronizes via history fetch on reconnect; no retry here.
	if receiverSess, ok := uc.registry.Get(receiverID); ok {
		if err := receiverSess.Peer.Send(protocol.EventNewMessage, protocol.NewMessagePayload{
			MessageID:        msg.ID.String(),
			SenderID:         sender.UserID.String(),
			SenderUsername:   sender.Username,
			SenderPublicKey:  sender.PublicKey,
			Content:          cmd.Content,
			EncryptedContent: encrypted,
			Signature:        signature,
			MessageHash:      hash,
			Timestamp:        msg.CreatedAt,
		}); err != nil {
			uc.logger.Warn("failed to push message", "receiver_id", receiverID, "err", err)
		} else if err := uc.messages.MarkDelivered(ctx, receiverID, []uuid.UUID{msg.ID}); err != nil {
			// The receiver already has the message; the flag catches up on
			// the next batch update.
			uc.logger.Warn("failed to flag delivery", "message_id", msg.ID, "err", err)
		}
	}

	uc.logger.Debug("message dispatched", "sender_id", sender.UserID, "receiver_id", receiverID)
	return nil
}

func (uc *ChatUsecase) Typing(ctx context.Context, sender *hub.Session, cmd chat.TypingCommand) {
	if !uc.limiter.Allow(sender.UserID.String(), ratelimit.ActionOther) {
		return
	}

	receiverID, err := uuid.Parse(cmd.ReceiverID)
	if err != nil {
		return
	}

	receiver, ok := uc.registry.Get(receiverID)
	if !ok {
		// No persistence and no retry for typing state.
		return
	}

	if cmd.Stopped {
		_ = receiver.Peer.Send(protocol.EventUserStoppedTyping, protocol.UserTypingPayload{
			UserID: sender.UserID.String(),
		})
		return
	}
	_ = receiver.Peer.Send(protocol.EventUserTyping, protocol.UserTypingPayload{
		UserID:   sender.UserID.String(),
		Username: sender.Username,
	})
}
