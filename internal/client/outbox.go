package client

import (
	"fmt"
	"time"

	"github.com/IsaacEduardo/chat-umn/internal/protocol"
	appErrors "github.com/IsaacEduardo/chat-umn/pkg/errors"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"

	"github.com/google/uuid"
)

const (
	maxAttempts    = 3
	attemptTimeout = 5 * time.Second
	retryBaseDelay = 2 * time.Second

	// Pending descriptors are bounded so a long disconnect cannot grow the
	// map without limit; sends past the cap fail fast.
	maxPending = 256
)

// pendingMessage is the bookkeeping record for one not-yet-acked send.
type pendingMessage struct {
	tempID         string
	receiverID     string
	content        string
	conversationID string

	// attempts counts transmissions so far; the message fails terminally on
	// the attempt that times out with attempts == maxAttempts.
	attempts int

	// timer is the cancellation token for whichever schedule is armed: the
	// per-attempt timeout or the retry backoff. Acks stop it; first to act
	// wins.
	timer Timer
}

// Outbox drives the outbound pipeline: optimistic insert, temp-id
// correlation, per-attempt timeout, bounded retry with linear backoff, and
// replay on reconnect.
//
// Outbox methods are not self-synchronized: the owning Client calls them on
// its run loop, and timer callbacks re-enter through post.
type Outbox struct {
	selfID    string
	send      func(kind protocol.EventKind, payload any) error
	connected func() bool
	post      func(func())
	clock     Clock
	store     *Store
	logger    logger.Logger

	// onFail is invoked once per terminally failed message.
	onFail func(tempID string, err error)

	pending map[string]*pendingMessage
}

func NewOutbox(
	selfID string,
	send func(kind protocol.EventKind, payload any) error,
	connected func() bool,
	post func(func()),
	clock Clock,
	store *Store,
	logger logger.Logger,
	onFail func(tempID string, err error),
) *Outbox {
	if onFail == nil {
		onFail = func(string, error) {}
	}
	return &Outbox{
		selfID:    selfID,
		send:      send,
		connected: connected,
		post:      post,
		clock:     clock,
		store:     store,
		logger:    logger,
		onFail:    onFail,
		pending:   make(map[string]*pendingMessage),
	}
}

// Send inserts an optimistic "sending" message, registers a pending
// descriptor and fires the first attempt. A disconnected transport leaves
// the descriptor in place for replay on reconnect.
func (o *Outbox) Send(receiverID, content string) (string, error) {
	conversationID, err := protocol.ConversationID(o.selfID, receiverID)
	if err != nil {
		return "", err
	}

	if len(o.pending) >= maxPending {
		return "", appErrors.ErrOutboxFull
	}

	tempID := fmt.Sprintf("temp_%d_%s", o.clock.Now().UnixMilli(), uuid.NewString()[:8])

	o.store.AddMessage(conversationID, Message{
		TempID:    tempID,
		SenderID:  o.selfID,
		Content:   content,
		Timestamp: o.clock.Now(),
		Status:    StatusSending,
	})

	o.pending[tempID] = &pendingMessage{
		tempID:         tempID,
		receiverID:     receiverID,
		content:        content,
		conversationID: conversationID,
	}

	return tempID, o.attempt(tempID)
}

// attempt transmits the pending message and arms the per-attempt timeout.
// When the transport is down it fails immediately without arming anything;
// the reconnect handler re-invokes via RetryPending.
func (o *Outbox) attempt(tempID string) error {
	p, ok := o.pending[tempID]
	if !ok {
		return appErrors.NotFound("no pending message for temp id")
	}

	if !o.connected() {
		return appErrors.ErrNotConnected
	}

	p.attempts++
	p.timer = o.clock.AfterFunc(attemptTimeout, func() {
		o.post(func() { o.onTimeout(tempID) })
	})

	err := o.send(protocol.EventSendMessage, protocol.SendMessagePayload{
		ReceiverID: p.receiverID,
		Content:    p.content,
		TempID:     tempID,
	})
	if err != nil {
		// Transport died between the connectivity check and the write;
		// treat like a disconnected attempt.
		p.timer.Stop()
		p.timer = nil
		p.attempts--
		return appErrors.ErrNotConnected
	}
	return nil
}

// onTimeout runs on the loop when an attempt's 5s window lapses without an
// ack. Below the attempt cap it schedules the next attempt after
// 2s × attemptNumber; at the cap the message fails terminally.
func (o *Outbox) onTimeout(tempID string) {
	p, ok := o.pending[tempID]
	if !ok {
		// Acked after the timer fired but before this ran; ack won.
		return
	}

	if p.attempts < maxAttempts {
		delay := retryBaseDelay * time.Duration(p.attempts)
		o.logger.Debug("message attempt timed out, retrying",
			"temp_id", tempID, "attempt", p.attempts, "delay", delay)
		p.timer = o.clock.AfterFunc(delay, func() {
			o.post(func() { _ = o.attempt(tempID) })
		})
		return
	}

	delete(o.pending, tempID)
	o.store.UpdateMessage(p.conversationID, tempID, func(m *Message) {
		m.Status = StatusFailed
	})
	o.logger.Warn("message failed after max retries", "temp_id", tempID)
	o.onFail(tempID, appErrors.ErrSendFailed)
}

// HandleAck resolves a pending message: the timer is cancelled, the
// descriptor removed, and the optimistic message promoted to delivered with
// its server id. A late or unknown ack is ignored.
func (o *Outbox) HandleAck(ack *protocol.MessageSentPayload) {
	p, ok := o.pending[ack.TempID]
	if !ok {
		return
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	delete(o.pending, ack.TempID)

	o.store.UpdateMessage(p.conversationID, ack.TempID, func(m *Message) {
		m.ID = ack.MessageID
		m.Status = StatusDelivered
		m.Timestamp = ack.Timestamp
	})
}

// RetryPending re-attempts every descriptor that has attempts left. Called
// by the connection manager after a reconnect. Exhausted descriptors are
// never replayed; they were already removed when they failed.
func (o *Outbox) RetryPending() {
	for tempID, p := range o.pending {
		if p.attempts >= maxAttempts {
			continue
		}
		if p.timer != nil {
			p.timer.Stop()
		}
		if err := o.attempt(tempID); err != nil {
			o.logger.Warn("replay failed", "temp_id", tempID, "err", err)
		}
	}
}

// PendingCount reports the number of unacknowledged descriptors.
func (o *Outbox) PendingCount() int { return len(o.pending) }

// Shutdown cancels every armed timer so nothing fires into a torn-down
// client.
func (o *Outbox) Shutdown() {
	for _, p := range o.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	o.pending = make(map[string]*pendingMessage)
}
