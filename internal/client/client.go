// Package client implements the connection side of the chat protocol: a
// reconnecting transport manager, the outbound retry pipeline, the
// conversation state store and the receive-side integrity gate.
package client

import (
	"context"
	"math/rand"
	"time"

	"github.com/IsaacEduardo/chat-umn/internal/protocol"
	appErrors "github.com/IsaacEduardo/chat-umn/pkg/errors"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"
)

const (
	maxReconnectAttempts = 5
	reconnectBaseDelay   = time.Second
	reconnectMaxDelay    = 30 * time.Second
	jitterFactor         = 0.5
)

// Client owns one identity's connection. All mutable state is touched only
// on the run loop: transport callbacks and timer callbacks post closures
// onto it, so mutations are serialized by construction.
type Client struct {
	selfID string
	dialer Dialer
	clock  Clock
	logger logger.Logger

	store    *Store
	outbox   *Outbox
	verifier *Verifier

	// jitter is swappable for tests; returns [0,1).
	jitter func() float64

	// OnError receives server error events and terminal send failures.
	OnError func(message, tempID string)

	// OnMessage fires after a verified delivery has entered the store.
	OnMessage func(conversationID string, msg Message)

	loop chan func()
	done chan struct{}

	transport      Transport
	connected      bool
	reconnAttempts int
	reconnTimer    Timer
	closing        bool
}

func NewClient(selfID string, dialer Dialer, clock Clock, logger logger.Logger) *Client {
	if clock == nil {
		clock = NewClock()
	}

	c := &Client{
		selfID: selfID,
		dialer: dialer,
		clock:  clock,
		logger: logger,
		store:  NewStore(),
		jitter: rand.Float64,
		loop:   make(chan func(), 64),
		done:   make(chan struct{}),
	}
	c.verifier = NewVerifier(logger)
	c.outbox = NewOutbox(
		selfID,
		c.sendFrame,
		func() bool { return c.connected },
		func(fn func()) { c.post(fn) },
		clock,
		c.store,
		logger,
		func(tempID string, err error) {
			if c.OnError != nil {
				c.OnError(err.Error(), tempID)
			}
		},
	)
	return c
}

// Store exposes the conversation state for UI reads.
func (c *Client) Store() *Store { return c.store }

// Start runs the event loop and dials the first connection.
func (c *Client) Start(ctx context.Context) {
	go c.run(ctx)
	c.post(func() { c.dial(ctx) })
}

func (c *Client) run(ctx context.Context) {
	for {
		select {
		case fn := <-c.loop:
			fn()
		case <-ctx.Done():
			c.shutdown()
			return
		case <-c.done:
			return
		}
	}
}

// post schedules fn on the run loop. Returns false once the client is done.
func (c *Client) post(fn func()) bool {
	select {
	case c.loop <- fn:
		return true
	case <-c.done:
		return false
	}
}

// Close tears the client down: the transport is closed and every armed
// timer — retry schedules included — is cancelled so nothing fires into a
// stale context.
func (c *Client) Close() {
	c.post(func() { c.shutdown() })
}

func (c *Client) shutdown() {
	if c.closing {
		return
	}
	c.closing = true

	if c.reconnTimer != nil {
		c.reconnTimer.Stop()
	}
	c.outbox.Shutdown()
	if c.transport != nil {
		_ = c.transport.Close()
	}
	c.connected = false
	c.store.SetConnected(false)
	close(c.done)
}

// SendMessage queues a message to receiverID and returns the temp id the
// eventual ack or failure will carry.
func (c *Client) SendMessage(receiverID, content string) (string, error) {
	type result struct {
		tempID string
		err    error
	}
	ch := make(chan result, 1)
	ok := c.post(func() {
		tempID, err := c.outbox.Send(receiverID, content)
		ch <- result{tempID: tempID, err: err}
	})
	if !ok {
		return "", appErrors.ErrNotConnected
	}

	// The loop send can win its race against shutdown, leaving the closure
	// buffered but never run; don't wait on a result that will never come.
	select {
	case r := <-ch:
		return r.tempID, r.err
	case <-c.done:
		return "", appErrors.ErrNotConnected
	}
}

// Typing notifies receiverID that this user is typing.
func (c *Client) Typing(receiverID string) {
	c.post(func() {
		_ = c.sendFrame(protocol.EventTyping, protocol.TypingPayload{ReceiverID: receiverID})
	})
}

// StopTyping clears the typing notification.
func (c *Client) StopTyping(receiverID string) {
	c.post(func() {
		_ = c.sendFrame(protocol.EventStopTyping, protocol.TypingPayload{ReceiverID: receiverID})
	})
}

func (c *Client) sendFrame(kind protocol.EventKind, payload any) error {
	if !c.connected || c.transport == nil {
		return appErrors.ErrNotConnected
	}
	return c.transport.Send(kind, payload)
}

func (c *Client) dial(ctx context.Context) {
	if c.closing {
		return
	}

	go func() {
		t, err := c.dialer.Dial(ctx,
			func(ev *protocol.ServerEvent) {
				c.post(func() { c.handleEvent(ev) })
			},
			func(serverInitiated bool, cause error) {
				c.post(func() { c.handleClose(ctx, serverInitiated, cause) })
			},
		)
		c.post(func() { c.handleDialResult(ctx, t, err) })
	}()
}

func (c *Client) handleDialResult(ctx context.Context, t Transport, err error) {
	if c.closing {
		if t != nil {
			_ = t.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("connect failed", "err", err)
		c.scheduleReconnect(ctx)
		return
	}

	c.transport = t
	c.connected = true
	c.reconnAttempts = 0
	c.store.SetConnected(true)
	c.logger.Info("connected")

	// Replay every pending message that still has attempts left.
	c.outbox.RetryPending()
}

func (c *Client) handleClose(ctx context.Context, serverInitiated bool, cause error) {
	if c.closing {
		return
	}

	c.connected = false
	c.transport = nil
	c.store.SetConnected(false)
	c.logger.Warn("disconnected", "server_initiated", serverInitiated, "err", cause)

	// A server-initiated close walks the same ladder from the current
	// attempt count; nothing resets to zero except a successful connect.
	c.scheduleReconnect(ctx)
}

func (c *Client) scheduleReconnect(ctx context.Context) {
	if c.reconnAttempts >= maxReconnectAttempts {
		c.logger.Error("giving up after max reconnect attempts")
		return
	}

	c.reconnAttempts++
	delay := c.backoffDelay(c.reconnAttempts)
	c.logger.Info("scheduling reconnect",
		"attempt", c.reconnAttempts, "max", maxReconnectAttempts, "delay", delay)

	c.reconnTimer = c.clock.AfterFunc(delay, func() {
		c.post(func() { c.dial(ctx) })
	})
}

// backoffDelay computes min(base × 2^attempt, max) with ±50% jitter.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := reconnectBaseDelay << uint(attempt)
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	spread := jitterFactor * (2*c.jitter() - 1)
	return delay + time.Duration(float64(delay)*spread)
}

func (c *Client) handleEvent(ev *protocol.ServerEvent) {
	switch ev.Kind {
	case protocol.EventMessageSent:
		c.outbox.HandleAck(ev.Sent)

	case protocol.EventNewMessage:
		c.handleNewMessage(ev.New)

	case protocol.EventUserTyping:
		c.store.SetTyping(ev.Typing.UserID, ev.Typing.Username)

	case protocol.EventUserStoppedTyping:
		c.store.RemoveTyping(ev.Typing.UserID)

	case protocol.EventOnlineUsers:
		c.store.SetOnlineUsers(ev.OnlineUsers.Users)

	case protocol.EventUserOnline:
		c.store.AddOnlineUser(protocol.OnlineUser{
			ID:       ev.Presence.UserID,
			Username: ev.Presence.Username,
		})

	case protocol.EventUserOffline:
		c.store.RemoveOnlineUser(ev.Presence.UserID)

	case protocol.EventError:
		c.logger.Warn("server error", "message", ev.Err.Message, "temp_id", ev.Err.TempID)
		if c.OnError != nil {
			c.OnError(ev.Err.Message, ev.Err.TempID)
		}
	}
}

func (c *Client) handleNewMessage(p *protocol.NewMessagePayload) {
	if err := c.verifier.Verify(p); err != nil {
		return
	}

	conversationID, err := protocol.ConversationID(c.selfID, p.SenderID)
	if err != nil {
		c.logger.Warn("dropping message with invalid sender id", "sender_id", p.SenderID)
		return
	}

	msg := Message{
		ID:             p.MessageID,
		SenderID:       p.SenderID,
		SenderUsername: p.SenderUsername,
		Content:        p.Content,
		Timestamp:      p.Timestamp,
		Status:         StatusDelivered,
		Received:       true,
		Verified:       true,
	}
	c.store.AddMessage(conversationID, msg)
	c.store.IncrementUnread(p.SenderID)
	if c.OnMessage != nil {
		c.OnMessage(conversationID, msg)
	}
}
