package client

import (
	"context"
	"sync"

	"github.com/IsaacEduardo/chat-umn/internal/protocol"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"

	"github.com/gorilla/websocket"
)

// Transport is one live connection. Send may be called from any goroutine.
type Transport interface {
	Send(kind protocol.EventKind, payload any) error
	Close() error
}

// Dialer establishes transports. onEvent fires for every decoded server
// frame; onClose fires once when the connection dies, with serverInitiated
// distinguishing a server close frame from plain network failure. Both run
// on the transport's reader goroutine.
type Dialer interface {
	Dial(ctx context.Context, onEvent func(*protocol.ServerEvent), onClose func(serverInitiated bool, err error)) (Transport, error)
}

// WSDialer dials the chat server over websocket and authenticates with a
// bearer token before handing the transport back.
type WSDialer struct {
	URL    string
	Token  string
	Logger logger.Logger
}

func (d *WSDialer) Dial(ctx context.Context, onEvent func(*protocol.ServerEvent), onClose func(bool, error)) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{conn: conn}

	if err := t.Send(protocol.EventAuth, protocol.AuthPayload{Token: d.Token}); err != nil {
		conn.Close()
		return nil, err
	}

	go t.readLoop(d.Logger, onEvent, onClose)
	return t, nil
}

type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) Send(kind protocol.EventKind, payload any) error {
	frame, err := protocol.Encode(kind, payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) readLoop(log logger.Logger, onEvent func(*protocol.ServerEvent), onClose func(bool, error)) {
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			serverInitiated := websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.ClosePolicyViolation)
			onClose(serverInitiated, err)
			return
		}

		ev, err := protocol.DecodeServerEvent(raw)
		if err != nil {
			log.Warn("dropping undecodable frame", "err", err)
			continue
		}
		onEvent(ev)
	}
}
