// Package transport binds websocket connections to the chat usecase. A
// connection walks Unauthenticated → Authenticating → Active → Closed; no
// message or typing handler runs before authentication completes.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/IsaacEduardo/chat-umn/config"
	"github.com/IsaacEduardo/chat-umn/internal/chat"
	chatCrypto "github.com/IsaacEduardo/chat-umn/internal/chat/crypto"
	"github.com/IsaacEduardo/chat-umn/internal/chat/hub"
	"github.com/IsaacEduardo/chat-umn/internal/protocol"
	"github.com/IsaacEduardo/chat-umn/internal/user"
	appErrors "github.com/IsaacEduardo/chat-umn/pkg/errors"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"
	"github.com/IsaacEduardo/chat-umn/pkg/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	authTimeout    = 10 * time.Second
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 50 * time.Second
	maxFrameSize   = 8 * 1024
	sendBufferSize = 64
)

type Server struct {
	uc       chat.ChatUsecase
	users    user.UserRepository
	logger   logger.Logger
	config   config.Config
	upgrader websocket.Upgrader
}

func NewServer(uc chat.ChatUsecase, users user.UserRepository, logger logger.Logger, config config.Config) *Server {
	return &Server{
		uc:     uc,
		users:  users,
		logger: logger,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	// The request context dies with ServeHTTP on hijacked connections; the
	// session outlives it.
	s.handleConn(context.Background(), conn)
}

// handleConn runs one connection from handshake to teardown. Failures on
// this connection never propagate past it.
func (s *Server) handleConn(ctx context.Context, conn *websocket.Conn) {
	peer := newWSPeer(conn, s.logger)
	defer peer.shutdown()

	conn.SetReadLimit(maxFrameSize)

	sess, err := s.authenticate(ctx, conn, peer)
	if err != nil {
		peer.sendError(err, "")
		peer.Close("authentication failed")
		return
	}

	if err := s.uc.Connect(ctx, sess); err != nil {
		peer.sendError(err, "")
		peer.Close("connect failed")
		return
	}
	defer s.uc.Disconnect(ctx, sess.UserID)

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		ev, err := protocol.DecodeClientEvent(raw)
		if err != nil {
			peer.sendError(appErrors.InvalidArg("malformed event"), "")
			continue
		}

		switch ev.Kind {
		case protocol.EventSendMessage:
			cmd := chat.SendMessageCommand{
				ReceiverID: ev.Send.ReceiverID,
				Content:    ev.Send.Content,
				TempID:     ev.Send.TempID,
			}
			if err := s.uc.SendMessage(ctx, sess, cmd); err != nil {
				s.logger.Debug("send rejected",
					"user_id", sess.UserID, "code", appErrors.CodeOf(err))
				peer.sendError(err, cmd.TempID)
			}
		case protocol.EventTyping:
			s.uc.Typing(ctx, sess, chat.TypingCommand{ReceiverID: ev.Typ.ReceiverID})
		case protocol.EventStopTyping:
			s.uc.Typing(ctx, sess, chat.TypingCommand{ReceiverID: ev.Typ.ReceiverID, Stopped: true})
		case protocol.EventAuth:
			// Already authenticated; ignore.
		}
	}
}

// authenticate reads the first frame, which must be an auth event, verifies
// the bearer token and builds the session. Everything after this point runs
// with a resolved identity.
func (s *Server) authenticate(ctx context.Context, conn *websocket.Conn, peer *wsPeer) (*hub.Session, error) {
	conn.SetReadDeadline(time.Now().Add(authTimeout))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, appErrors.Unauthorized("no auth frame received")
	}

	ev, err := protocol.DecodeClientEvent(raw)
	if err != nil || ev.Kind != protocol.EventAuth {
		return nil, appErrors.Unauthorized("expected auth event")
	}

	userID, err := utils.VerifyToken(ev.Auth.Token, s.config)
	if err != nil {
		return nil, appErrors.ErrInvalidToken
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil || u == nil {
		return nil, appErrors.ErrUserNotFound
	}

	sessionKey, err := chatCrypto.NewSessionKey()
	if err != nil {
		return nil, appErrors.Internal("failed to create session key")
	}

	return &hub.Session{
		UserID:     u.ID,
		Username:   u.Username,
		PublicKey:  u.PublicKey,
		SigningKey: u.PrivateKey,
		Token:      uuid.New(),
		SessionKey: sessionKey,
		Peer:       peer,
		CreatedAt:  time.Now(),
	}, nil
}

// wsPeer serializes writes to one connection through a buffered channel and
// a single writer goroutine.
type wsPeer struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	stopped sync.Once
	logger  logger.Logger
}

func newWSPeer(conn *websocket.Conn, logger logger.Logger) *wsPeer {
	p := &wsPeer{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go p.writeLoop()
	return p
}

func (p *wsPeer) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-p.send:
			if !ok {
				return
			}
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *wsPeer) Send(kind protocol.EventKind, payload any) error {
	frame, err := protocol.Encode(kind, payload)
	if err != nil {
		return err
	}

	select {
	case p.send <- frame:
		return nil
	case <-p.done:
		return appErrors.ErrNotConnected
	default:
		// A peer that cannot drain its buffer is effectively gone; dropping
		// beats blocking every other session behind it.
		p.logger.Warn("dropping frame for slow peer", "event", kind)
		return appErrors.ErrNotConnected
	}
}

func (p *wsPeer) sendError(err error, tempID string) {
	_ = p.Send(protocol.EventError, protocol.ErrorPayload{
		Message: err.Error(),
		TempID:  tempID,
	})
}

func (p *wsPeer) Close(reason string) {
	// WriteControl is safe concurrently with the writer goroutine.
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeTimeout))
	p.shutdown()
}

func (p *wsPeer) shutdown() {
	p.stopped.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}
