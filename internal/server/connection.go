package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/sjavsgame/sjavs-server/internal/auth"
	"github.com/sjavsgame/sjavs-server/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one WebSocket client. It implements Sink, so the registry
// can address it directly for private messages and snapshots.
type Connection struct {
	conn        *websocket.Conn
	send        chan *Message
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	gameService *GameService
	validator   auth.Validator

	mu        sync.RWMutex
	userID    string
	closeOnce sync.Once
}

// NewConnection creates a connection wrapper around an upgraded socket.
func NewConnection(conn *websocket.Conn, logger *log.Logger, gameService *GameService, validator auth.Validator) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:        conn,
		send:        make(chan *Message, 256),
		logger:      logger.WithPrefix("conn"),
		ctx:         ctx,
		cancel:      cancel,
		gameService: gameService,
		validator:   validator,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. A full buffer closes the
// connection; the client reconciles on reconnect via a fresh snapshot.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, expected during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection", "user_id", c.UserID())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetUser binds the connection to an authenticated user.
func (c *Connection) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// UserID returns the authenticated user, or "" before auth.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one inbound message. Every message except auth
// requires an authenticated user.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type, "user_id", c.UserID())

	if msg.Type == MessageTypeAuth {
		c.handleAuth(msg)
		return
	}
	userID := c.UserID()
	if userID == "" {
		c.sendError(msg.RequestID, game.NewError(game.CodeNotAuthenticated, "authenticate first"))
		return
	}

	switch msg.Type {
	case MessageTypeCreateMatch:
		dispatch(c, msg, c.gameService.CreateMatch, MessageTypeMatchCreated)
	case MessageTypeJoinMatch:
		dispatch(c, msg, c.gameService.JoinMatch, MessageTypeMatchJoined)
		// A joiner immediately needs the full picture of the match.
		c.sendSnapshot(userID)
	case MessageTypeLeaveMatch:
		dispatch(c, msg, func(ctx context.Context, userID string, _ struct{}) (*MatchLeftData, error) {
			return c.gameService.LeaveMatch(ctx, userID)
		}, MessageTypeMatchLeft)
	case MessageTypeStartGame:
		dispatch(c, msg, c.gameService.StartGame, MessageTypeGameStarted)
	case MessageTypeGetHand:
		dispatch(c, msg, func(ctx context.Context, userID string, _ struct{}) (*HandStateData, error) {
			return c.gameService.GetHand(ctx, userID)
		}, MessageTypeHandState)
	case MessageTypeBid:
		dispatch(c, msg, c.gameService.Bid, MessageTypeBidResult)
	case MessageTypePass:
		dispatch(c, msg, c.gameService.Pass, MessageTypePassResult)
	case MessageTypePlayCard:
		dispatch(c, msg, c.gameService.PlayCard, MessageTypePlayResult)
	case MessageTypeGetTrickState:
		dispatch(c, msg, func(ctx context.Context, userID string, _ struct{}) (*TrickStateData, error) {
			return c.gameService.GetTrickState(ctx, userID)
		}, MessageTypeTrickState)
	case MessageTypeCompleteGame:
		dispatch(c, msg, c.gameService.CompleteGame, MessageTypeGameResult)
	case MessageTypeJoin:
		var data JoinData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, game.NewError(game.CodeMalformedRequest, "bad join payload"))
			return
		}
		if err := c.gameService.Rejoin(c.ctx, userID, data.MatchID); err != nil {
			c.sendError(msg.RequestID, err)
		}
	case MessageTypeRequestGameState:
		if err := c.gameService.SendSnapshot(c.ctx, userID); err != nil {
			c.sendError(msg.RequestID, err)
		}
	case MessageTypeTeamUpRequest, MessageTypeTeamUpResponse:
		var data TeamUpData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, game.NewError(game.CodeMalformedRequest, "bad team-up payload"))
			return
		}
		if err := c.gameService.TeamUp(c.ctx, userID, msg.Type, data); err != nil {
			c.sendError(msg.RequestID, err)
		}
	default:
		c.sendError(msg.RequestID, game.NewError(game.CodeMalformedRequest,
			"unknown message type %s", msg.Type))
	}
}

// dispatch decodes a request payload, runs the handler, and sends either the
// typed response or the error, echoing the request id both ways.
func dispatch[Req, Resp any](c *Connection, msg *Message, handler func(context.Context, string, Req) (Resp, error), responseType MessageType) {
	var req Req
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError(msg.RequestID, game.NewError(game.CodeMalformedRequest, "bad request payload"))
			return
		}
	}

	resp, err := handler(c.ctx, c.UserID(), req)
	if err != nil {
		c.sendError(msg.RequestID, err)
		return
	}
	c.respond(msg.RequestID, responseType, resp)
}

func (c *Connection) handleAuth(msg *Message) {
	var data AuthData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(msg.RequestID, game.NewError(game.CodeMalformedRequest, "bad auth payload"))
		return
	}

	userID := data.UserID
	identity, err := c.validator.Validate(c.ctx, data.Token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		c.sendError(msg.RequestID, game.NewError(game.CodeNotAuthenticated, "invalid token"))
		return
	case err != nil:
		c.sendError(msg.RequestID, game.Infrastructure(err))
		return
	case identity != nil:
		userID = identity.UserID
	}
	if userID == "" {
		c.sendError(msg.RequestID, game.NewError(game.CodeNotAuthenticated, "user id required"))
		return
	}

	c.SetUser(userID)
	c.gameService.RegisterConnection(userID, c)
	c.logger.Info("authenticated", "user_id", userID)
	c.respond(msg.RequestID, MessageTypeAuthResponse, AuthResponseData{Success: true, UserID: userID})

	// A reconnecting player gets their match snapshot without asking.
	c.sendSnapshot(userID)
}

// sendSnapshot replays the caller's match state; not being in a match is fine.
func (c *Connection) sendSnapshot(userID string) {
	err := c.gameService.Rejoin(c.ctx, userID, "")
	if err != nil && !errors.Is(err, game.NewError(game.CodeNotInGame, "")) {
		c.logger.Debug("snapshot failed", "user_id", userID, "error", err)
	}
}

func (c *Connection) respond(requestID string, responseType MessageType, data any) {
	msg, err := NewMessage(responseType, c.gameService.clock.NowMs(), data)
	if err != nil {
		c.logger.Error("failed to encode response", "type", responseType, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

// sendError reports a failed command to the client with its stable code.
func (c *Connection) sendError(requestID string, err error) {
	e := game.AsError(err)
	msg, encodeErr := NewMessage(MessageTypeError, c.gameService.clock.NowMs(), ErrorData{
		Code:    string(e.Code),
		Message: e.Message,
		Status:  e.Status(),
	})
	if encodeErr != nil {
		c.logger.Error("failed to encode error message", "error", encodeErr)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}
