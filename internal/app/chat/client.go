/*
Package chat contains the realtime coordination core of Campus Connect.

This file defines the Client struct, the WebSocket view of a Session. It forwards every bus event
to the browser followed by a fresh state snapshot, turns inbound frames into session operations and
keeps the connection alive (ReadPump and WritePump).
*/
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"campusconnect/internal/app/user"
	"campusconnect/internal/pkg/auth/jwt"
	"campusconnect/internal/pkg/errs"
	"campusconnect/internal/pkg/limiter"
	"campusconnect/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// WsCloseCodeSessionEnded is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that its session was logged out or replaced by a new login.
	WsCloseCodeSessionEnded = 4001

	// TokenRefreshWindow defines how much time before the token expires we should attempt to refresh it.
	TokenRefreshWindow = 2 * time.Minute
)

// FrameType names an outbound frame that is not a bus event.
type FrameType string

const (
	FrameInitData    FrameType = "init_data"
	FrameState       FrameType = "state"
	FrameError       FrameType = "error"
	FrameTokenUpdate FrameType = "token_update"
)

// inbound frame types
const (
	inboundSendMessage           = "send_message"
	inboundSendConnectionRequest = "send_connection_request"
	inboundSetActiveConversation = "set_active_conversation"
	inboundMarkRead              = "mark_read"
)

// Frame is the envelope of every outbound WebSocket message.
type Frame struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// InitDataPayload is sent once after the socket opens.
type InitDataPayload struct {
	Viewer user.User `json:"viewer"`
	State  Snapshot  `json:"state"`
}

// TokenUpdatePayload carries a refreshed session token.
type TokenUpdatePayload struct {
	Token string `json:"token"`
}

// forwardedEvents are relayed to the browser as they happen.
var forwardedEvents = []EventType{
	EventConnect,
	EventDisconnect,
	EventNewMessage,
	EventConnectionRequestSent,
	EventConnectionAccepted,
	EventConnectionRejected,
	EventConversationDiscovered,
}

// Client represents an active WebSocket connection bound to a Session.
type Client struct {
	session *Session

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// tokenExpiry records the expiration time of the current JWT used by the client.
	// Only WritePump touches it.
	tokenExpiry time.Time
	jwtSecret   string

	// limiter throttles inbound frames per viewer; nil disables throttling.
	limiter *limiter.KeyedRateLimiter

	// a buffered channel used to queue frames waiting to be sent to the client. It is never closed.
	send chan []byte

	// done is closed once the client shuts down.
	done      chan struct{}
	closeOnce sync.Once

	// initialized is closed once init_data is queued; forwarded events wait for it.
	initialized chan struct{}

	subs []Subscription

	// structured logger with client and session context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(session *Session, wsConn *websocket.Conn, expiry time.Time, jwtSecret string, lim *limiter.KeyedRateLimiter) *Client {
	clientLogger := logx.Component("ws_client").With().
		Str("viewer_id", session.Viewer.ID).
		Str("session_id", session.ID).
		Logger()

	return &Client{
		session:     session,
		conn:        wsConn,
		tokenExpiry: expiry,
		jwtSecret:   jwtSecret,
		limiter:     lim,
		send:        make(chan []byte, 256),
		done:        make(chan struct{}),
		initialized: make(chan struct{}),
		logger:      clientLogger,
	}
}

// Start subscribes the client to the session and queues the initial state.
// Events delivered in between are held until init_data is queued, so the snapshot is always the first frame.
func (c *Client) Start() {
	c.subscribe()
	c.sendInitData()
}

func (c *Client) subscribe() {
	for _, t := range forwardedEvents {
		c.subs = append(c.subs, c.session.Subscribe(t, c.forward))
	}
}

func (c *Client) sendInitData() {
	c.sendFrame(string(FrameInitData), InitDataPayload{
		Viewer: c.session.Viewer,
		State:  c.session.Snapshot(),
	})
	close(c.initialized)
}

// forward relays one bus event followed by the state it produced. It runs on the bus goroutine.
func (c *Client) forward(evt Event) {
	select {
	case <-c.initialized:
	case <-c.done:
		return
	}

	c.sendFrame(string(evt.Type), evt.Payload)
	c.sendFrame(string(FrameState), c.session.Snapshot())
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame parsing, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.close()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (Client close/going away)")
			}
			break
		}

		if c.limiter != nil && !c.limiter.Allow(c.session.Viewer.ID) {
			c.SendError(errs.NewError(errs.ErrRateLimitExceeded))
			continue
		}

		c.processInbound(frameBytes)
	}
}

// processInbound decodes one client frame and applies it to the session.
func (c *Client) processInbound(frameBytes []byte) {
	var inbound struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	if err := json.Unmarshal(frameBytes, &inbound); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	var payload struct {
		ConversationID string `json:"conversationId"`
		Content        string `json:"content"`
		RecipientID    string `json:"recipientId"`
	}
	if len(inbound.Payload) > 0 {
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Str("frame_type", inbound.Type).Msg("Client sent invalid payload")
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
	}

	var cErr *errs.CustomError
	switch inbound.Type {
	case inboundSendMessage:
		cErr = c.session.HandleSendMessage(payload.ConversationID, payload.Content)

	case inboundSendConnectionRequest:
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		cErr = c.session.HandleConnectionRequest(ctx, payload.RecipientID)
		cancel()
		if cErr == nil {
			c.sendFrame(string(FrameState), c.session.Snapshot())
		}

	case inboundSetActiveConversation:
		cErr = c.session.HandleSetActiveConversation(payload.ConversationID)
		if cErr == nil {
			c.sendFrame(string(FrameState), c.session.Snapshot())
		}

	case inboundMarkRead:
		cErr = c.session.HandleMarkRead(payload.ConversationID)
		if cErr == nil {
			c.sendFrame(string(FrameState), c.session.Snapshot())
		}

	default:
		c.logger.Warn().Str("frame_type", inbound.Type).Msg("Client sent unsupported frame type")
		cErr = errs.NewError(errs.ErrInvalidParams)
	}

	if cErr != nil {
		c.SendError(cErr)
	}
}

// WritePump handles writing frames from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(frame) {
				return
			}

		case <-c.session.Closed():
			c.Kick("session ended")
			return

		case <-c.done:
			return

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}

			c.session.Touch()
			c.checkAndRefreshToken()
		}
	}
}

// writeFrame writes one queued frame. Returns false if the WritePump loop should terminate.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// checkAndRefreshToken issues a new token for the same session when the current one is about to expire.
func (c *Client) checkAndRefreshToken() {
	if time.Now().Before(c.tokenExpiry.Add(-TokenRefreshWindow)) {
		return
	}

	c.logger.Info().
		Time("current_expiry", c.tokenExpiry).
		Dur("refresh_window", TokenRefreshWindow).
		Msg("JWT token is nearing expiry, attempting refresh.")

	payload := &jwt.Payload{
		ID:        c.session.Viewer.ID,
		Name:      c.session.Viewer.Name,
		SessionID: c.session.ID,
	}

	tokenString, err := jwt.GenerateToken(payload, c.jwtSecret, jwt.SessionExpiration)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to generate new token. Aborting refresh.")
		return
	}

	if !c.sendFrame(string(FrameTokenUpdate), TokenUpdatePayload{Token: tokenString}) {
		c.logger.Error().Msg("Failed to send token update to client.")
		return
	}

	c.tokenExpiry = payload.Expiry()
}

// sendFrame marshals payload into a frame and queues it without blocking.
// A client whose queue is full is disconnected.
func (c *Client) sendFrame(frameType string, payload any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	frameBytes, err := json.Marshal(Frame{
		Type:      frameType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", frameType).Msg("Error marshaling frame for client")
		return false
	}

	select {
	case c.send <- frameBytes:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, disconnecting slow client")
		go c.close()
		return false
	}
}

// SendError queues an error frame.
func (c *Client) SendError(cErr *errs.CustomError) {
	if cErr == nil {
		cErr = errs.NewError(errs.ErrUnknown)
	}
	c.sendFrame(string(FrameError), cErr)
}

// Kick closes the connection with a custom Close Frame (Code 4001) telling the client its session is gone.
// It must only be called from the WritePump goroutine.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionEnded).
		Str("reason", reason).
		Msg("Sending WS close message and closing connection.")

	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionEnded, reason)

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to set write deadline on close")
	}

	if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send WS 4001 Close Message.")
	}
}

// close detaches the client from the session and closes the connection. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)

		for _, sub := range c.subs {
			c.session.Unsubscribe(sub)
		}

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}

		c.logger.Info().Msg("Client connection cleanup complete.")
	})
}
