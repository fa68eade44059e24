/*
Package chat contains the realtime coordination core of Campus Connect.

This file defines Connector, which owns the logical connection of one viewer
(DISCONNECTED → CONNECTING → CONNECTED) and is the only path by which intents reach the server.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnState is the connectivity state of a Connector.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// Dispatcher is the server side receiving intents. ctx is cancelled when the connection ends.
type Dispatcher interface {
	Dispatch(ctx context.Context, epoch uint64, viewerID string, intent Intent)
}

// IntentDispatcher sends intents on behalf of the viewer. It reports whether the intent left the client.
type IntentDispatcher interface {
	Dispatch(t IntentType, payload any) bool
}

// Connector manages the connection lifecycle of one viewer.
type Connector struct {
	bus       *Bus
	server    Dispatcher
	handshake time.Duration

	// mu protects every field below.
	mu       sync.Mutex
	state    ConnState
	viewerID string

	// epoch increases on every connect and disconnect; events stamped with an older epoch are stale.
	epoch uint64

	// ctx lives as long as the current connection and bounds the server's timers.
	ctx    context.Context
	cancel context.CancelFunc

	handshakeTimer *time.Timer

	logger zerolog.Logger
}

// NewConnector creates a disconnected connector publishing lifecycle events on bus.
func NewConnector(bus *Bus, server Dispatcher, handshake time.Duration, logger zerolog.Logger) *Connector {
	return &Connector{
		bus:       bus,
		server:    server,
		handshake: handshake,
		state:     StateDisconnected,
		logger:    logger,
	}
}

// Connect starts the handshake for userID. It is a no-op unless the connector is disconnected.
func (c *Connector) Connect(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		c.logger.Debug().Str("state", c.state.String()).Msg("Connect ignored, connection already in progress.")
		return
	}

	c.epoch++
	c.viewerID = userID
	c.state = StateConnecting
	c.ctx, c.cancel = context.WithCancel(context.Background())

	epoch := c.epoch
	c.handshakeTimer = time.AfterFunc(c.handshake, func() {
		c.completeHandshake(epoch)
	})

	c.logger.Info().Str("user_id", userID).Uint64("epoch", epoch).Msg("Connecting.")
}

// completeHandshake moves CONNECTING to CONNECTED if epoch is still current.
func (c *Connector) completeHandshake(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	userID := c.viewerID
	c.mu.Unlock()

	c.logger.Info().Str("user_id", userID).Uint64("epoch", epoch).Msg("Connected.")
	c.bus.PublishEvent(Event{
		Type:    EventConnect,
		Payload: ConnectPayload{UserID: userID, At: time.Now().UTC()},
		Epoch:   epoch,
	})
}

// Disconnect drops the connection immediately and cancels everything still in flight for it.
// It is a no-op when already disconnected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}

	c.state = StateDisconnected
	c.epoch++
	if c.handshakeTimer != nil {
		c.handshakeTimer.Stop()
	}
	c.cancel()
	userID := c.viewerID
	c.mu.Unlock()

	c.logger.Info().Str("user_id", userID).Msg("Disconnected.")
	c.bus.Publish(EventDisconnect, ConnectPayload{UserID: userID, At: time.Now().UTC()})
}

// Dispatch forwards an intent to the server. While not connected the intent is dropped and logged.
func (c *Connector) Dispatch(t IntentType, payload any) bool {
	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()

		c.logger.Warn().
			Str("intent", string(t)).
			Str("state", state.String()).
			Msg("Intent dropped, session is not connected.")
		return false
	}
	ctx, epoch, viewerID := c.ctx, c.epoch, c.viewerID
	c.mu.Unlock()

	c.server.Dispatch(ctx, epoch, viewerID, Intent{Type: t, Payload: payload})
	return true
}

// State returns the current connectivity state.
func (c *Connector) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Epoch returns the current connection epoch.
func (c *Connector) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}
