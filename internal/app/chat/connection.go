package chat

import (
	"sync"

	"github.com/rs/zerolog"
)

// ConnectionStatus is the viewer's relationship with another user.
type ConnectionStatus string

const (
	StatusNone      ConnectionStatus = "NONE"
	StatusPending   ConnectionStatus = "PENDING"
	StatusConnected ConnectionStatus = "CONNECTED"
	StatusRejected  ConnectionStatus = "REJECTED"
)

// Terminal reports whether no further transition can leave s.
func (s ConnectionStatus) Terminal() bool {
	return s == StatusConnected || s == StatusRejected
}

type connectionEntry struct {
	status ConnectionStatus

	// unconfirmed marks an optimistic PENDING the server has not acknowledged yet.
	unconfirmed bool
}

// Connections tracks per-target connection status for one viewer.
//
// Transitions only move forward: NONE → PENDING → CONNECTED | REJECTED. A late or duplicate
// server event never moves a target backwards.
type Connections struct {
	viewerID   string
	dispatcher IntentDispatcher

	// onAccepted is invoked for every accepted event, including duplicates.
	onAccepted func(recipientID string)

	mu      sync.RWMutex
	entries map[string]connectionEntry

	logger zerolog.Logger
}

// NewConnections creates an empty state machine for viewerID.
func NewConnections(viewerID string, dispatcher IntentDispatcher, onAccepted func(string), logger zerolog.Logger) *Connections {
	return &Connections{
		viewerID:   viewerID,
		dispatcher: dispatcher,
		onAccepted: onAccepted,
		entries:    make(map[string]connectionEntry),
		logger:     logger,
	}
}

// RequestConnection optimistically marks target PENDING and dispatches the request.
// It reports false when nothing was sent: the target is the viewer, a request already exists, or the session is offline.
// An undelivered request keeps its unconfirmed PENDING; only Reset clears it.
func (c *Connections) RequestConnection(target string) bool {
	if target == "" || target == c.viewerID {
		c.logger.Warn().Str("target_id", target).Msg("Connection request to self or empty target ignored.")
		return false
	}

	c.mu.Lock()
	if current := c.entries[target].status; current != "" && current != StatusNone {
		c.mu.Unlock()
		c.logger.Debug().Str("target_id", target).Str("status", string(current)).Msg("Duplicate connection request ignored.")
		return false
	}
	c.entries[target] = connectionEntry{status: StatusPending, unconfirmed: true}
	c.mu.Unlock()

	sent := c.dispatcher.Dispatch(IntentSendConnectionRequest, ConnectionRequestPayload{
		RequesterID: c.viewerID,
		RecipientID: target,
	})
	if !sent {
		c.logger.Warn().Str("target_id", target).Msg("Connection request not delivered, status stays PENDING unconfirmed.")
	}

	return sent
}

// OnRequestSent confirms a pending request.
func (c *Connections) OnRequestSent(recipientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.entries[recipientID].status
	if current.Terminal() {
		c.logger.Debug().Str("target_id", recipientID).Str("status", string(current)).Msg("Late request confirmation ignored.")
		return
	}
	c.entries[recipientID] = connectionEntry{status: StatusPending}
}

// OnAccepted marks recipientID CONNECTED and asks for the conversation to be materialized.
// Accepting a previously rejected target is refused.
func (c *Connections) OnAccepted(recipientID string) {
	c.mu.Lock()
	if current := c.entries[recipientID].status; current == StatusRejected {
		c.mu.Unlock()
		c.logger.Warn().Str("target_id", recipientID).Msg("Acceptance after rejection ignored.")
		return
	}
	c.entries[recipientID] = connectionEntry{status: StatusConnected}
	c.mu.Unlock()

	if c.onAccepted != nil {
		c.onAccepted(recipientID)
	}
}

// OnRejected marks recipientID REJECTED unless it is already connected.
func (c *Connections) OnRejected(recipientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current := c.entries[recipientID].status; current == StatusConnected {
		c.logger.Warn().Str("target_id", recipientID).Msg("Rejection after acceptance ignored.")
		return
	}
	c.entries[recipientID] = connectionEntry{status: StatusRejected}
}

// Status returns the status for target, NONE when unknown.
func (c *Connections) Status(target string) ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[target]; ok {
		return e.status
	}
	return StatusNone
}

// Confirmed reports whether the server has acknowledged the current status of target.
func (c *Connections) Confirmed(target string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[target]
	return ok && !e.unconfirmed
}

// Statuses returns a snapshot of every non-NONE status.
func (c *Connections) Statuses() map[string]ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ConnectionStatus, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.status
	}
	return out
}

// Reset forgets every status.
func (c *Connections) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
