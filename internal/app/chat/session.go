/*
Package chat contains the realtime coordination core of Campus Connect.

This file defines Session, the composition root of one logged-in viewer. It owns the bus, the
connector, the simulator, the connection-request state machine and the reconciler, routes bus events
into them and exposes the operations the presentation layer calls.
*/
package chat

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"campusconnect/internal/app/user"
	"campusconnect/internal/configs"
	"campusconnect/internal/pkg/logx"
)

// SessionConfig holds the per-session settings.
type SessionConfig struct {
	Simulator configs.SimulatorConfig

	// BusBuffer is the bus queue depth; zero selects DefaultBusBuffer.
	BusBuffer int

	// IdleTimeout ends a session nobody touched for that long. Zero disables it.
	IdleTimeout time.Duration

	// NewRand supplies the simulator's random source; nil seeds from the clock.
	NewRand func() *rand.Rand
}

// SessionCleanupMsg asks the Manager to forget an ended session.
type SessionCleanupMsg struct {
	ViewerID  string
	SessionID string
}

// Snapshot is the presentation state of a session at one instant.
type Snapshot struct {
	ViewerID             string                      `json:"viewerId"`
	Connection           string                      `json:"connection"`
	Conversations        []Conversation              `json:"conversations"`
	Connections          map[string]ConnectionStatus `json:"connections"`
	ActiveConversationID string                      `json:"activeConversationId,omitempty"`
	TotalUnread          int                         `json:"totalUnread"`
}

// Session is the realtime state of one logged-in viewer.
type Session struct {
	// ID identifies this login; tokens are bound to it.
	ID string

	Viewer user.User

	directory user.Directory

	bus         *Bus
	connector   *Connector
	simulator   *Simulator
	connections *Connections
	reconciler  *Reconciler

	idleTimeout time.Duration
	idleTimer   *time.Timer

	// cleanup notifies the Manager once the session ended on its own.
	cleanup chan<- SessionCleanupMsg

	started   atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}

	logger zerolog.Logger
}

// NewSession assembles a session for viewer. Start must be called to connect.
func NewSession(viewer user.User, directory user.Directory, cfg SessionConfig, cleanup chan<- SessionCleanupMsg) *Session {
	id := uuid.NewString()
	componentLogger := func(name string) zerolog.Logger {
		return logx.Component(name).With().
			Str("viewer_id", viewer.ID).
			Str("session_id", id).
			Logger()
	}
	logger := componentLogger("session")

	var rng *rand.Rand
	if cfg.NewRand != nil {
		rng = cfg.NewRand()
	}

	s := &Session{
		ID:          id,
		Viewer:      viewer,
		directory:   directory,
		bus:         NewBus(cfg.BusBuffer, logger),
		idleTimeout: cfg.IdleTimeout,
		cleanup:     cleanup,
		closed:      make(chan struct{}),
		logger:      logger,
	}

	s.simulator = NewSimulator(s.bus, cfg.Simulator, rng, componentLogger("simulator"))
	s.connector = NewConnector(s.bus, s.simulator, cfg.Simulator.HandshakeDelay, componentLogger("connector"))
	s.connections = NewConnections(viewer.ID, s.connector, s.materialize, componentLogger("connections"))
	s.reconciler = NewReconciler(viewer.ID, directory, s.connector, componentLogger("reconciler"))

	s.bus.Subscribe(EventNewMessage, s.guard(s.handleNewMessage))
	s.bus.Subscribe(EventConnectionRequestSent, s.guard(func(evt Event) {
		if p, ok := evt.Payload.(ConnectionUpdatePayload); ok {
			s.connections.OnRequestSent(p.RecipientID)
		}
	}))
	s.bus.Subscribe(EventConnectionAccepted, s.guard(func(evt Event) {
		if p, ok := evt.Payload.(ConnectionUpdatePayload); ok {
			s.connections.OnAccepted(p.RecipientID)
		}
	}))
	s.bus.Subscribe(EventConnectionRejected, s.guard(func(evt Event) {
		if p, ok := evt.Payload.(ConnectionUpdatePayload); ok {
			s.connections.OnRejected(p.RecipientID)
		}
	}))

	return s
}

// Start runs the bus, connects the viewer and arms the idle timer.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.bus.Run()

	s.connector.Connect(s.Viewer.ID)

	if s.idleTimeout > 0 {
		s.idleTimer = time.AfterFunc(s.idleTimeout, s.expire)
	}

	s.logger.Info().Msg("Session started.")
}

// guard drops events produced under an earlier connection epoch.
func (s *Session) guard(h Handler) Handler {
	return func(evt Event) {
		if evt.Epoch != 0 && evt.Epoch != s.connector.Epoch() {
			s.logger.Debug().
				Str("event", string(evt.Type)).
				Uint64("event_epoch", evt.Epoch).
				Msg("Stale event ignored.")
			return
		}
		h(evt)
	}
}

func (s *Session) handleNewMessage(evt Event) {
	msg, ok := evt.Payload.(Message)
	if !ok {
		s.logger.Warn().Msg("new_message event without a message payload.")
		return
	}

	outcome, conv := s.reconciler.OnMessage(msg)
	if outcome == OutcomeDiscovered {
		s.bus.TryPublish(EventConversationDiscovered, conv)
	}
}

// materialize opens the conversation with an accepted counterpart.
func (s *Session) materialize(recipientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	counterpart, err := s.directory.Resolve(ctx, recipientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("recipient_id", recipientID).Msg("Accepted connection could not be resolved, no conversation created.")
		return
	}
	s.reconciler.OnConnectionAccepted(counterpart.Summary())
}

// Seed adds starter conversations.
func (s *Session) Seed(convs ...Conversation) {
	s.reconciler.Seed(convs...)
}

// Subscribe registers h for events of type t. Stale events are filtered out.
func (s *Session) Subscribe(t EventType, h Handler) Subscription {
	return s.bus.Subscribe(t, s.guard(h))
}

// Unsubscribe removes a handler registered with Subscribe.
func (s *Session) Unsubscribe(sub Subscription) {
	s.bus.Unsubscribe(sub)
}

// Flush waits until every event published so far has been handled.
// It must not be called from an event handler.
func (s *Session) Flush() bool {
	return s.bus.Flush()
}

// SendMessage dispatches content into conversationID.
func (s *Session) SendMessage(conversationID, content string) bool {
	s.Touch()
	return s.reconciler.SendMessage(conversationID, content)
}

// RequestConnection asks the server to connect the viewer with target.
func (s *Session) RequestConnection(target string) bool {
	s.Touch()
	return s.connections.RequestConnection(target)
}

// SetActiveConversation opens conversationID, or clears the selection when empty.
func (s *Session) SetActiveConversation(conversationID string) bool {
	s.Touch()
	return s.reconciler.SetActiveConversation(conversationID)
}

// MarkRead clears the unread counter of conversationID.
func (s *Session) MarkRead(conversationID string) bool {
	s.Touch()
	return s.reconciler.MarkRead(conversationID)
}

// ConnectionStatus returns the viewer's status with target.
func (s *Session) ConnectionStatus(target string) ConnectionStatus {
	return s.connections.Status(target)
}

// Conversations returns the ordered conversation list.
func (s *Session) Conversations() []Conversation {
	return s.reconciler.Conversations()
}

// Conversation returns one conversation.
func (s *Session) Conversation(id string) (Conversation, bool) {
	return s.reconciler.Conversation(id)
}

// TotalUnread is the sum of unread counters.
func (s *Session) TotalUnread() int {
	return s.reconciler.TotalUnread()
}

// State returns the connectivity of the session.
func (s *Session) State() ConnState {
	return s.connector.State()
}

// Snapshot captures the presentation state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ViewerID:             s.Viewer.ID,
		Connection:           s.connector.State().String(),
		Conversations:        s.reconciler.Conversations(),
		Connections:          s.connections.Statuses(),
		ActiveConversationID: s.reconciler.ActiveConversation(),
		TotalUnread:          s.reconciler.TotalUnread(),
	}
}

// Touch postpones the idle timeout.
func (s *Session) Touch() {
	select {
	case <-s.closed:
		return
	default:
	}
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.idleTimeout)
	}
}

// Closed is closed once the session has ended.
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// expire ends an idle session and asks the Manager to forget it.
func (s *Session) expire() {
	s.logger.Info().Dur("idle_timeout", s.idleTimeout).Msg("Session idle, logging out.")
	s.Logout()

	if s.cleanup == nil {
		return
	}
	select {
	case s.cleanup <- SessionCleanupMsg{ViewerID: s.Viewer.ID, SessionID: s.ID}:
	default:
		s.logger.Warn().Msg("Manager cleanup channel full, session left registered.")
	}
}

// Logout disconnects, cancels pending server responses and clears all viewer state.
// Safe to call more than once.
func (s *Session) Logout() {
	s.closeOnce.Do(func() {
		if s.idleTimer != nil {
			s.idleTimer.Stop()
		}

		s.connector.Disconnect()
		if s.started.Load() {
			s.bus.Flush()
		}

		s.reconciler.Reset()
		s.connections.Reset()

		s.bus.Stop()
		close(s.closed)

		s.logger.Info().Msg("Session logged out.")
	})
}
