/*
Package chat contains the realtime coordination core of Campus Connect.

This file defines Simulator, the stand-in backend. It answers intents after configured delays:
messages are echoed back and followed by a canned reply from the recipient; connection requests are
acknowledged and later accepted or rejected. Every timer is bound to the connection context and
is stopped when the connection ends.
*/
package chat

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campusconnect/internal/configs"
	"campusconnect/internal/pkg/randx"
)

// Publisher accepts events for delivery.
type Publisher interface {
	PublishEvent(evt Event) bool
}

// Simulator implements Dispatcher with scheduled, in-process responses.
type Simulator struct {
	bus    Publisher
	config configs.SimulatorConfig

	// mu protects rng and lastStamp.
	mu  sync.Mutex
	rng *rand.Rand

	// lastStamp keeps generated message timestamps strictly increasing.
	lastStamp time.Time

	logger zerolog.Logger
}

// NewSimulator creates a simulator publishing on bus. A nil rng is seeded from the clock.
func NewSimulator(bus Publisher, cfg configs.SimulatorConfig, rng *rand.Rand, logger zerolog.Logger) *Simulator {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>1))
	}

	return &Simulator{
		bus:    bus,
		config: cfg,
		rng:    rng,
		logger: logger,
	}
}

// Dispatch schedules the server's response to intent.
func (s *Simulator) Dispatch(ctx context.Context, epoch uint64, viewerID string, intent Intent) {
	switch intent.Type {
	case IntentSendMessage:
		payload, ok := intent.Payload.(SendMessagePayload)
		if !ok {
			s.logger.Warn().Str("intent", string(intent.Type)).Msg("Unexpected intent payload, dropping.")
			return
		}
		s.after(ctx, s.config.EchoDelay, func() {
			s.echo(ctx, epoch, viewerID, payload)
		})

	case IntentSendConnectionRequest:
		payload, ok := intent.Payload.(ConnectionRequestPayload)
		if !ok {
			s.logger.Warn().Str("intent", string(intent.Type)).Msg("Unexpected intent payload, dropping.")
			return
		}
		s.after(ctx, s.config.EchoDelay, func() {
			s.acknowledgeRequest(ctx, epoch, payload)
		})

	default:
		s.logger.Warn().Str("intent", string(intent.Type)).Msg("Unsupported intent type.")
	}
}

// echo delivers the viewer's own message back and schedules the counterpart's reply.
func (s *Simulator) echo(ctx context.Context, epoch uint64, viewerID string, p SendMessagePayload) {
	s.publish(epoch, EventNewMessage, Message{
		ID:             randx.MessageID(),
		ConversationID: p.ConversationID,
		SenderID:       viewerID,
		Content:        p.Content,
		Timestamp:      s.stamp(),
	})

	if p.RecipientID == "" || s.config.AutoReply == "" {
		return
	}

	s.after(ctx, s.config.ReplyDelay, func() {
		s.publish(epoch, EventNewMessage, Message{
			ID:             randx.MessageID(),
			ConversationID: p.ConversationID,
			SenderID:       p.RecipientID,
			Content:        s.config.AutoReply,
			Timestamp:      s.stamp(),
		})
	})
}

// acknowledgeRequest confirms a request and schedules its outcome.
func (s *Simulator) acknowledgeRequest(ctx context.Context, epoch uint64, p ConnectionRequestPayload) {
	s.publish(epoch, EventConnectionRequestSent, ConnectionUpdatePayload{
		RecipientID: p.RecipientID,
		Status:      StatusPending,
	})

	delay, reject := s.decide()
	s.after(ctx, delay, func() {
		if reject {
			s.publish(epoch, EventConnectionRejected, ConnectionUpdatePayload{
				RecipientID: p.RecipientID,
				Status:      StatusRejected,
			})
			return
		}
		s.publish(epoch, EventConnectionAccepted, ConnectionUpdatePayload{
			RecipientID: p.RecipientID,
			Status:      StatusConnected,
		})
	})
}

// decide picks the delay and outcome of a connection request.
func (s *Simulator) decide() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.config.AcceptDelay
	if s.config.AcceptJitter > 0 {
		delay += time.Duration(s.rng.Int64N(int64(s.config.AcceptJitter) + 1))
	}
	return delay, s.rng.Float64() < s.config.RejectRate
}

// stamp returns the current time, nudged forward if needed so timestamps never repeat.
func (s *Simulator) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

// after runs fn once d has elapsed, unless ctx ends first.
func (s *Simulator) after(ctx context.Context, d time.Duration, fn func()) {
	if ctx.Err() != nil {
		return
	}

	// registered hands the timer its cancel registration, released as soon as the timer fires.
	registered := make(chan func() bool, 1)
	timer := time.AfterFunc(d, func() {
		stop := <-registered
		stop()

		if ctx.Err() != nil {
			s.logger.Debug().Msg("Connection ended, scheduled response discarded.")
			return
		}
		fn()
	})
	registered <- context.AfterFunc(ctx, func() {
		timer.Stop()
	})
}

func (s *Simulator) publish(epoch uint64, t EventType, payload any) {
	if !s.bus.PublishEvent(Event{Type: t, Payload: payload, Epoch: epoch}) {
		s.logger.Debug().Str("event", string(t)).Msg("Bus closed, simulated event dropped.")
	}
}
