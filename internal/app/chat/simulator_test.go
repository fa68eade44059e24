package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// memPublisher collects published events.
type memPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *memPublisher) PublishEvent(evt Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return true
}

func (p *memPublisher) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func (p *memPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestSimulator_EchoThenAutoReply(t *testing.T) {
	pub := &memPublisher{}
	sim := NewSimulator(pub, fastSimulator(), fixedRand(), zerolog.Nop())

	sim.Dispatch(context.Background(), 7, "u1", Intent{
		Type:    IntentSendMessage,
		Payload: SendMessagePayload{ConversationID: "conv_1", Content: "hello", RecipientID: "u2"},
	})

	require.Eventually(t, func() bool { return pub.count() == 2 }, waitFor, tick)

	events := pub.snapshot()
	echo, reply := events[0].Payload.(Message), events[1].Payload.(Message)

	require.Equal(t, EventNewMessage, events[0].Type)
	require.Equal(t, uint64(7), events[0].Epoch)
	require.Equal(t, "u1", echo.SenderID)
	require.Equal(t, "hello", echo.Content)
	require.Equal(t, "conv_1", echo.ConversationID)
	require.False(t, echo.Read)

	require.Equal(t, "u2", reply.SenderID)
	require.Equal(t, "auto reply", reply.Content)
	require.Equal(t, "conv_1", reply.ConversationID)
	require.True(t, reply.Timestamp.After(echo.Timestamp))
	require.NotEqual(t, echo.ID, reply.ID)
}

func TestSimulator_NoAutoReplyWhenDisabled(t *testing.T) {
	cfg := fastSimulator()
	cfg.AutoReply = ""
	pub := &memPublisher{}
	sim := NewSimulator(pub, cfg, fixedRand(), zerolog.Nop())

	sim.Dispatch(context.Background(), 1, "u1", Intent{
		Type:    IntentSendMessage,
		Payload: SendMessagePayload{ConversationID: "conv_1", Content: "hello", RecipientID: "u2"},
	})

	require.Eventually(t, func() bool { return pub.count() == 1 }, waitFor, tick)
	time.Sleep(3 * cfg.ReplyDelay)
	require.Equal(t, 1, pub.count())
}

func TestSimulator_ConnectionRequestAccepted(t *testing.T) {
	pub := &memPublisher{}
	sim := NewSimulator(pub, fastSimulator(), fixedRand(), zerolog.Nop())

	sim.Dispatch(context.Background(), 3, "u1", Intent{
		Type:    IntentSendConnectionRequest,
		Payload: ConnectionRequestPayload{RequesterID: "u1", RecipientID: "u3"},
	})

	require.Eventually(t, func() bool { return pub.count() == 2 }, waitFor, tick)

	events := pub.snapshot()
	require.Equal(t, EventConnectionRequestSent, events[0].Type)
	require.Equal(t, ConnectionUpdatePayload{RecipientID: "u3", Status: StatusPending}, events[0].Payload)
	require.Equal(t, EventConnectionAccepted, events[1].Type)
	require.Equal(t, ConnectionUpdatePayload{RecipientID: "u3", Status: StatusConnected}, events[1].Payload)
	require.Equal(t, uint64(3), events[1].Epoch)
}

func TestSimulator_ConnectionRequestRejected(t *testing.T) {
	cfg := fastSimulator()
	cfg.RejectRate = 1
	pub := &memPublisher{}
	sim := NewSimulator(pub, cfg, fixedRand(), zerolog.Nop())

	sim.Dispatch(context.Background(), 1, "u1", Intent{
		Type:    IntentSendConnectionRequest,
		Payload: ConnectionRequestPayload{RequesterID: "u1", RecipientID: "u3"},
	})

	require.Eventually(t, func() bool { return pub.count() == 2 }, waitFor, tick)
	require.Equal(t, EventConnectionRejected, pub.snapshot()[1].Type)
}

func TestSimulator_CancelledContextStopsPendingResponses(t *testing.T) {
	cfg := fastSimulator()
	cfg.EchoDelay = 20 * time.Millisecond
	pub := &memPublisher{}
	sim := NewSimulator(pub, cfg, fixedRand(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	sim.Dispatch(ctx, 1, "u1", Intent{
		Type:    IntentSendMessage,
		Payload: SendMessagePayload{ConversationID: "conv_1", Content: "hello", RecipientID: "u2"},
	})
	cancel()

	time.Sleep(3 * (cfg.EchoDelay + cfg.ReplyDelay))
	require.Zero(t, pub.count())

	sim.Dispatch(ctx, 1, "u1", Intent{
		Type:    IntentSendConnectionRequest,
		Payload: ConnectionRequestPayload{RequesterID: "u1", RecipientID: "u3"},
	})
	time.Sleep(3 * cfg.EchoDelay)
	require.Zero(t, pub.count())
}

func TestSimulator_CancelBetweenEchoAndReply(t *testing.T) {
	cfg := fastSimulator()
	cfg.ReplyDelay = 50 * time.Millisecond
	pub := &memPublisher{}
	sim := NewSimulator(pub, cfg, fixedRand(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	sim.Dispatch(ctx, 1, "u1", Intent{
		Type:    IntentSendMessage,
		Payload: SendMessagePayload{ConversationID: "conv_1", Content: "hello", RecipientID: "u2"},
	})

	require.Eventually(t, func() bool { return pub.count() == 1 }, waitFor, tick)
	cancel()

	time.Sleep(3 * cfg.ReplyDelay)
	require.Equal(t, 1, pub.count())
}

func TestSimulator_IgnoresMalformedIntents(t *testing.T) {
	pub := &memPublisher{}
	sim := NewSimulator(pub, fastSimulator(), fixedRand(), zerolog.Nop())

	sim.Dispatch(context.Background(), 1, "u1", Intent{Type: IntentSendMessage, Payload: "not a payload"})
	sim.Dispatch(context.Background(), 1, "u1", Intent{Type: "unknown"})

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, pub.count())
}

func TestSimulator_StampStrictlyIncreasing(t *testing.T) {
	sim := NewSimulator(&memPublisher{}, fastSimulator(), nil, zerolog.Nop())

	prev := sim.stamp()
	for range 1000 {
		next := sim.stamp()
		require.True(t, next.After(prev))
		prev = next
	}
}

func TestSimulator_AcceptDelayWithinJitter(t *testing.T) {
	cfg := fastSimulator()
	cfg.AcceptDelay = time.Second
	cfg.AcceptJitter = 500 * time.Millisecond
	sim := NewSimulator(&memPublisher{}, cfg, fixedRand(), zerolog.Nop())

	for range 100 {
		delay, reject := sim.decide()
		require.False(t, reject)
		require.GreaterOrEqual(t, delay, cfg.AcceptDelay)
		require.LessOrEqual(t, delay, cfg.AcceptDelay+cfg.AcceptJitter)
	}
}

// trackingCtx is a live context counting the cancel registrations still attached to it.
type trackingCtx struct {
	context.Context
	done chan struct{}

	mu   sync.Mutex
	held int
}

func newTrackingCtx() *trackingCtx {
	return &trackingCtx{Context: context.Background(), done: make(chan struct{})}
}

func (c *trackingCtx) Done() <-chan struct{} { return c.done }

// AfterFunc is picked up by context.AfterFunc for parents that are not stdlib cancel contexts.
func (c *trackingCtx) AfterFunc(func()) func() bool {
	c.mu.Lock()
	c.held++
	c.mu.Unlock()

	var once sync.Once
	return func() bool {
		released := false
		once.Do(func() {
			c.mu.Lock()
			c.held--
			c.mu.Unlock()
			released = true
		})
		return released
	}
}

func (c *trackingCtx) registrations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

func TestSimulator_FiredTimersReleaseConnectionContext(t *testing.T) {
	sim := NewSimulator(&memPublisher{}, fastSimulator(), fixedRand(), zerolog.Nop())
	ctx := newTrackingCtx()

	const n = 200
	var fired sync.WaitGroup
	fired.Add(n)
	for range n {
		sim.after(ctx, 0, fired.Done)
	}
	fired.Wait()

	require.Zero(t, ctx.registrations())

	sim.after(ctx, time.Hour, func() {})
	require.Equal(t, 1, ctx.registrations())
}
