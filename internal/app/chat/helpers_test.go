package chat

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusconnect/internal/app/user"
	"campusconnect/internal/configs"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

// fastSimulator shrinks every delay so lifecycle tests finish in milliseconds.
func fastSimulator() configs.SimulatorConfig {
	return configs.SimulatorConfig{
		HandshakeDelay: 5 * time.Millisecond,
		EchoDelay:      5 * time.Millisecond,
		ReplyDelay:     20 * time.Millisecond,
		AcceptDelay:    20 * time.Millisecond,
		AutoReply:      "auto reply",
	}
}

func fixedRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func testDirectory() *user.MemoryDirectory {
	return user.NewMemoryDirectory(user.DemoUsers()...)
}

func viewer(t *testing.T, dir user.Directory, id string) user.User {
	t.Helper()
	u, err := dir.Resolve(context.Background(), id)
	require.NoError(t, err)
	return u
}

// startSession starts a session for u1 and waits until it is connected.
func startSession(t *testing.T, cfg configs.SimulatorConfig) *Session {
	t.Helper()

	dir := testDirectory()
	s := NewSession(viewer(t, dir, "u1"), dir, SessionConfig{Simulator: cfg, NewRand: fixedRand}, nil)
	s.Start()
	t.Cleanup(s.Logout)

	require.Eventually(t, func() bool { return s.State() == StateConnected }, waitFor, tick)
	return s
}

// recorder collects events delivered to a handler.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message
	for _, e := range r.events {
		if m, ok := e.Payload.(Message); ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// stubDispatcher records intents and reports a fixed outcome.
type stubDispatcher struct {
	mu      sync.Mutex
	intents []Intent
	accept  bool
}

func (d *stubDispatcher) Dispatch(t IntentType, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, Intent{Type: t, Payload: payload})
	return d.accept
}

func (d *stubDispatcher) sent() []Intent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Intent(nil), d.intents...)
}
