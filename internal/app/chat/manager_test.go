package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusconnect/internal/app/user"
)

func newTestManager(t *testing.T, demoSeed bool, idle time.Duration) (*Manager, *user.MemoryDirectory) {
	t.Helper()

	dir := testDirectory()
	m := NewManager(dir, ManagerConfig{
		Session:  SessionConfig{Simulator: fastSimulator(), IdleTimeout: idle, NewRand: fixedRand},
		DemoSeed: demoSeed,
	})
	t.Cleanup(m.Shutdown)
	return m, dir
}

func TestManager_LoginSeedsDemoConversation(t *testing.T) {
	m, dir := newTestManager(t, true, 0)

	s, err := m.Login(context.Background(), "u1")
	require.NoError(t, err)
	require.Same(t, s, m.GetSession("u1", s.ID))

	convs := s.Conversations()
	require.Len(t, convs, 1)
	require.Equal(t, ConversationID("u1", "u2"), convs[0].ID)
	require.Equal(t, 1, convs[0].UnreadCount)
	require.Equal(t, demoOpener, convs[0].LastMessage.Content)

	u, _ := dir.Resolve(context.Background(), "u1")
	require.True(t, u.Online)
}

func TestManager_LoginUnknownUser(t *testing.T) {
	m, _ := newTestManager(t, false, 0)

	_, err := m.Login(context.Background(), "ghost")
	require.True(t, errors.Is(err, user.ErrUserNotFound))
	require.Zero(t, m.Count())
}

func TestManager_ReloginReplacesSession(t *testing.T) {
	m, _ := newTestManager(t, false, 0)

	first, err := m.Login(context.Background(), "u1")
	require.NoError(t, err)
	second, err := m.Login(context.Background(), "u1")
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	<-first.Closed()
	require.Nil(t, m.GetSession("u1", first.ID))
	require.Same(t, second, m.GetSession("u1", second.ID))
	require.Equal(t, 1, m.Count())

	require.False(t, m.Logout("u1", first.ID))
	require.True(t, m.Logout("u1", second.ID))
	require.Zero(t, m.Count())
}

func TestManager_LogoutMarksOffline(t *testing.T) {
	m, dir := newTestManager(t, false, 0)

	s, err := m.Login(context.Background(), "u2")
	require.NoError(t, err)
	require.True(t, m.Logout("u2", s.ID))

	<-s.Closed()
	u, _ := dir.Resolve(context.Background(), "u2")
	require.False(t, u.Online)
}

func TestManager_IdleSessionsAreRemoved(t *testing.T) {
	m, _ := newTestManager(t, false, 20*time.Millisecond)

	s, err := m.Login(context.Background(), "u3")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.Count() == 0 }, waitFor, tick)
	<-s.Closed()
}

func TestManager_ShutdownLogsOutEverySession(t *testing.T) {
	dir := testDirectory()
	m := NewManager(dir, ManagerConfig{Session: SessionConfig{Simulator: fastSimulator()}})

	a, err := m.Login(context.Background(), "u1")
	require.NoError(t, err)
	b, err := m.Login(context.Background(), "u2")
	require.NoError(t, err)

	m.Shutdown()

	<-a.Closed()
	<-b.Closed()
	require.Zero(t, m.Count())
}

// failingPresence is a directory whose presence store is unavailable.
type failingPresence struct {
	*user.MemoryDirectory
	calls atomic.Int32
}

func (d *failingPresence) SetOnline(context.Context, string, bool) error {
	d.calls.Add(1)
	return errors.New("presence store unavailable")
}

func TestManager_PresenceFailureDoesNotBlockSessions(t *testing.T) {
	dir := &failingPresence{MemoryDirectory: testDirectory()}
	m := NewManager(dir, ManagerConfig{Session: SessionConfig{Simulator: fastSimulator()}})
	t.Cleanup(m.Shutdown)

	s, err := m.Login(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, m.Logout("u1", s.ID))

	require.Equal(t, int32(2), dir.calls.Load())
}
