/*
Package chat contains the realtime coordination core of Campus Connect.

This file defines the Manager struct, which tracks the active Session of every logged-in viewer.
It creates sessions on login, replaces them on re-login and forgets them on logout or idle expiry.
*/
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campusconnect/internal/app/user"
	"campusconnect/internal/pkg/logx"
)

// ManagerConfig holds the settings applied to every session.
type ManagerConfig struct {
	Session SessionConfig

	// DemoSeed adds a starter conversation to every new session.
	DemoSeed bool
}

// Manager coordinates the sessions of all viewers.
type Manager struct {
	// sessions stores the current Session of each viewer, keyed by viewer id.
	sessions map[string]*Session

	directory user.Directory
	config    ManagerConfig

	// mu protects concurrent access to the sessions map.
	mu sync.RWMutex

	// the channel used by Sessions to notify the Manager that they expired. It is never closed.
	cleanup chan SessionCleanupMsg

	// done is closed by Shutdown to stop the cleanup loop.
	done chan struct{}

	// wg is used to wait for the runCleanupLoop goroutine to finish during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewManager constructs a Manager and starts its cleanup loop.
func NewManager(directory user.Directory, cfg ManagerConfig) *Manager {
	m := &Manager{
		sessions:  make(map[string]*Session),
		directory: directory,
		config:    cfg,
		cleanup:   make(chan SessionCleanupMsg, 10),
		done:      make(chan struct{}),
		logger:    logx.Component("manager"),
	}

	m.wg.Add(1)

	go m.runCleanupLoop()

	return m
}

// runCleanupLoop removes sessions that announced their own expiry.
func (m *Manager) runCleanupLoop() {
	defer m.wg.Done()

	m.logger.Info().Msg("Cleanup loop started.")

	for {
		select {
		case msg := <-m.cleanup:
			m.deleteSession(msg.ViewerID, msg.SessionID)
		case <-m.done:
			m.logger.Info().Msg("Cleanup loop stopped.")
			return
		}
	}
}

// deleteSession forgets the viewer's session if it is still sessionID and returns it.
func (m *Manager) deleteSession(viewerID, sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[viewerID]
	if !ok || s.ID != sessionID {
		return nil
	}
	delete(m.sessions, viewerID)
	m.setOnline(viewerID, false)
	m.logger.Info().Str("viewer_id", viewerID).Str("session_id", sessionID).Msg("Session successfully removed.")
	return s
}

// presenceTimeout bounds a presence update against the directory.
const presenceTimeout = 2 * time.Second

// setOnline updates presence when the directory tracks it. Failures are logged, never returned.
func (m *Manager) setOnline(viewerID string, online bool) {
	p, ok := m.directory.(user.Presence)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	if err := p.SetOnline(ctx, viewerID, online); err != nil {
		m.logger.Warn().Err(err).Str("viewer_id", viewerID).Bool("online", online).Msg("Presence update failed.")
	}
}

// Login starts a session for viewerID. A session the viewer already had is logged out and replaced.
func (m *Manager) Login(ctx context.Context, viewerID string) (*Session, error) {
	viewer, err := m.directory.Resolve(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("resolve viewer %q: %w", viewerID, err)
	}

	var seed []Conversation
	if m.config.DemoSeed {
		if seed, err = demoConversations(ctx, viewer.ID, m.directory); err != nil {
			m.logger.Warn().Err(err).Str("viewer_id", viewer.ID).Msg("Demo seed unavailable, starting empty.")
		}
	}

	s := NewSession(viewer, m.directory, m.config.Session, m.cleanup)
	s.Seed(seed...)

	m.mu.Lock()
	previous := m.sessions[viewer.ID]
	m.sessions[viewer.ID] = s
	m.mu.Unlock()

	if previous != nil {
		m.logger.Info().Str("viewer_id", viewer.ID).Str("session_id", previous.ID).Msg("Replacing existing session.")
		previous.Logout()
	}

	s.Start()
	m.setOnline(viewer.ID, true)

	m.logger.Info().Str("viewer_id", viewer.ID).Str("session_id", s.ID).Msg("New Session created and started.")
	return s, nil
}

// Logout ends the viewer's session if it is still sessionID. It reports whether a session ended.
func (m *Manager) Logout(viewerID, sessionID string) bool {
	s := m.deleteSession(viewerID, sessionID)
	if s == nil {
		return false
	}
	s.Logout()
	return true
}

// GetSession returns the viewer's session when it is still sessionID, or nil.
func (m *Manager) GetSession(viewerID, sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[viewerID]
	if !ok || s.ID != sessionID {
		return nil
	}
	return s
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown logs out every session, stops the cleanup loop and waits for the cleanup goroutine to exit.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down Manager cleanup loop...")

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Logout()
		m.setOnline(s.Viewer.ID, false)
	}

	close(m.done)
	m.wg.Wait()

	m.logger.Info().Msg("Manager shutdown complete.")
}
