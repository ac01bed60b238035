package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrNotFound is returned for an unknown or closed session ID.
var ErrNotFound = errors.New("session not found")

// ManagerConfig configures a session Manager.
type ManagerConfig struct {
	Fs       afero.Fs      // Filesystem for playback files (default: OS)
	TempRoot string        // Parent of every session's temp directory
	IdleTTL  time.Duration // Sessions unused this long are closed by Sweep (0 = never)
	Logger   *slog.Logger
	Now      func() time.Time // Optional (tests)
}

// Manager tracks live sessions by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	fs       afero.Fs
	tempRoot string
	idleTTL  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates an empty session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		fs:       cfg.Fs,
		tempRoot: cfg.TempRoot,
		idleTTL:  cfg.IdleTTL,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Create starts a new session with a random ID.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := newSession(id, filepath.Join(m.tempRoot, id), m.fs, m.now())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Debug("session created", "session_id", id)
	return s
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.Closed() {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

// GetOrCreate returns the session for id, or a new one when id is unknown
// or not a valid session ID. created reports which happened.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if _, err := uuid.Parse(id); err == nil {
		if s, err := m.Get(id); err == nil {
			return s, false
		}
	}
	return m.Create(), true
}

// Close tears down a session and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	m.logger.Debug("session closed", "session_id", id)
	return s.Close()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle longer than the TTL and returns how many it closed.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		if err := s.Close(); err != nil {
			m.logger.Warn("failed to clean up idle session", "session_id", s.ID, "error", err)
		}
	}
	if len(stale) > 0 {
		m.logger.Info("closed idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll tears down every session. Used on shutdown.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
