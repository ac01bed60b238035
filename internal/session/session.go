// Package session holds per-visitor state: the OCR and audio result stores,
// the playback files behind the audio entries, and pending notices for the page.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Notice levels, matching the page's message styles.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// ErrClosed is returned for actions on a session that has been torn down.
var ErrClosed = errors.New("session closed")

// Notice is a one-shot message shown on the next page render.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Session owns one visitor's stores and playback directory.
type Session struct {
	ID        string
	OCR       *OCRStore
	Audio     *AudioStore
	TempDir   string
	CreatedAt time.Time

	fs afero.Fs

	// action serializes Process/Generate so one operation runs at a time.
	action sync.Mutex

	mu       sync.Mutex
	lastSeen time.Time
	notices  []Notice
	folders  map[string]string
	pick     int
	closed   bool
}

func newSession(id, tempDir string, fs afero.Fs, now time.Time) *Session {
	return &Session{
		ID:        id,
		OCR:       NewOCRStore(),
		Audio:     NewAudioStore(fs),
		TempDir:   tempDir,
		CreatedAt: now,
		fs:        fs,
		lastSeen:  now,
		folders:   make(map[string]string),
	}
}

// Exclusive runs fn while holding the session's action lock. An action that
// was waiting on the lock while the session closed does not run.
func (s *Session) Exclusive(fn func() error) error {
	s.action.Lock()
	defer s.action.Unlock()
	if s.Closed() {
		return ErrClosed
	}
	return fn()
}

// WriteTempAudio stores audio in a fresh file under the session's temp directory.
func (s *Session) WriteTempAudio(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = "mp3"
	}
	if s.Closed() {
		return "", ErrClosed
	}
	if err := s.fs.MkdirAll(s.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	f, err := afero.TempFile(s.fs, s.TempDir, "audio-*."+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.fs.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}

// ReadTempAudio reads a playback file belonging to this session.
func (s *Session) ReadTempAudio(path string) ([]byte, error) {
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(s.TempDir)+string(filepath.Separator)) {
		return nil, fmt.Errorf("path %s is outside the session directory", path)
	}
	return afero.ReadFile(s.fs, path)
}

// Notify queues a notice for the next page render.
func (s *Session) Notify(level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Message: message})
}

// TakeNotices returns and clears pending notices.
func (s *Session) TakeNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// Folder returns the last folder used by a panel ("ocr" or "audio").
func (s *Session) Folder(panel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folders[panel]
}

// SetFolder remembers the folder typed into a panel.
func (s *Session) SetFolder(panel, folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[panel] = folder
}

// PickForAudio marks an OCR result as the default audio source.
func (s *Session) PickForAudio(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pick = index
}

// AudioPick returns the OCR result picked for audio, clamped to the store.
func (s *Session) AudioPick() int {
	s.mu.Lock()
	pick := s.pick
	s.mu.Unlock()
	if pick < 0 || pick >= s.OCR.Len() {
		return 0
	}
	return pick
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close removes the session's playback files and directory.
// Waits for any running action to finish first.
func (s *Session) Close() error {
	s.action.Lock()
	defer s.action.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Audio.Close()
	if rmErr := s.fs.RemoveAll(s.TempDir); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("failed to remove session directory: %w", rmErr)
	}
	return err
}
