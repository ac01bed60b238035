package session

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// OCREntry is one OCR result. Index is its position in the store and never
// changes for the life of the session. PreviewRef and RawBytes are set on
// append and never modified; only Text is editable.
type OCREntry struct {
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	PreviewRef string    `json:"preview_ref"`
	RawBytes   []byte    `json:"-"`
	Name       string    `json:"name,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	Media      string    `json:"media,omitempty"`
	PageCount  int       `json:"page_count,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasImage reports whether raw image bytes were captured for preview.
func (e OCREntry) HasImage() bool {
	return len(e.RawBytes) > 0
}

// OCRStore is an ordered, append-only list of OCR results.
type OCRStore struct {
	mu      sync.RWMutex
	entries []OCREntry
}

// NewOCRStore creates an empty store.
func NewOCRStore() *OCRStore {
	return &OCRStore{}
}

// Append adds an entry and returns its index.
func (s *OCRStore) Append(e OCREntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Index = len(s.entries)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.RawBytes = append([]byte(nil), e.RawBytes...)
	if len(e.RawBytes) == 0 {
		e.RawBytes = nil
	}
	s.entries = append(s.entries, e)
	return e.Index
}

// Edit replaces the text at index. Out of range is a no-op that returns false.
func (s *OCRStore) Edit(index int, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.entries) {
		return false
	}
	s.entries[index].Text = text
	return true
}

// Get returns a copy of the entry at index.
func (s *OCRStore) Get(index int) (OCREntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.entries) {
		return OCREntry{}, false
	}
	return s.entries[index], true
}

// List returns copies of all entries in index order.
func (s *OCRStore) List() []OCREntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OCREntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *OCRStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear empties the store.
func (s *OCRStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// AudioEntry is one generated audio clip.
type AudioEntry struct {
	Index         int       `json:"index"`
	TextSnippet   string    `json:"text_snippet"`
	Voice         string    `json:"voice"`
	Audio         []byte    `json:"-"`
	EphemeralPath string    `json:"ephemeral_path"`
	Size          int       `json:"size"`
	CreatedAt     time.Time `json:"created_at"`
}

// AudioStore is an ordered, append-only list of audio clips.
// It owns the ephemeral playback files referenced by its entries.
type AudioStore struct {
	mu      sync.RWMutex
	fs      afero.Fs
	entries []AudioEntry
}

// NewAudioStore creates an empty store whose files live on fs.
func NewAudioStore(fs afero.Fs) *AudioStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &AudioStore{fs: fs}
}

// Append adds an entry and returns its index.
func (s *AudioStore) Append(e AudioEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Index = len(s.entries)
	e.Size = len(e.Audio)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, e)
	return e.Index
}

// Get returns a copy of the entry at index.
func (s *AudioStore) Get(index int) (AudioEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.entries) {
		return AudioEntry{}, false
	}
	return s.entries[index], true
}

// List returns copies of all entries in index order.
func (s *AudioStore) List() []AudioEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AudioEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *AudioStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear empties the store and removes the playback files.
func (s *AudioStore) Clear() error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()
	return s.removeFiles(entries)
}

// Close removes every playback file. The entries stay listed.
func (s *AudioStore) Close() error {
	return s.removeFiles(s.List())
}

func (s *AudioStore) removeFiles(entries []AudioEntry) error {
	var errs []error
	for _, e := range entries {
		if e.EphemeralPath == "" {
			continue
		}
		if err := s.fs.Remove(e.EphemeralPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", e.EphemeralPath, err))
		}
	}
	return errors.Join(errs...)
}
