// Package persist writes OCR text and audio to a user-chosen folder.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// Kind selects how content is written.
type Kind int

const (
	Text Kind = iota
	Binary
)

// ErrInvalidText is returned when text content is not valid UTF-8.
var ErrInvalidText = errors.New("content is not valid UTF-8")

// ErrEmptyFolder is returned when no folder is given.
var ErrEmptyFolder = errors.New("folder path is required")

// FolderStatus is the result of checking an output folder.
type FolderStatus struct {
	Path    string `json:"path"`
	Existed bool   `json:"existed"`
	Created bool   `json:"created"`
	Error   string `json:"error,omitempty"`
}

// Service writes files through an afero filesystem.
type Service struct {
	fs   afero.Fs
	home func() (string, error)
}

// New returns a Service backed by fs (OS filesystem when nil).
func New(fs afero.Fs) *Service {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Service{fs: fs, home: os.UserHomeDir}
}

// Fs returns the underlying filesystem.
func (s *Service) Fs() afero.Fs {
	return s.fs
}

// ExpandPath expands a leading ~ and cleans the path.
func (s *Service) ExpandPath(folder string) (string, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return "", ErrEmptyFolder
	}
	if folder == "~" || strings.HasPrefix(folder, "~/") {
		home, err := s.home()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		folder = filepath.Join(home, strings.TrimPrefix(folder, "~"))
	}
	if !filepath.IsAbs(folder) {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", folder, err)
		}
		folder = abs
	}
	return filepath.Clean(folder), nil
}

// Save creates folder (with parents) and writes content to folder/filename.
// Text content must be valid UTF-8. Returns the full path written.
// Callers verify the result separately with Exists.
func (s *Service) Save(content []byte, filename, folder string, kind Kind) (string, error) {
	dir, err := s.ExpandPath(folder)
	if err != nil {
		return "", err
	}
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	if kind == Text && !utf8.Valid(content) {
		return "", ErrInvalidText
	}

	path := filepath.Join(dir, filename)
	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return path, nil
}

// SaveText is Save for strings.
func (s *Service) SaveText(text, filename, folder string) (string, error) {
	return s.Save([]byte(text), filename, folder, Text)
}

// Exists reports whether path is present on disk.
func (s *Service) Exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

// EnsureFolder reports whether folder exists and creates it when missing.
func (s *Service) EnsureFolder(folder string) FolderStatus {
	dir, err := s.ExpandPath(folder)
	if err != nil {
		return FolderStatus{Path: folder, Error: err.Error()}
	}
	status := FolderStatus{Path: dir}
	if ok, _ := afero.DirExists(s.fs, dir); ok {
		status.Existed = true
		return status
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Created = true
	return status
}

// OCRJSON renders {"ocr_result": text} indented by two spaces, keeping
// non-ASCII and HTML characters literal.
func OCRJSON(text string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		OCRResult string `json:"ocr_result"`
	}{text}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// OCRJSONName is Output_<n>.json for the zero-based index.
func OCRJSONName(index int) string {
	return fmt.Sprintf("Output_%d.json", index+1)
}

// OCRTextName is Output_<n>.txt for the zero-based index.
func OCRTextName(index int) string {
	return fmt.Sprintf("Output_%d.txt", index+1)
}

// AudioName is Audio_<n>_<prefix>.mp3, where prefix is the first 20
// characters of the snippet with spaces and path separators replaced by "_".
func AudioName(index int, snippet string) string {
	runes := []rune(snippet)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	prefix := strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(string(runes))
	return fmt.Sprintf("Audio_%d_%s.mp3", index+1, prefix)
}

// AudioDownloadName is Audio_<n>.mp3, the name offered for browser downloads.
func AudioDownloadName(index int) string {
	return fmt.Sprintf("Audio_%d.mp3", index+1)
}
