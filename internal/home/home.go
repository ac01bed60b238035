package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the readaloud home directory.
	DefaultDirName = ".readaloud"

	// TempDirName is the subdirectory for session-scoped playback files.
	TempDirName = "tmp"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// DefaultOutputDirName is the folder under the user's home where saved files go.
	DefaultOutputDirName = "ocr_audio_output"
)

// Dir represents the readaloud home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.readaloud).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// TempPath returns the directory holding per-session playback files.
func (d *Dir) TempPath() string {
	return filepath.Join(d.path, TempDirName)
}

// SessionTempDir returns the playback directory for one session.
func (d *Dir) SessionTempDir(sessionID string) string {
	return filepath.Join(d.TempPath(), sessionID)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create temp directory (this also creates the parent)
	if err := os.MkdirAll(d.TempPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// PurgeTemp removes playback files left behind by a previous run.
func (d *Dir) PurgeTemp() error {
	if err := os.RemoveAll(d.TempPath()); err != nil {
		return fmt.Errorf("failed to purge temp directory: %w", err)
	}
	return os.MkdirAll(d.TempPath(), 0o755)
}

// DefaultOutputDir returns ~/ocr_audio_output, the default save folder.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultOutputDirName
	}
	return filepath.Join(home, DefaultOutputDirName)
}
