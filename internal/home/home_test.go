package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-readaloud")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-readaloud" {
			t.Errorf("expected path /tmp/test-readaloud, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-readaloud")

	t.Run("TempPath", func(t *testing.T) {
		expected := "/tmp/test-readaloud/tmp"
		if dir.TempPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.TempPath())
		}
	})

	t.Run("SessionTempDir", func(t *testing.T) {
		expected := "/tmp/test-readaloud/tmp/abc"
		if got := dir.SessionTempDir("abc"); got != expected {
			t.Errorf("expected %s, got %s", expected, got)
		}
	})

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-readaloud/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	appDir := filepath.Join(tmpDir, "readaloud-test")

	dir, err := New(appDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directory shouldn't exist yet
	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	if _, err := os.Stat(dir.TempPath()); os.IsNotExist(err) {
		t.Error("temp directory should exist after EnsureExists")
	}
}

func TestDir_PurgeTemp(t *testing.T) {
	dir, _ := New(t.TempDir())
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	stale := filepath.Join(dir.SessionTempDir("old"), "audio.mp3")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte{0x1}, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := dir.PurgeTemp(); err != nil {
		t.Fatalf("PurgeTemp failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale playback file should be removed")
	}
	if _, err := os.Stat(dir.TempPath()); err != nil {
		t.Error("temp directory should be recreated")
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}
