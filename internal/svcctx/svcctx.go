// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/readaloud/internal/audio"
	"github.com/jackzampolin/readaloud/internal/config"
	"github.com/jackzampolin/readaloud/internal/home"
	"github.com/jackzampolin/readaloud/internal/metrics"
	"github.com/jackzampolin/readaloud/internal/ocr"
	"github.com/jackzampolin/readaloud/internal/persist"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/session"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Factory   *providers.Factory
	Sessions  *session.Manager
	OCRRunner *ocr.Runner
	AudioGen  *audio.Generator
	Persist   *persist.Service
	Metrics   *metrics.Recorder
	ConfigMgr *config.Manager
	Settings  *config.Config // used when ConfigMgr is nil
	Logger    *slog.Logger
	Home      *home.Dir
}

type servicesKey struct{}

type sessionKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// WithSession returns a new context carrying the caller's session.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom extracts the caller's session from context.
// Returns nil if not present.
func SessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// FactoryFrom extracts the provider factory from context.
func FactoryFrom(ctx context.Context) *providers.Factory {
	if s := ServicesFrom(ctx); s != nil {
		return s.Factory
	}
	return nil
}

// SessionsFrom extracts the session manager from context.
func SessionsFrom(ctx context.Context) *session.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

// OCRRunnerFrom extracts the OCR runner from context.
func OCRRunnerFrom(ctx context.Context) *ocr.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.OCRRunner
	}
	return nil
}

// AudioGenFrom extracts the audio generator from context.
func AudioGenFrom(ctx context.Context) *audio.Generator {
	if s := ServicesFrom(ctx); s != nil {
		return s.AudioGen
	}
	return nil
}

// PersistFrom extracts the persistence service from context.
func PersistFrom(ctx context.Context) *persist.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Persist
	}
	return nil
}

// MetricsFrom extracts the usage recorder from context.
func MetricsFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// ConfigFrom returns the current configuration, or nil when none is set.
func ConfigFrom(ctx context.Context) *config.Config {
	s := ServicesFrom(ctx)
	if s == nil {
		return nil
	}
	if s.ConfigMgr != nil {
		return s.ConfigMgr.Get()
	}
	return s.Settings
}

// LoggerFrom extracts the logger from context.
// Falls back to slog.Default so callers never need a nil check.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
