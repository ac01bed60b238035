package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/audio"
	"github.com/jackzampolin/readaloud/internal/config"
	"github.com/jackzampolin/readaloud/internal/home"
	"github.com/jackzampolin/readaloud/internal/metrics"
	"github.com/jackzampolin/readaloud/internal/ocr"
	"github.com/jackzampolin/readaloud/internal/persist"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/server/endpoints"
	"github.com/jackzampolin/readaloud/internal/session"
	"github.com/jackzampolin/readaloud/internal/svcctx"
)

// Server is the readaloud HTTP server.
// It owns the session manager and removes every session's playback files
// on shutdown.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	factory    *providers.Factory
	sessions   *session.Manager
	pacer      *ocr.Pacer
	configMgr  *config.Manager
	settings   *config.Config
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Settings is used when ConfigManager is nil (default: config.DefaultConfig)
	Settings *config.Config
	// Home holds the temp directory for playback files
	Home *home.Dir
	// Fs is the filesystem for playback and saved files (default: OS)
	Fs afero.Fs
	// Factory overrides the provider factory built from config
	Factory *providers.Factory
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	settings := cfg.Settings
	if cfg.ConfigManager != nil {
		settings = cfg.ConfigManager.Get()
	}
	if settings == nil {
		settings = config.DefaultConfig()
	}
	if cfg.Host == "" {
		cfg.Host = settings.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = settings.Server.Port
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	tempRoot := filepath.Join(os.TempDir(), "readaloud")
	if cfg.Home != nil {
		tempRoot = cfg.Home.TempPath()
	}

	factory := cfg.Factory
	if factory == nil {
		factory = providers.NewFactory(settings.ToFactoryConfig())
	}
	factory.SetLogger(cfg.Logger)

	pacer := ocr.NewPacer(settings.OCR.RequestGap())

	s := &Server{
		factory:   factory,
		pacer:     pacer,
		configMgr: cfg.ConfigManager,
		settings:  settings,
		logger:    cfg.Logger,
		sessions: session.NewManager(session.ManagerConfig{
			Fs:       cfg.Fs,
			TempRoot: tempRoot,
			IdleTTL:  settings.Session.IdleTTL(),
			Logger:   cfg.Logger,
		}),
	}

	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			if cfg.Factory == nil {
				factory.Reload(c.ToFactoryConfig())
			}
			pacer.SetGap(c.OCR.RequestGap())
			cfg.Logger.Info("providers reloaded from config", "ocr_model", c.OCR.Model, "tts_model", c.TTS.Model)
		})
	}

	recorder := metrics.NewRecorder(metrics.DefaultCapacity)
	runner := ocr.NewRunner(pacer, cfg.Logger)
	runner.SetRecorder(recorder)
	gen := audio.NewGenerator(factory, cfg.Logger)
	gen.SetRecorder(recorder)

	s.services = &svcctx.Services{
		Factory:   factory,
		Sessions:  s.sessions,
		OCRRunner: runner,
		AudioGen:  gen,
		Persist:   persist.New(cfg.Fs),
		Metrics:   recorder,
		ConfigMgr: cfg.ConfigManager,
		Settings:  settings,
		Logger:    cfg.Logger,
		Home:      cfg.Home,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.withSession)
	s.handler = s.withServices(mux)

	// No WriteTimeout: OCR batches and speech synthesis run inside the request.
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Start serves HTTP and sweeps idle sessions.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sessions.Run(sweepCtx, s.settings.Session.SweepInterval())

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server, then closes every session.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.sessions.CloseAll(); err != nil {
		s.logger.Error("session cleanup error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wired handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Metrics returns the provider usage recorder.
func (s *Server) Metrics() *metrics.Recorder {
	return s.services.Metrics
}

// Factory returns the provider factory.
func (s *Server) Factory() *providers.Factory {
	return s.factory
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSession attaches the caller's session, creating one when the request
// names none or an expired one. API clients name it with the X-Session-ID
// header; browsers with a cookie.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(api.SessionHeader)
		if id == "" {
			if c, err := r.Cookie(endpoints.SessionCookie); err == nil {
				id = c.Value
			}
		}

		sess, created := s.sessions.GetOrCreate(id)
		if created {
			s.logger.Debug("new session", "session_id", sess.ID, "remote", r.RemoteAddr)
		}
		if sess.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     endpoints.SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(api.SessionHeader, sess.ID)

		next(w, r.WithContext(svcctx.WithSession(r.Context(), sess)))
	}
}
