package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/config"
	"github.com/jackzampolin/readaloud/internal/home"
	"github.com/jackzampolin/readaloud/internal/server"
)

var (
	serveHost  string
	servePort  string
	serveDebug bool
	envFile    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the readaloud server",
	Long: `Start the readaloud HTTP server and page.

API keys typed into the page are used for that request only. When a key
is left empty the server falls back to ocr.api_key / tts.api_key from the
config. Both are empty by default, so a key must be entered unless one is
configured, e.g. tts.api_key: ${OPENAI_API_KEY}. A .env file in the working
directory is loaded first.

Generated audio is kept under ~/.readaloud/tmp while a session is alive and
removed when the session ends or the server stops.

Examples:
  readaloud serve                    # Start on 127.0.0.1:8080
  readaloud serve --port 3000        # Start on custom port
  readaloud serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}

		level := slog.LevelInfo
		if serveDebug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		// Playback files from a previous run belong to sessions that no longer exist.
		if err := h.PurgeTemp(); err != nil {
			logger.Warn("failed to purge stale playback files", "path", h.TempPath(), "error", err)
		}

		path := cfgFile
		if path == "" && h.ConfigExists() {
			path = h.ConfigPath()
		}
		cfgMgr, err := config.NewManager(path)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()
		if used := cfgMgr.ConfigFile(); used != "" {
			logger.Info("loaded config", "file", used)
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host, 127.0.0.1)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port, 8080)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before config")

	rootCmd.AddCommand(serveCmd)
}
