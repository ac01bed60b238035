package main

import (
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/server/endpoints"
)

var (
	serverURL   string
	waitTimeout time.Duration
)

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the server answers health checks",
	Long: `Poll /health until the server is up or --timeout passes.

Useful in scripts that start 'readaloud serve' in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(getServerURL())
		const interval = 250 * time.Millisecond
		attempts := uint(waitTimeout/interval) + 1

		err := retry.Do(
			func() error {
				var resp endpoints.HealthResponse
				if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
					return err
				}
				if resp.Status != "ok" {
					return fmt.Errorf("status %q", resp.Status)
				}
				return nil
			},
			retry.Context(cmd.Context()),
			retry.Attempts(attempts),
			retry.Delay(interval),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return fmt.Errorf("server at %s not ready after %s: %w", getServerURL(), waitTimeout, err)
		}
		fmt.Println("Status: ok")
		return nil
	},
}

func init() {
	registry := api.NewRegistry()
	for _, ep := range endpoints.All() {
		registry.Register(ep)
	}
	apiCmd := registry.BuildCommands(getServerURL)

	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Second, "How long to wait")
	apiCmd.AddCommand(waitCmd)

	rootCmd.AddCommand(apiCmd)
}
