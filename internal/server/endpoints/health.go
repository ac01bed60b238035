package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/metrics"
	"github.com/jackzampolin/readaloud/internal/ocr"
	"github.com/jackzampolin/readaloud/internal/svcctx"
	"github.com/jackzampolin/readaloud/version"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresSession() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server     string            `json:"server"`
	Version    string            `json:"version"`
	ConfigFile string            `json:"config_file,omitempty"`
	Sessions   int               `json:"sessions"`
	OCR        ProviderStatus    `json:"ocr"`
	TTS        ProviderStatus    `json:"tts"`
	Pacer      *PacerStatus      `json:"pacer,omitempty"`
	Usage      []metrics.Summary `json:"usage"`
}

// ProviderStatus summarizes one configured provider.
type ProviderStatus struct {
	Type       string   `json:"type"`
	Model      string   `json:"model,omitempty"`
	Registered []string `json:"registered"`
	ConfigKey  bool     `json:"config_key"` // a fallback key is configured
}

// PacerStatus reports OCR request pacing.
type PacerStatus struct {
	GapSeconds    float64 `json:"gap_seconds"`
	TotalCalls    int64   `json:"total_calls"`
	WaitedSeconds float64 `json:"waited_seconds"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresSession() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server:  "running",
		Version: version.GitRelease,
	}

	if sessions := svcctx.SessionsFrom(ctx); sessions != nil {
		resp.Sessions = sessions.Len()
	}
	if s := svcctx.ServicesFrom(ctx); s != nil && s.ConfigMgr != nil {
		resp.ConfigFile = s.ConfigMgr.ConfigFile()
	}

	if factory := svcctx.FactoryFrom(ctx); factory != nil {
		cfg := factory.Config()
		resp.OCR = ProviderStatus{
			Type:       cfg.OCR.Type,
			Model:      cfg.OCR.Model,
			Registered: factory.ListOCR(),
			ConfigKey:  factory.HasOCRKey(),
		}
		resp.TTS = ProviderStatus{
			Type:       cfg.TTS.Type,
			Model:      cfg.TTS.Model,
			Registered: factory.ListTTS(),
			ConfigKey:  factory.HasTTSKey(),
		}
	}

	if runner := svcctx.OCRRunnerFrom(ctx); runner != nil {
		resp.Pacer = pacerStatus(runner.Pacer())
	}

	resp.Usage = svcctx.MetricsFrom(ctx).Summaries()
	if resp.Usage == nil {
		resp.Usage = []metrics.Summary{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func pacerStatus(p *ocr.Pacer) *PacerStatus {
	if p == nil {
		return nil
	}
	st := p.Status()
	return &PacerStatus{
		GapSeconds:    st.Gap.Seconds(),
		TotalCalls:    st.TotalCalls,
		WaitedSeconds: st.TotalWaited.Seconds(),
	}
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UsageResponse lists recent provider calls, newest first.
type UsageResponse struct {
	Calls []metrics.Metric `json:"calls"`
}

// UsageEndpoint handles GET /api/usage.
type UsageEndpoint struct{}

func (e *UsageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/usage", e.handler
}

func (e *UsageEndpoint) RequiresSession() bool { return false }

func (e *UsageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	calls := svcctx.MetricsFrom(r.Context()).Recent(limit)
	if calls == nil {
		calls = []metrics.Metric{}
	}
	writeJSON(w, http.StatusOK, UsageResponse{Calls: calls})
}

func (e *UsageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "List recent OCR and speech calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp UsageResponse
			if err := client.Get(cmd.Context(), fmt.Sprintf("/api/usage?limit=%d", limit), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Number of calls to show (0 for all retained)")
	return cmd
}
