package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/svcctx"
)

// ListVoicesResponse contains the voice identifiers in display order.
type ListVoicesResponse struct {
	Voices  []string `json:"voices"`
	Default string   `json:"default"`
}

// ListVoicesEndpoint handles GET /api/voices.
type ListVoicesEndpoint struct{}

func (e *ListVoicesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/voices", e.handler
}

func (e *ListVoicesEndpoint) RequiresSession() bool { return false }

func (e *ListVoicesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListVoicesResponse{
		Voices:  providers.Voices,
		Default: defaultVoice(r),
	})
}

// defaultVoice is the configured voice when valid, else the first voice.
func defaultVoice(r *http.Request) string {
	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil && providers.IsVoice(cfg.TTS.DefaultVoice) {
		return cfg.TTS.DefaultVoice
	}
	return providers.Voices[0]
}

func (e *ListVoicesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List TTS voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListVoicesResponse
			if err := client.Get(cmd.Context(), "/api/voices", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
