package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/svcctx"
)

// SessionCookie names the browser session cookie.
const SessionCookie = "readaloud_session"

// CloseSessionEndpoint handles DELETE /api/session.
// It tears the caller's session down and removes its playback files.
type CloseSessionEndpoint struct{}

func (e *CloseSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/session", e.handler
}

func (e *CloseSessionEndpoint) RequiresSession() bool { return true }

func (e *CloseSessionEndpoint) Group() string { return "session" }

func (e *CloseSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "sessions not initialized")
		return
	}
	if err := sessions.Close(sess.ID); err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("session close failed", "session", sess.ID, "error", err)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.Header().Del(api.SessionHeader)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "session closed"})
}

func (e *CloseSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the CLI session and delete its temporary files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/session"); err != nil {
				return err
			}
			if err := api.ForgetSession(); err != nil {
				return err
			}
			return api.Output(MessageResponse{Message: "session closed"})
		},
	}
}
