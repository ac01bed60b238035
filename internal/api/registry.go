package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// groupShort describes the command groups.
var groupShort = map[string]string{
	"ocr":     "Extract text from PDFs and images",
	"audio":   "Convert text to speech",
	"session": "Manage the CLI session",
}

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// sessionMiddleware wraps handlers that work on the caller's session.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, sessionMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresSession() {
			handler = sessionMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// Grouped endpoints nest under their group's subcommand.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running readaloud server via HTTP.

These commands require a running server (readaloud serve).
Use --server to specify a custom server URL. The CLI keeps one server
session between invocations so OCR results stay available to later
audio commands.

Examples:
  readaloud api health
  readaloud api ocr process --url https://example.com/doc.pdf
  readaloud api ocr list
  readaloud api audio generate --source ocr --index 0 --voice nova`,
	}

	groups := make(map[string]*cobra.Command)
	for _, ep := range r.endpoints {
		cmd := ep.Command(getServerURL)
		if cmd == nil {
			continue
		}
		g, ok := ep.(Grouped)
		if !ok || g.Group() == "" {
			apiCmd.AddCommand(cmd)
			continue
		}
		parent, exists := groups[g.Group()]
		if !exists {
			parent = &cobra.Command{Use: g.Group(), Short: groupShort[g.Group()]}
			groups[g.Group()] = parent
			apiCmd.AddCommand(parent)
		}
		parent.AddCommand(cmd)
	}

	return apiCmd
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
