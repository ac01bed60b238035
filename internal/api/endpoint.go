package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines both an HTTP route and its corresponding CLI command.
// This provides a single source of truth for API operations.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresSession returns true if the handler works on the caller's
	// session (OCR results, audio clips, notices).
	RequiresSession() bool

	// Command returns a Cobra command that calls this endpoint via HTTP,
	// or nil for routes with no CLI counterpart.
	// getServerURL is called at runtime to get the server URL (deferred evaluation).
	Command(getServerURL func() string) *cobra.Command
}

// Grouped is implemented by endpoints whose command nests under a subcommand,
// e.g. "ocr" for `readaloud api ocr list`.
type Grouped interface {
	Group() string
}
