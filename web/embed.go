// Package web provides the embedded page template and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var content embed.FS

// Templates returns the page templates, rooted at the templates directory.
func Templates() (fs.FS, error) {
	return fs.Sub(content, "templates")
}

// StaticFS returns the static assets. Files are accessed directly
// (e.g., "style.css" not "static/style.css").
func StaticFS() (fs.FS, error) {
	return fs.Sub(content, "static")
}
