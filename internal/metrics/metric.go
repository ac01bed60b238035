// Package metrics records provider calls made on behalf of sessions and
// summarizes them for the status endpoint.
package metrics

import "time"

// Kind names the service a call went to.
type Kind string

const (
	KindOCR Kind = "ocr"
	KindTTS Kind = "tts"
)

// Metric is one provider call.
type Metric struct {
	Kind     Kind   `json:"kind"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// Units is pages for OCR and characters for TTS.
	Units int `json:"units"`

	ExecutionSeconds float64 `json:"execution_seconds"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
