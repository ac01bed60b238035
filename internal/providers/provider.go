package providers

import (
	"context"
	"time"
)

// Document types understood by the OCR provider.
const (
	DocumentTypeDocumentURL = "document_url"
	DocumentTypeImageURL    = "image_url"
)

// OCRProvider extracts text from a document or image.
// Separate from TTS because it has different pacing and result handling
// (a page collection of markdown vs raw audio bytes).
type OCRProvider interface {
	// Name returns the provider identifier (e.g., "mistral-ocr").
	Name() string

	// Process runs OCR over the referenced document.
	Process(ctx context.Context, doc Document) (*OCRResult, error)
}

// TTSProvider converts text to audio.
type TTSProvider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Generate synthesizes audio for the request text.
	Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error)
}

// Document describes a source for the OCR provider.
// URL is either a remote URL or a base64 data URI.
type Document struct {
	Type string `json:"type"` // "document_url" or "image_url"
	URL  string `json:"url"`
}

// OCRPage is one page of an OCR response.
type OCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// OCRResult is the response from an OCR provider.
type OCRResult struct {
	// Pages in document order
	Pages []OCRPage `json:"pages"`

	// Metadata from provider (model, usage, etc.)
	Model          string `json:"model,omitempty"`
	PagesProcessed int    `json:"pages_processed,omitempty"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`
}

// TTSRequest is a request to a TTS provider.
type TTSRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format,omitempty"` // "mp3" (default)
}

// TTSResult is the response from a TTS provider.
type TTSResult struct {
	Audio         []byte        `json:"-"`
	Format        string        `json:"format"`
	CharCount     int           `json:"char_count"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// ModelOf returns the model a provider client targets, or "" when the client
// does not say.
func ModelOf(p any) string {
	if m, ok := p.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}
