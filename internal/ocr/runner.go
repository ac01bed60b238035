// Package ocr runs batches of resolved sources through the OCR provider and
// records one result per source in the session's OCR store.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/readaloud/internal/ingest"
	"github.com/jackzampolin/readaloud/internal/metrics"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/session"
)

// NoResultText is stored when the provider returns no text at all.
const NoResultText = "No result found."

// ErrorTextPrefix starts the text stored for a failed source.
const ErrorTextPrefix = "Error extracting result: "

// Runner processes sources one at a time, paced by a shared Pacer.
type Runner struct {
	pacer    *Pacer
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// NewRunner creates a runner. A nil pacer means no gap between calls.
func NewRunner(pacer *Pacer, logger *slog.Logger) *Runner {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{pacer: pacer, logger: logger}
}

// SetRecorder makes the runner record every provider call.
func (r *Runner) SetRecorder(rec *metrics.Recorder) {
	r.recorder = rec
}

// Pacer returns the runner's pacer.
func (r *Runner) Pacer() *Pacer {
	return r.pacer
}

// Summary describes a finished batch.
type Summary struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Process clears the store, then OCRs each source in order and appends one
// entry per source. A failing source gets an error text and the batch
// continues, so the store always ends with len(sources) entries.
func (r *Runner) Process(ctx context.Context, provider providers.OCRProvider, store *session.OCRStore, sources []ingest.Source) Summary {
	start := time.Now()
	store.Clear()

	var failed int
	for i, src := range sources {
		text, err := r.processOne(ctx, provider, src)
		if err != nil {
			failed++
			text = ErrorTextPrefix + err.Error()
			r.logger.Warn("OCR failed", "index", i, "source", displayName(src), "error", err)
		} else {
			r.logger.Debug("OCR complete", "index", i, "source", displayName(src), "chars", len(text))
		}

		store.Append(session.OCREntry{
			Text:       text,
			PreviewRef: src.PreviewRef,
			RawBytes:   src.RawBytes,
			Name:       src.Name,
			MimeType:   src.MimeType,
			Media:      string(src.Media),
			PageCount:  src.PageCount,
			Width:      src.Width,
			Height:     src.Height,
			Failed:     err != nil,
		})
	}

	summary := Summary{Processed: len(sources), Failed: failed, Duration: time.Since(start)}
	r.logger.Info("OCR batch finished", "sources", summary.Processed, "failed", summary.Failed, "duration", summary.Duration)
	return summary
}

func (r *Runner) processOne(ctx context.Context, provider providers.OCRProvider, src ingest.Source) (string, error) {
	release, err := r.pacer.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	start := time.Now()
	result, err := provider.Process(ctx, src.Descriptor.Document())
	r.recorder.RecordOCRCall(provider.Name(), providers.ModelOf(provider), result, time.Since(start), err)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", fmt.Errorf("provider returned no result")
	}
	return JoinPages(result.Pages), nil
}

// JoinPages joins page markdown with a blank line. When there are no pages or
// every page is blank the result is NoResultText.
func JoinPages(pages []providers.OCRPage) string {
	blank := true
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Markdown) != "" {
			blank = false
		}
		parts = append(parts, p.Markdown)
	}
	if blank {
		return NoResultText
	}
	return strings.Join(parts, "\n\n")
}

func displayName(src ingest.Source) string {
	if src.Name != "" {
		return src.Name
	}
	return "upload"
}
