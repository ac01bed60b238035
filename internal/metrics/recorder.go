package metrics

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jackzampolin/readaloud/internal/providers"
)

// DefaultCapacity is how many recent calls a Recorder keeps.
const DefaultCapacity = 1000

// Recorder keeps the most recent provider calls in memory and running totals
// for every call since start. A nil *Recorder discards everything.
type Recorder struct {
	mu     sync.Mutex
	recent []Metric
	next   int
	full   bool
	totals map[key]*Summary
}

type key struct {
	kind     Kind
	provider string
}

// NewRecorder creates a recorder keeping up to capacity recent calls.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		recent: make([]Metric, capacity),
		totals: make(map[key]*Summary),
	}
}

// Record stores a single metric.
func (r *Recorder) Record(m Metric) {
	if r == nil {
		return
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.recent[r.next] = m
	r.next = (r.next + 1) % len(r.recent)
	if r.next == 0 {
		r.full = true
	}

	k := key{m.Kind, m.Provider}
	s, ok := r.totals[k]
	if !ok {
		s = &Summary{Kind: m.Kind, Provider: m.Provider}
		r.totals[k] = s
	}
	s.add(m)
}

// RecordOCRCall records an OCR call. result may be nil when err is set.
func (r *Recorder) RecordOCRCall(provider, model string, result *providers.OCRResult, elapsed time.Duration, err error) {
	m := Metric{Kind: KindOCR, Provider: provider, Model: model, ExecutionSeconds: elapsed.Seconds()}
	if result != nil {
		if result.Model != "" {
			m.Model = result.Model
		}
		m.Units = result.PagesProcessed
		if m.Units == 0 {
			m.Units = len(result.Pages)
		}
	}
	m.Success, m.ErrorType = err == nil, errorType(err)
	r.Record(m)
}

// RecordTTSCall records a speech call.
func (r *Recorder) RecordTTSCall(provider, model string, chars int, elapsed time.Duration, err error) {
	r.Record(Metric{
		Kind:             KindTTS,
		Provider:         provider,
		Model:            model,
		Units:            chars,
		ExecutionSeconds: elapsed.Seconds(),
		Success:          err == nil,
		ErrorType:        errorType(err),
	})
}

// Recent returns up to limit of the latest calls, newest first.
// A limit of zero or less returns everything retained.
func (r *Recorder) Recent(limit int) []Metric {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.recent)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Metric, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.recent)) % len(r.recent)
		out = append(out, r.recent[idx])
	}
	return out
}

// Summaries returns totals per kind and provider, sorted by kind then provider.
func (r *Recorder) Summaries() []Summary {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]Summary, 0, len(r.totals))
	for _, s := range r.totals {
		out = append(out, *s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

// Summary aggregates calls to one provider. Model is the most recent one seen.
type Summary struct {
	Kind     Kind   `json:"kind"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	Calls    int `json:"calls"`
	Failures int `json:"failures"`
	Units    int `json:"units"`

	TotalSeconds float64 `json:"total_seconds"`
	MaxSeconds   float64 `json:"max_seconds"`
}

// AvgSeconds is the mean execution time per call.
func (s Summary) AvgSeconds() float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalSeconds / float64(s.Calls)
}

func (s *Summary) add(m Metric) {
	if m.Model != "" {
		s.Model = m.Model
	}
	s.Calls++
	if !m.Success {
		s.Failures++
	}
	s.Units += m.Units
	s.TotalSeconds += m.ExecutionSeconds
	if m.ExecutionSeconds > s.MaxSeconds {
		s.MaxSeconds = m.ExecutionSeconds
	}
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if apiErr, ok := providers.IsAPIError(err); ok && apiErr.StatusCode != 0 {
		return "http_" + strconv.Itoa(apiErr.StatusCode)
	}
	return "error"
}
