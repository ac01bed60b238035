package ocr

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/readaloud/internal/ingest"
	"github.com/jackzampolin/readaloud/internal/metrics"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/session"
)

func urlSources(t *testing.T, media ingest.MediaKind, urls ...string) []ingest.Source {
	t.Helper()
	sources, err := ingest.ResolveURLs(media, urls)
	if err != nil {
		t.Fatalf("ResolveURLs() error = %v", err)
	}
	return sources
}

func TestJoinPages(t *testing.T) {
	tests := []struct {
		name  string
		pages []providers.OCRPage
		want  string
	}{
		{"no pages", nil, NoResultText},
		{"single blank page", []providers.OCRPage{{Markdown: ""}}, NoResultText},
		{"all whitespace", []providers.OCRPage{{Markdown: "  "}, {Markdown: "\n\t"}}, NoResultText},
		{"one page", []providers.OCRPage{{Markdown: "# Title"}}, "# Title"},
		{"two pages", []providers.OCRPage{{Markdown: "a"}, {Markdown: "b"}}, "a\n\nb"},
		{"keeps blank pages between text", []providers.OCRPage{{Markdown: "a"}, {Markdown: ""}, {Markdown: "c"}}, "a\n\n\n\nc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinPages(tt.pages); got != tt.want {
				t.Errorf("JoinPages() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunner_ProcessTwoURLs(t *testing.T) {
	mock := providers.NewMockOCRProvider()
	mock.PagesFor = map[string][]providers.OCRPage{
		"https://example.com/one.pdf": {{Markdown: "page one"}, {Markdown: "page two"}},
		"https://example.com/two.pdf": {{Markdown: "other"}},
	}
	store := session.NewOCRStore()

	r := NewRunner(nil, nil)
	summary := r.Process(context.Background(), mock, store,
		urlSources(t, ingest.MediaPDF, "https://example.com/one.pdf", "https://example.com/two.pdf"))

	if summary.Processed != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	entries := store.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "page one\n\npage two" || entries[1].Text != "other" {
		t.Errorf("texts = %q, %q", entries[0].Text, entries[1].Text)
	}
	if entries[0].PreviewRef != "https://example.com/one.pdf" || entries[1].PreviewRef != "https://example.com/two.pdf" {
		t.Errorf("preview refs = %q, %q", entries[0].PreviewRef, entries[1].PreviewRef)
	}
	for i, e := range entries {
		if e.RawBytes != nil {
			t.Errorf("entry %d should have no raw bytes", i)
		}
	}

	calls := mock.Calls()
	if len(calls) != 2 || calls[0].Type != providers.DocumentTypeDocumentURL || calls[1].URL != "https://example.com/two.pdf" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestRunner_FailuresAreRecovered(t *testing.T) {
	mock := providers.NewMockOCRProvider()
	mock.FailFor = map[string]error{
		"https://x/bad.png": &providers.APIError{StatusCode: 401, Body: "Unauthorized"},
	}
	mock.PagesFor = map[string][]providers.OCRPage{"https://x/empty.png": {}}
	store := session.NewOCRStore()

	r := NewRunner(nil, nil)
	summary := r.Process(context.Background(), mock, store,
		urlSources(t, ingest.MediaImage, "https://x/a.png", "https://x/bad.png", "https://x/empty.png"))

	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	entries := store.List()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Text != "mock OCR text" {
		t.Errorf("entry 0 = %q", entries[0].Text)
	}
	if entries[1].Text != "Error extracting result: API Error: 401, Unauthorized" {
		t.Errorf("entry 1 = %q", entries[1].Text)
	}
	if !entries[1].Failed {
		t.Error("entry 1 should be marked failed")
	}
	if entries[2].Text != NoResultText {
		t.Errorf("entry 2 = %q", entries[2].Text)
	}
}

func TestRunner_ClearsPreviousBatch(t *testing.T) {
	mock := providers.NewMockOCRProvider()
	store := session.NewOCRStore()
	store.Append(session.OCREntry{Text: "stale"})
	store.Append(session.OCREntry{Text: "stale"})

	r := NewRunner(nil, nil)
	r.Process(context.Background(), mock, store, urlSources(t, ingest.MediaImage, "https://x/new.png"))

	entries := store.List()
	if len(entries) != 1 || entries[0].Index != 0 || entries[0].Text == "stale" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRunner_UploadKeepsRawBytes(t *testing.T) {
	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	src, err := ingest.ResolveUpload(ingest.MediaImage, ingest.Upload{Name: "a.jpg", MimeType: "image/jpeg", Data: data}, nil)
	if err != nil {
		t.Fatalf("ResolveUpload() error = %v", err)
	}

	mock := providers.NewMockOCRProvider()
	store := session.NewOCRStore()
	NewRunner(nil, nil).Process(context.Background(), mock, store, []ingest.Source{src})

	e, ok := store.Get(0)
	if !ok {
		t.Fatal("missing entry")
	}
	if !strings.HasPrefix(e.PreviewRef, "data:image/jpeg;base64,") {
		t.Errorf("PreviewRef = %.40q", e.PreviewRef)
	}
	if string(e.RawBytes) != string(data) {
		t.Error("RawBytes should equal upload bytes")
	}
	if mock.Calls()[0].URL != e.PreviewRef {
		t.Error("request and preview must describe the same document")
	}
}

func TestRunner_CancelledContextStillRecordsEveryEntry(t *testing.T) {
	mock := providers.NewMockOCRProvider()
	store := session.NewOCRStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := NewRunner(NewPacer(time.Hour), nil).Process(ctx, mock, store,
		urlSources(t, ingest.MediaImage, "https://x/1.png", "https://x/2.png"))

	if store.Len() != 2 || summary.Failed != 2 {
		t.Fatalf("Len = %d, Failed = %d", store.Len(), summary.Failed)
	}
	for _, e := range store.List() {
		if !strings.HasPrefix(e.Text, ErrorTextPrefix) || !strings.Contains(e.Text, context.Canceled.Error()) {
			t.Errorf("entry text = %q", e.Text)
		}
	}
	if mock.RequestCount() != 0 {
		t.Errorf("expected no provider calls, got %d", mock.RequestCount())
	}
}

func TestRunner_PacesBetweenCalls(t *testing.T) {
	pacer, ft := newFakePacer(time.Second)
	mock := providers.NewMockOCRProvider()
	store := session.NewOCRStore()

	NewRunner(pacer, nil).Process(context.Background(), mock, store,
		urlSources(t, ingest.MediaImage, "https://x/1.png", "https://x/2.png", "https://x/3.png"))

	waits := ft.Waits()
	if len(waits) != 2 {
		t.Fatalf("expected 2 waits for 3 calls, got %v", waits)
	}
	for _, w := range waits {
		if w != time.Second {
			t.Errorf("wait = %v, want 1s", w)
		}
	}
	if store.Len() != 3 {
		t.Errorf("Len = %d", store.Len())
	}
}

func TestRunner_NilResult(t *testing.T) {
	store := session.NewOCRStore()
	NewRunner(nil, nil).Process(context.Background(), nilProvider{}, store,
		urlSources(t, ingest.MediaImage, "https://x/1.png"))

	e, _ := store.Get(0)
	if !strings.HasPrefix(e.Text, ErrorTextPrefix) {
		t.Errorf("Text = %q", e.Text)
	}
}

type nilProvider struct{}

func (nilProvider) Name() string { return "nil" }
func (nilProvider) Process(context.Context, providers.Document) (*providers.OCRResult, error) {
	return nil, nil
}

func TestRunner_RecordsUsage(t *testing.T) {
	mock := providers.NewMockOCRProvider()
	mock.PagesFor = map[string][]providers.OCRPage{
		"https://example.com/two.pdf": {{Markdown: "a"}, {Markdown: "b"}},
	}
	mock.FailFor = map[string]error{"https://example.com/bad.pdf": context.DeadlineExceeded}
	rec := metrics.NewRecorder(10)

	r := NewRunner(nil, nil)
	r.SetRecorder(rec)
	r.Process(context.Background(), mock, session.NewOCRStore(),
		urlSources(t, ingest.MediaPDF, "https://example.com/one.pdf", "https://example.com/two.pdf", "https://example.com/bad.pdf"))

	calls := rec.Recent(0)
	if len(calls) != 3 {
		t.Fatalf("recorded %d calls, want 3", len(calls))
	}
	if calls[0].Success || calls[0].ErrorType != "timeout" {
		t.Errorf("newest call = %+v", calls[0])
	}
	if calls[1].Units != 2 || calls[2].Units != 1 || calls[1].Model != "mock" {
		t.Errorf("calls = %+v", calls)
	}
}
