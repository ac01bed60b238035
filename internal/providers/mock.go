package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MockOCRName = "mock-ocr"
	MockTTSName = "mock-tts"
)

// MockOCRProvider is an OCRProvider for testing.
type MockOCRProvider struct {
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)

	// Pages returned for every document unless PagesFor has an entry for its URL.
	Pages    []OCRPage
	PagesFor map[string][]OCRPage
	// FailFor makes documents with these URLs fail with the given error.
	FailFor map[string]error

	requestCount atomic.Int64
	mu           sync.Mutex
	calls        []Document
	callTimes    []time.Time
}

// NewMockOCRProvider creates a new mock OCR provider.
func NewMockOCRProvider() *MockOCRProvider {
	return &MockOCRProvider{
		Pages: []OCRPage{{Index: 0, Markdown: "mock OCR text"}},
	}
}

// Name returns the provider identifier.
func (p *MockOCRProvider) Name() string {
	return MockOCRName
}

// Process records the document and returns the configured pages.
func (p *MockOCRProvider) Process(ctx context.Context, doc Document) (*OCRResult, error) {
	start := time.Now()
	count := p.requestCount.Add(1)

	p.mu.Lock()
	p.calls = append(p.calls, doc)
	p.callTimes = append(p.callTimes, start)
	p.mu.Unlock()

	if p.ShouldFail {
		return nil, fmt.Errorf("mock OCR provider configured to fail")
	}
	if p.FailAfter > 0 && int(count) > p.FailAfter {
		return nil, fmt.Errorf("mock OCR provider failed after %d requests", p.FailAfter)
	}
	if err, ok := p.FailFor[doc.URL]; ok {
		return nil, err
	}

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	pages := p.Pages
	if custom, ok := p.PagesFor[doc.URL]; ok {
		pages = custom
	}

	return &OCRResult{
		Pages:          append([]OCRPage(nil), pages...),
		Model:          "mock",
		PagesProcessed: len(pages),
		ExecutionTime:  time.Since(start),
	}, nil
}

// Calls returns the documents seen so far, in order.
func (p *MockOCRProvider) Calls() []Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Document(nil), p.calls...)
}

// CallTimes returns the dispatch time of each call.
func (p *MockOCRProvider) CallTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.callTimes...)
}

// RequestCount returns the number of requests made.
func (p *MockOCRProvider) RequestCount() int64 {
	return p.requestCount.Load()
}

// MockTTSProvider is a TTSProvider for testing.
type MockTTSProvider struct {
	Audio []byte
	Err   error

	mu       sync.Mutex
	requests []TTSRequest
}

// NewMockTTSProvider creates a mock returning a short fixed payload.
func NewMockTTSProvider() *MockTTSProvider {
	return &MockTTSProvider{Audio: []byte("mock-mp3")}
}

// Name returns the provider identifier.
func (p *MockTTSProvider) Name() string {
	return MockTTSName
}

// Generate records the request and returns the configured audio or error.
func (p *MockTTSProvider) Generate(_ context.Context, req *TTSRequest) (*TTSResult, error) {
	p.mu.Lock()
	p.requests = append(p.requests, *req)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	return &TTSResult{
		Audio:     append([]byte(nil), p.Audio...),
		Format:    "mp3",
		CharCount: len([]rune(req.Text)),
	}, nil
}

// Requests returns the requests seen so far.
func (p *MockTTSProvider) Requests() []TTSRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TTSRequest(nil), p.requests...)
}

// Verify interfaces
var (
	_ OCRProvider = (*MockOCRProvider)(nil)
	_ TTSProvider = (*MockTTSProvider)(nil)
)
