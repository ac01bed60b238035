package ocr

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces out OCR calls so that at least Gap separates the completion
// of one call from the dispatch of the next. Only one call is in flight at a
// time. The gap is fixed; there is no backoff.
type Pacer struct {
	sem chan struct{}

	mu       sync.Mutex
	gap      time.Duration
	lastDone time.Time

	// Statistics
	totalCalls  int64
	totalWaited time.Duration

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// PacerStatus reports current pacer state.
type PacerStatus struct {
	Gap         time.Duration `json:"gap"`
	TotalCalls  int64         `json:"total_calls"`
	TotalWaited time.Duration `json:"total_waited"`
	LastDone    time.Time     `json:"last_done,omitempty"`
}

// NewPacer creates a pacer with the given minimum gap.
func NewPacer(gap time.Duration) *Pacer {
	if gap < 0 {
		gap = 0
	}
	return &Pacer{
		sem:   make(chan struct{}, 1),
		gap:   gap,
		now:   time.Now,
		after: time.After,
	}
}

// SetGap changes the gap for subsequent calls.
func (p *Pacer) SetGap(gap time.Duration) {
	if gap < 0 {
		gap = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gap = gap
}

// Acquire blocks until a call may be dispatched or ctx is cancelled.
// The returned release must be called when the call completes.
func (p *Pacer) Acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	var wait time.Duration
	if !p.lastDone.IsZero() {
		wait = p.lastDone.Add(p.gap).Sub(p.now())
	}
	p.mu.Unlock()

	if wait > 0 {
		// Wait outside lock
		select {
		case <-p.after(wait):
			p.mu.Lock()
			p.totalWaited += wait
			p.mu.Unlock()
		case <-ctx.Done():
			<-p.sem
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.lastDone = p.now()
			p.totalCalls++
			p.mu.Unlock()
			<-p.sem
		})
	}, nil
}

// Status returns current pacer status.
func (p *Pacer) Status() PacerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PacerStatus{
		Gap:         p.gap,
		TotalCalls:  p.totalCalls,
		TotalWaited: p.totalWaited,
		LastDone:    p.lastDone,
	}
}
