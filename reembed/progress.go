package reembed

import (
	"fmt"
	"sync"
	"time"
)

// Progress is one snapshot of a job phase.
type Progress struct {
	Current   int
	Total     int
	Phase     string
	Message   string
	ElapsedMs int64
}

// ProgressTracker accumulates progress for one phase of an embedding job.
// Elapsed time is measured from the job start so every phase reports on
// the same clock.
type ProgressTracker struct {
	phase     string
	noun      string
	total     int
	current   int
	startTime time.Time
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker for phase with total items.
// noun names the items in messages, e.g. "chunks".
func NewProgressTracker(phase, noun string, total int, startTime time.Time) *ProgressTracker {
	return &ProgressTracker{
		phase:     phase,
		noun:      noun,
		total:     total,
		startTime: startTime,
	}
}

// Start returns the opening snapshot of the phase.
func (p *ProgressTracker) Start(message string) Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(message)
}

// Update sets the current progress to the specified value, capped at total.
func (p *ProgressTracker) Update(current int) Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = min(current, p.total)
	return p.snapshot(fmt.Sprintf("Embedded %d/%d %s", p.current, p.total, p.noun))
}

// Increment increases the current progress by the specified amount.
func (p *ProgressTracker) Increment(delta int) Progress {
	p.mu.Lock()
	current := p.current + delta
	p.mu.Unlock()
	return p.Update(current)
}

// Elapsed returns the time elapsed since the job started.
func (p *ProgressTracker) Elapsed() time.Duration {
	return time.Since(p.startTime)
}

// Rate returns processed items per second.
func (p *ProgressTracker) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	secs := time.Since(p.startTime).Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(p.current) / secs
}

// snapshot must be called with lock held.
func (p *ProgressTracker) snapshot(message string) Progress {
	return Progress{
		Current:   p.current,
		Total:     p.total,
		Phase:     p.phase,
		Message:   message,
		ElapsedMs: time.Since(p.startTime).Milliseconds(),
	}
}
