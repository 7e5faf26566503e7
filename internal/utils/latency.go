package utils

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// reportEvery is how many samples pass between p95 log lines.
const reportEvery = 20

// LatencyTracker keeps a bounded ring of recent durations for one operation
// and computes percentiles over it.
type LatencyTracker struct {
	mu      sync.Mutex
	name    string
	samples []time.Duration
	next    int
	total   int
	maxSize int
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(name string, maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{name: name, maxSize: maxSize, samples: make([]time.Duration, 0, maxSize)}
}

// Observe records a new duration, overwriting the oldest once full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observe(d)
}

// ObserveAndReport records d and logs the p95 every reportEvery samples.
func (l *LatencyTracker) ObserveAndReport(d time.Duration, logger *slog.Logger) {
	l.mu.Lock()
	l.observe(d)
	total := l.total
	var p95 time.Duration
	if total%reportEvery == 0 {
		p95 = l.percentile(95)
	}
	samples := len(l.samples)
	l.mu.Unlock()

	if total%reportEvery == 0 && logger != nil {
		logger.Info(l.name+" latency", slog.Duration("p95", p95), slog.Int("samples", samples))
	}
}

// Percentile returns the percentile (0-100) duration. Returns zero if no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.percentile(p)
}

// Count returns number of samples currently retained.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

func (l *LatencyTracker) observe(d time.Duration) {
	if len(l.samples) < l.maxSize {
		l.samples = append(l.samples, d)
	} else {
		l.samples[l.next] = d
	}
	l.next = (l.next + 1) % l.maxSize
	l.total++
}

func (l *LatencyTracker) percentile(p float64) time.Duration {
	if len(l.samples) == 0 {
		return 0
	}
	sorted := slices.Clone(l.samples)
	slices.Sort(sorted)

	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	idx := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[idx]
}
