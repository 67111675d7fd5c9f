package orchestrator

import (
	"sort"
	"sync"
	"time"

	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

const latencySampleSize = 32

// Limiter caps the number of turns generating at once. A local model serves
// one request well and a few tolerably; beyond the cap new turns are rejected
// immediately rather than queued, so the client can tell the user to retry.
type Limiter struct {
	mu      sync.Mutex
	active  int
	max     int
	samples [latencySampleSize]time.Duration
	idx     int
	count   int
}

func NewLimiter(max int) *Limiter {
	if max <= 0 {
		max = 8
	}
	return &Limiter{max: max}
}

func (l *Limiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active >= l.max {
		return appErr.ErrTooMany
	}
	l.active++
	return nil
}

// Release returns a slot and records how long the turn took.
func (l *Limiter) Release(elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active > 0 {
		l.active--
	}
	l.samples[l.idx] = elapsed
	l.idx = (l.idx + 1) % latencySampleSize
	if l.count < latencySampleSize {
		l.count++
	}
}

// Stats reports the current load and the mean latency over recent turns.
func (l *Limiter) Stats() (active int, avgLatency time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count > 0 {
		var sum time.Duration
		for i := 0; i < l.count; i++ {
			sum += l.samples[i]
		}
		avgLatency = sum / time.Duration(l.count)
	}
	return l.active, avgLatency
}

// Percentiles reports p50/p90/p99 over the recent latency samples. All zero
// until the first turn completes.
func (l *Limiter) Percentiles() (p50, p90, p99 time.Duration) {
	l.mu.Lock()
	sorted := make([]time.Duration, l.count)
	copy(sorted, l.samples[:l.count])
	l.mu.Unlock()
	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	pick := func(p float64) time.Duration {
		idx := int(p * float64(len(sorted)-1))
		return sorted[idx]
	}
	return pick(0.50), pick(0.90), pick(0.99)
}
