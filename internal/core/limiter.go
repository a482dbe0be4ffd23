package core

// limiter.go bounds how many comparison runs execute at once.
//
// A run holds its slot from before either input is parsed until the output
// has been stored, so the limit caps how many pairs of tables are in memory
// together. Callers that cannot get a slot within maxWait fail with
// ErrTooManyRuns. WaitForDrain lets shutdown wait for running comparisons.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyRuns is returned when every run slot stays busy for the whole
// wait period.
var ErrTooManyRuns = errors.New("too many concurrent comparisons, please try again later")

const (
	// DefaultMaxConcurrentRuns is used when no positive limit is given.
	DefaultMaxConcurrentRuns = 4

	// DefaultMaxWait is used when no positive wait is given.
	DefaultMaxWait = 30 * time.Second
)

// RunLimiter is a counting semaphore for comparison runs.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	active  atomic.Int64
	waiting atomic.Int64
	total   atomic.Int64
}

// NewRunLimiter allows maxConcurrent runs, each caller waiting at most
// maxWait for a slot.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot and returns the function that gives it back. The
// release function is safe to call more than once.
func (l *RunLimiter) Acquire(ctx context.Context) (release func(), err error) {
	l.waiting.Add(1)
	defer l.waiting.Add(-1)

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return l.hold(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooManyRuns
	}
}

func (l *RunLimiter) hold() func() {
	l.active.Add(1)
	l.total.Add(1)
	var done atomic.Bool
	return func() {
		if done.Swap(true) {
			return
		}
		l.active.Add(-1)
		<-l.slots
	}
}

// Active is the number of runs holding a slot.
func (l *RunLimiter) Active() int { return int(l.active.Load()) }

// MaxConcurrent is the slot count.
func (l *RunLimiter) MaxConcurrent() int { return cap(l.slots) }

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	if l.Active() == 0 {
		return nil
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.Active() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a point-in-time view of a RunLimiter.
type LimiterStatus struct {
	Active        int   `json:"active"`
	Waiting       int   `json:"waiting"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	TotalRuns     int64 `json:"total_runs"`
}

// Status reports the limiter's current state.
func (l *RunLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.Active(),
		Waiting:       int(l.waiting.Load()),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
		TotalRuns:     l.total.Load(),
	}
}
