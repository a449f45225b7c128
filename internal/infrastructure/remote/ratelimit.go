package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// WindowLimiter is a fixed-window request budget for a single remote
// system. The window resets when more than its duration has elapsed since
// the window start; within a window the counter never exceeds the limit.
// Purely in-process, not shared across instances.
type WindowLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewWindowLimiter creates a limiter allowing limit requests per window.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// NewWindowLimiterWithClock creates a limiter with an injected clock.
func NewWindowLimiterWithClock(limit int, window time.Duration, now func() time.Time) *WindowLimiter {
	return &WindowLimiter{
		limit:  limit,
		window: window,
		now:    now,
	}
}

// TryAcquire consumes one unit of the budget. It resets the window first
// if it has elapsed, then either increments and succeeds or fails with
// integration.ErrRateLimitExceeded leaving the counter unchanged.
func (l *WindowLimiter) TryAcquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) > l.window {
		l.count = 0
		l.windowStart = now
	}

	if l.count >= l.limit {
		return fmt.Errorf("%w: %d requests in the current window", integration.ErrRateLimitExceeded, l.count)
	}

	l.count++
	return nil
}

// Remaining returns how much budget is left in the current window.
func (l *WindowLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.windowStart) > l.window {
		return l.limit
	}
	return l.limit - l.count
}
