package fallback

import (
	"context"
	"sync"
	"time"
)

// windowLimiter enforces a requests-per-window ceiling with a sliding
// window of request timestamps. Once the ceiling is hit, Acquire blocks
// until the oldest timestamp leaves the window. Shared across all scans
// using the same client, so access is serialized.
type windowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire blocks until a request slot is available or ctx is done.
func (l *windowLimiter) Acquire(ctx context.Context) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.limit {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *windowLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(l.stamps); i++ {
		if l.stamps[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
