package fallback

import (
	"context"
	"testing"
	"time"
)

func TestWindowLimiter_AllowsUpToLimit(t *testing.T) {
	l := newWindowLimiter(3, time.Minute)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("requests under the limit should not block, took %s", elapsed)
	}
}

func TestWindowLimiter_DelaysOverLimit(t *testing.T) {
	window := 200 * time.Millisecond
	l := newWindowLimiter(2, window)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)
	if elapsed < window/2 {
		t.Fatalf("the call beyond the limit must block measurably, only waited %s", elapsed)
	}
}

func TestWindowLimiter_RespectsContext(t *testing.T) {
	l := newWindowLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("blocked acquire must fail when the context expires")
	}
}
