package retry

import (
	"context"
	"testing"
	"time"
)

func TestNextDelay_CapsAtMax(t *testing.T) {
	if got := NextDelay(2*time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("got=%s want=%s", got, 3*time.Second)
	}
	if got := NextDelay(250*time.Millisecond, 3*time.Second); got != 500*time.Millisecond {
		t.Fatalf("got=%s want=%s", got, 500*time.Millisecond)
	}
}

func TestBackoff_Schedule(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("step %d: got=%s want=%s", i, got, w)
		}
	}
	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Fatalf("after reset: got=%s want=%s", got, time.Second)
	}
}

func TestJitter_Bounds(t *testing.T) {
	d := 7 * time.Second
	for i := 0; i < 100; i++ {
		got := Jitter(d)
		if got < 6*time.Second || got > 8*time.Second {
			t.Fatalf("jitter out of range: %s", got)
		}
	}
}

func TestSleep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); err == nil {
		t.Fatalf("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep did not honour cancellation")
	}
}
