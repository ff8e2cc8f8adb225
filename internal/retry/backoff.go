package retry

import (
	"context"
	"math/rand"
	"time"
)

// Backoff doubles a delay from Min up to Max.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	cur time.Duration
}

func (b *Backoff) withDefaults() {
	if b.Min <= 0 {
		b.Min = 500 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
}

// Next returns the delay to wait before the next try and advances the
// schedule.
func (b *Backoff) Next() time.Duration {
	b.withDefaults()
	if b.cur <= 0 {
		b.cur = b.Min
		return b.cur
	}
	b.cur = NextDelay(b.cur, b.Max)
	return b.cur
}

// Reset restarts the schedule at Min.
func (b *Backoff) Reset() {
	b.cur = 0
}

func NextDelay(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// Jitter spreads d by roughly +/- 1/7th.
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	j := int64(d) / 7
	if j <= 0 {
		return d
	}
	return time.Duration(int64(d) + rand.Int63n(2*j+1) - j)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter
// case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
