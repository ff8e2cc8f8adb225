package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"flasharb/internal/observe"
	"flasharb/internal/stats"
)

type PollOptions struct {
	Interval time.Duration
	// IncludeOverall adds a getOverallStats read to every tick.
	IncludeOverall bool
	// OnError receives failed reads. Defaults to a [warn] log line.
	OnError func(error)
}

// Poller re-reads aggregate stats on a fixed interval as a cross-check
// against the event stream.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartPolling ticks once immediately and then every Interval until ctx is
// cancelled or Stop is called. A failed read never stops the ticker.
func StartPolling(ctx context.Context, rec *stats.Reconciler, sink observe.Sink, opts PollOptions) (*Poller, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", opts.Interval)
	}
	if sink == nil {
		sink = observe.Nop{}
	}
	onErr := opts.OnError
	if onErr == nil {
		onErr = func(err error) { log.Printf("[warn] stats poll failed: %v", err) }
	}

	runCtx, cancel := context.WithCancel(ctx)
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	tick := func() {
		agg, err := rec.Aggregate(runCtx)
		if err != nil {
			if runCtx.Err() == nil {
				onErr(err)
			}
		} else {
			sink.OnStats(agg)
		}
		if !opts.IncludeOverall {
			return
		}
		overall, err := rec.Overall(runCtx)
		if err != nil {
			if runCtx.Err() == nil {
				onErr(err)
			}
			return
		}
		sink.OnOverall(overall)
	}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		tick()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if runCtx.Err() != nil {
					return
				}
				tick()
			}
		}
	}()
	return p, nil
}

// Stop cancels the timer and waits for an in-flight tick to finish. Safe to
// call more than once.
func (p *Poller) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed once the poller has stopped.
func (p *Poller) Done() <-chan struct{} { return p.done }
