package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum"

	"flasharb/internal/ledger"
	"flasharb/internal/observe"
	"flasharb/internal/retry"
	"flasharb/internal/stats"
	"flasharb/internal/tokens"
)

type Options struct {
	Registry *tokens.Registry
	Sink     observe.Sink
	// Resubscribe paces re-subscription after a subscription fails. The zero
	// value backs off from 500ms to 30s.
	Resubscribe retry.Backoff
}

// Monitor streams contract events to a sink. It keeps no counters: the only
// read it makes is the start-up self-test.
type Monitor struct {
	client ledger.Client
	rec    *stats.Reconciler
	opts   Options
}

func New(client ledger.Client, rec *stats.Reconciler, opts Options) *Monitor {
	if opts.Sink == nil {
		opts.Sink = observe.Nop{}
	}
	if opts.Registry == nil {
		opts.Registry = tokens.DefaultRegistry()
	}
	return &Monitor{client: client, rec: rec, opts: opts}
}

// Subscription is the running monitor. It ends when Close is called or the
// context passed to Start is cancelled.
type Subscription struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error
	once   sync.Once
}

// Err reports subscription failures. Failed kinds are re-subscribed, so an
// error here is informational. Undrained errors are dropped.
func (s *Subscription) Err() <-chan error { return s.errs }

// Close tears everything down and returns once no further sink callbacks can
// happen.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

// Start runs the connectivity self-test and then subscribes once per kind.
// If the self-test fails the error wraps ledger.ErrConnectivity and Subscribe
// is never called.
func (m *Monitor) Start(ctx context.Context, kinds []ledger.EventKind) (*Subscription, error) {
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no event kinds to monitor")
	}

	initial, err := m.rec.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: self-test: %w", ledger.ErrConnectivity, err)
	}
	m.opts.Sink.OnStats(initial)

	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{cancel: cancel, errs: make(chan error, len(kinds))}
	events := make(chan ledger.Event, 256)

	subs := make([]ethereum.Subscription, 0, len(kinds))
	for _, kind := range kinds {
		sub, err := m.client.Subscribe(runCtx, kind, events)
		if err != nil {
			for _, open := range subs {
				open.Unsubscribe()
			}
			cancel()
			return nil, fmt.Errorf("subscribe %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}
	log.Printf("[info] monitoring %d event kinds", len(kinds))

	for i, kind := range kinds {
		s.wg.Add(1)
		go func(kind ledger.EventKind, sub ethereum.Subscription) {
			defer s.wg.Done()
			m.supervise(runCtx, kind, sub, events, s.errs)
		}(kind, subs[i])
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev := <-events:
				if runCtx.Err() != nil {
					return
				}
				m.opts.Sink.OnEvent(Format(ev, m.opts.Registry))
			}
		}
	}()
	return s, nil
}

// supervise owns one kind's subscription and replaces it when it fails.
// Events emitted while resubscribing are not replayed.
func (m *Monitor) supervise(ctx context.Context, kind ledger.EventKind, sub ethereum.Subscription, events chan<- ledger.Event, errs chan<- error) {
	backoff := m.opts.Resubscribe
	for {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case err := <-sub.Err():
			sub.Unsubscribe()
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = fmt.Errorf("subscription closed")
			}
			log.Printf("[warn] %s subscription failed: %v", kind, err)
			select {
			case errs <- fmt.Errorf("%s: %w", kind, err):
			default:
			}
		}

		for {
			wait := retry.Jitter(backoff.Next())
			if err := retry.Sleep(ctx, wait); err != nil {
				return
			}
			next, err := m.client.Subscribe(ctx, kind, events)
			if err != nil {
				log.Printf("[warn] resubscribe %s failed, retrying: %v", kind, err)
				continue
			}
			log.Printf("[info] resubscribed %s", kind)
			backoff.Reset()
			sub = next
			break
		}
	}
}
