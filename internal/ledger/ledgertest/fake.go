// Package ledgertest provides an in-memory ledger.Client for tests.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"flasharb/internal/ledger"
)

var ErrUnreachable = errors.New("collaborator unreachable")

// Fake is a scriptable ledger.Client. Hooks run without the internal lock
// held, so they may call back into the Fake (e.g. SetTokenStats from
// ConfirmFunc to simulate the contract crediting profit).
type Fake struct {
	// AggregateFunc overrides AggregateStats; call counts from 1.
	AggregateFunc func(call int) (ledger.AggregateStats, error)
	OverallFunc   func(call int) (ledger.OverallStats, error)
	TokenErrFunc  func(token common.Address) error
	SubmitFunc    func(token common.Address, amount *big.Int) error
	ConfirmFunc   func(h ledger.Handle) (ledger.Confirmation, error)
	SubscribeFunc func(kind ledger.EventKind) error

	mu             sync.Mutex
	aggregate      ledger.AggregateStats
	tokenStats     map[common.Address]ledger.TokenStats
	aggregateCalls int
	overallCalls   int
	tokenCalls     int
	submissions    []ledger.Handle
	subscribeCalls []ledger.EventKind
	feeds          map[ledger.EventKind][]*feed
	nonce          int64
}

type feed struct {
	events chan ledger.Event
	fail   chan error
}

var _ ledger.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		tokenStats: make(map[common.Address]ledger.TokenStats),
		feeds:      make(map[ledger.EventKind][]*feed),
	}
}

func (f *Fake) SetAggregate(s ledger.AggregateStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregate = s
}

func (f *Fake) SetTokenStats(token common.Address, profit, attempts int64) {
	f.SetTokenStatsBig(token, big.NewInt(profit), big.NewInt(attempts))
}

func (f *Fake) SetTokenStatsBig(token common.Address, profit, attempts *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStats[token] = ledger.TokenStats{TotalProfit: new(big.Int).Set(profit), Attempts: new(big.Int).Set(attempts)}
}

func (f *Fake) AggregateStats(ctx context.Context) (ledger.AggregateStats, error) {
	f.mu.Lock()
	f.aggregateCalls++
	call := f.aggregateCalls
	snap := f.aggregate
	fn := f.AggregateFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(call)
	}
	return fillAggregate(snap), nil
}

func (f *Fake) TokenStats(ctx context.Context, token common.Address) (ledger.TokenStats, error) {
	f.mu.Lock()
	f.tokenCalls++
	ts, ok := f.tokenStats[token]
	fn := f.TokenErrFunc
	f.mu.Unlock()

	if fn != nil {
		if err := fn(token); err != nil {
			return ledger.TokenStats{}, fmt.Errorf("%w: getTokenStats: %w", ledger.ErrRead, err)
		}
	}
	if !ok {
		return ledger.TokenStats{TotalProfit: new(big.Int), Attempts: new(big.Int)}, nil
	}
	return ledger.TokenStats{TotalProfit: new(big.Int).Set(ts.TotalProfit), Attempts: new(big.Int).Set(ts.Attempts)}, nil
}

func (f *Fake) OverallStats(ctx context.Context) (ledger.OverallStats, error) {
	f.mu.Lock()
	f.overallCalls++
	call := f.overallCalls
	fn := f.OverallFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(call)
	}
	return ledger.OverallStats{TotalTrades: new(big.Int), SuccessfulTrades: new(big.Int), TotalProfit: new(big.Int), LastTradeTimestamp: new(big.Int)}, nil
}

func (f *Fake) SubmitFlashloan(ctx context.Context, token common.Address, amount *big.Int) (ledger.Handle, error) {
	if fn := f.SubmitFunc; fn != nil {
		if err := fn(token, amount); err != nil {
			return ledger.Handle{}, fmt.Errorf("%w: startFlashloan: %w", ledger.ErrSubmission, err)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce++
	h := ledger.Handle{
		Token:       token,
		Amount:      new(big.Int).Set(amount),
		TxHash:      common.BigToHash(big.NewInt(f.nonce)),
		SubmittedAt: time.Unix(1700000000+f.nonce, 0),
	}
	f.submissions = append(f.submissions, h)
	return h, nil
}

func (f *Fake) AwaitConfirmation(ctx context.Context, h ledger.Handle) (ledger.Confirmation, error) {
	if fn := f.ConfirmFunc; fn != nil {
		return fn(h)
	}
	return ledger.Confirmation{TxHash: h.TxHash, Status: 1, EffectiveGasPrice: new(big.Int)}, nil
}

func (f *Fake) Subscribe(ctx context.Context, kind ledger.EventKind, out chan<- ledger.Event) (ethereum.Subscription, error) {
	f.mu.Lock()
	f.subscribeCalls = append(f.subscribeCalls, kind)
	fn := f.SubscribeFunc
	f.mu.Unlock()

	if fn != nil {
		if err := fn(kind); err != nil {
			return nil, err
		}
	}

	fd := &feed{events: make(chan ledger.Event, 64), fail: make(chan error, 1)}
	f.mu.Lock()
	f.feeds[kind] = append(f.feeds[kind], fd)
	f.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer f.drop(kind, fd)
		for {
			select {
			case <-quit:
				return nil
			case err := <-fd.fail:
				return err
			case ev := <-fd.events:
				select {
				case out <- ev:
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}

func (f *Fake) drop(kind ledger.EventKind, fd *feed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.feeds[kind]
	for i, x := range list {
		if x == fd {
			f.feeds[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every live subscription for its kind and returns how
// many received it.
func (f *Fake) Emit(ev ledger.Event) int {
	f.mu.Lock()
	list := append([]*feed(nil), f.feeds[ev.Kind()]...)
	f.mu.Unlock()
	for _, fd := range list {
		fd.events <- ev
	}
	return len(list)
}

// FailSubscriptions terminates every live subscription of kind with err.
func (f *Fake) FailSubscriptions(kind ledger.EventKind, err error) int {
	f.mu.Lock()
	list := append([]*feed(nil), f.feeds[kind]...)
	f.mu.Unlock()
	for _, fd := range list {
		select {
		case fd.fail <- err:
		default:
		}
	}
	return len(list)
}

// Live reports the number of open subscriptions for kind.
func (f *Fake) Live(kind ledger.EventKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feeds[kind])
}

func (f *Fake) Submissions() []ledger.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Handle(nil), f.submissions...)
}

func (f *Fake) SubscribeCalls() []ledger.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.EventKind(nil), f.subscribeCalls...)
}

func (f *Fake) AggregateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aggregateCalls
}

func fillAggregate(s ledger.AggregateStats) ledger.AggregateStats {
	fill := func(x *big.Int) *big.Int {
		if x == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(x)
	}
	return ledger.AggregateStats{
		IsSearching:         s.IsSearching,
		LastSearchTimestamp: fill(s.LastSearchTimestamp),
		TotalFlashLoans:     fill(s.TotalFlashLoans),
		SuccessfulSwaps:     fill(s.SuccessfulSwaps),
		FailedSwaps:         fill(s.FailedSwaps),
	}
}
