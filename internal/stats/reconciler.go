package stats

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/ledger"
	"flasharb/internal/tokens"
)

// Reader is the read-only part of ledger.Client.
type Reader interface {
	AggregateStats(ctx context.Context) (ledger.AggregateStats, error)
	TokenStats(ctx context.Context, token common.Address) (ledger.TokenStats, error)
	OverallStats(ctx context.Context) (ledger.OverallStats, error)
}

// Reconciler captures snapshots through the ledger client. Every call is a
// fresh read; nothing is cached or accumulated between calls, so a Reconciler
// may be shared by the orchestrator, the monitor and the poller.
type Reconciler struct {
	reader Reader
	now    func() time.Time
}

func NewReconciler(r Reader) *Reconciler {
	return &Reconciler{reader: r, now: time.Now}
}

func (r *Reconciler) Aggregate(ctx context.Context) (Aggregate, error) {
	raw, err := r.reader.AggregateStats(ctx)
	if err != nil {
		return Aggregate{}, readErr("aggregate stats", err)
	}
	return Aggregate{
		IsSearching:     raw.IsSearching,
		LastSearch:      ledger.UnixTime(raw.LastSearchTimestamp),
		TotalFlashLoans: uint64FromUint256Saturating(raw.TotalFlashLoans),
		SuccessfulSwaps: uint64FromUint256Saturating(raw.SuccessfulSwaps),
		FailedSwaps:     uint64FromUint256Saturating(raw.FailedSwaps),
		CapturedAt:      r.now(),
	}, nil
}

func (r *Reconciler) Token(ctx context.Context, token tokens.Token) (TokenSnapshot, error) {
	raw, err := r.reader.TokenStats(ctx, token.Address)
	if err != nil {
		return TokenSnapshot{}, readErr("token stats "+token.Label(), err)
	}
	return TokenSnapshot{
		Token:       token,
		TotalProfit: cloneBig(raw.TotalProfit),
		Attempts:    uint64FromUint256Saturating(raw.Attempts),
		CapturedAt:  r.now(),
	}, nil
}

func (r *Reconciler) Overall(ctx context.Context) (Overall, error) {
	raw, err := r.reader.OverallStats(ctx)
	if err != nil {
		return Overall{}, readErr("overall stats", err)
	}
	return Overall{
		TotalTrades:      uint64FromUint256Saturating(raw.TotalTrades),
		SuccessfulTrades: uint64FromUint256Saturating(raw.SuccessfulTrades),
		TotalProfit:      cloneBig(raw.TotalProfit),
		LastTrade:        ledger.UnixTime(raw.LastTradeTimestamp),
		CapturedAt:       r.now(),
	}, nil
}

func readErr(what string, err error) error {
	if errors.Is(err, ledger.ErrRead) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", ledger.ErrRead, what, err)
}

// Delta is the change in a token's profit counter across one attempt.
type Delta struct {
	Token tokens.Token
	// Raw is post - pre and may be negative.
	Raw *big.Int
	// Gross is Raw clamped at zero.
	Gross *big.Int
	// Attempts is how far the attempts counter advanced.
	Attempts uint64
	// Anomaly is set when the profit counter moved backwards; Gross is then
	// clamped to zero.
	Anomaly bool
	// AttemptsRegressed is set when the attempts counter moved backwards. It
	// does not affect the profit figures.
	AttemptsRegressed bool
}

// ProfitDelta compares two snapshots of the same token taken before and after
// an attempt. Ordering is the caller's responsibility.
func ProfitDelta(pre, post TokenSnapshot) (Delta, error) {
	if pre.Token.Address != post.Token.Address {
		return Delta{}, fmt.Errorf("snapshots are for different tokens: %s vs %s", pre.Token.Address.Hex(), post.Token.Address.Hex())
	}
	if pre.TotalProfit == nil || post.TotalProfit == nil {
		return Delta{}, fmt.Errorf("%w: snapshot for %s has no profit value", ledger.ErrRead, pre.Token.Label())
	}

	d := Delta{
		Token: post.Token,
		Raw:   new(big.Int).Sub(post.TotalProfit, pre.TotalProfit),
	}
	if d.Raw.Sign() < 0 {
		d.Anomaly = true
		d.Gross = new(big.Int)
	} else {
		d.Gross = new(big.Int).Set(d.Raw)
	}
	if post.Attempts < pre.Attempts {
		d.AttemptsRegressed = true
	} else {
		d.Attempts = post.Attempts - pre.Attempts
	}
	return d, nil
}
