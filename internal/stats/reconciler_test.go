package stats

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/ledger"
	"flasharb/internal/ledger/ledgertest"
	"flasharb/internal/tokens"
)

func TestAggregateSnapshotIsIdempotent(t *testing.T) {
	fake := ledgertest.New()
	fake.SetAggregate(ledger.AggregateStats{
		IsSearching:         true,
		LastSearchTimestamp: big.NewInt(1700000000),
		TotalFlashLoans:     big.NewInt(4),
		SuccessfulSwaps:     big.NewInt(3),
		FailedSwaps:         big.NewInt(1),
	})
	rec := NewReconciler(fake)

	a, err := rec.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := rec.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("snapshots differ: %+v vs %+v", a, b)
	}
	if a.TotalFlashLoans != 4 || a.LastSearch.Unix() != 1700000000 || !a.IsSearching {
		t.Fatalf("aggregate mismatch: %+v", a)
	}
	if got := a.SuccessRate().String(); got != "75" {
		t.Fatalf("success rate mismatch: got %s want 75", got)
	}
}

func TestTokenSnapshotIsIdempotent(t *testing.T) {
	fake := ledgertest.New()
	fake.SetTokenStats(tokens.WETH.Address, 5e16, 2)
	rec := NewReconciler(fake)

	a, err := rec.Token(context.Background(), tokens.WETH)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := rec.Token(context.Background(), tokens.WETH)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("snapshots differ: %+v vs %+v", a, b)
	}

	// Snapshots are values: mutating one must not leak into the next read.
	a.TotalProfit.SetInt64(0)
	c, _ := rec.Token(context.Background(), tokens.WETH)
	if c.TotalProfit.String() != "50000000000000000" {
		t.Fatalf("snapshot aliasing: got %s", c.TotalProfit)
	}
}

func TestReadFailuresAreReadErrors(t *testing.T) {
	fake := ledgertest.New()
	fake.AggregateFunc = func(int) (ledger.AggregateStats, error) {
		return ledger.AggregateStats{}, ledgertest.ErrUnreachable
	}
	fake.OverallFunc = func(int) (ledger.OverallStats, error) {
		return ledger.OverallStats{}, ledgertest.ErrUnreachable
	}
	rec := NewReconciler(fake)

	_, err := rec.Aggregate(context.Background())
	if !errors.Is(err, ledger.ErrRead) || !errors.Is(err, ledgertest.ErrUnreachable) {
		t.Fatalf("expected wrapped ErrRead, got %v", err)
	}
	_, err = rec.Overall(context.Background())
	if !errors.Is(err, ledger.ErrRead) {
		t.Fatalf("expected wrapped ErrRead, got %v", err)
	}

	fake.TokenErrFunc = func(common.Address) error { return ledgertest.ErrUnreachable }
	_, err = rec.Token(context.Background(), tokens.WETH)
	if !errors.Is(err, ledger.ErrRead) || !errors.Is(err, ledgertest.ErrUnreachable) {
		t.Fatalf("expected wrapped ErrRead, got %v", err)
	}
}

func TestOverallSnapshot(t *testing.T) {
	fake := ledgertest.New()
	fake.OverallFunc = func(int) (ledger.OverallStats, error) {
		return ledger.OverallStats{
			TotalTrades:        big.NewInt(3),
			SuccessfulTrades:   big.NewInt(2),
			TotalProfit:        big.NewInt(123),
			LastTradeTimestamp: big.NewInt(0),
		}, nil
	}
	o, err := NewReconciler(fake).Overall(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.TotalTrades != 3 || o.TotalProfit.Int64() != 123 || !o.LastTrade.IsZero() {
		t.Fatalf("overall mismatch: %+v", o)
	}
	if got := o.SuccessRate().String(); got != "66.67" {
		t.Fatalf("success rate mismatch: got %s want 66.67", got)
	}
	if got := (Overall{}).SuccessRate().String(); got != "0" {
		t.Fatalf("empty success rate mismatch: got %s want 0", got)
	}
}

func TestProfitDelta(t *testing.T) {
	pre := TokenSnapshot{Token: tokens.WETH, TotalProfit: big.NewInt(1e16), Attempts: 1}
	post := TokenSnapshot{Token: tokens.WETH, TotalProfit: big.NewInt(3e16), Attempts: 2}

	d, err := ProfitDelta(pre, post)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Anomaly || d.Gross.String() != "20000000000000000" || d.Raw.Cmp(d.Gross) != 0 || d.Attempts != 1 {
		t.Fatalf("delta mismatch: %+v", d)
	}
}

func TestProfitDeltaNegativeIsAnomaly(t *testing.T) {
	pre := TokenSnapshot{Token: tokens.WBTC, TotalProfit: big.NewInt(500), Attempts: 3}
	post := TokenSnapshot{Token: tokens.WBTC, TotalProfit: big.NewInt(200), Attempts: 4}

	d, err := ProfitDelta(pre, post)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Anomaly {
		t.Fatalf("expected anomaly")
	}
	if d.Gross.Sign() != 0 {
		t.Fatalf("gross mismatch: got %s want 0", d.Gross)
	}
	if d.Raw.Int64() != -300 {
		t.Fatalf("raw mismatch: got %s want -300", d.Raw)
	}
}

func TestProfitDeltaAttemptsBackwardsKeepsProfit(t *testing.T) {
	pre := TokenSnapshot{Token: tokens.USDC, TotalProfit: big.NewInt(0), Attempts: 5}
	post := TokenSnapshot{Token: tokens.USDC, TotalProfit: big.NewInt(2e16), Attempts: 4}
	d, err := ProfitDelta(pre, post)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.AttemptsRegressed {
		t.Fatalf("expected attempts regression to be flagged")
	}
	if d.Anomaly {
		t.Fatalf("a non-negative profit delta is not an anomaly")
	}
	if d.Gross.String() != "20000000000000000" || d.Attempts != 0 {
		t.Fatalf("delta mismatch: %+v", d)
	}
}

// nilProfitReader reports token stats without a profit value.
type nilProfitReader struct {
	*ledgertest.Fake
}

func (nilProfitReader) TokenStats(context.Context, common.Address) (ledger.TokenStats, error) {
	return ledger.TokenStats{Attempts: big.NewInt(1)}, nil
}

func TestMissingProfitIsNotZero(t *testing.T) {
	rec := NewReconciler(nilProfitReader{ledgertest.New()})
	snap, err := rec.Token(context.Background(), tokens.WETH)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.TotalProfit != nil {
		t.Fatalf("missing profit should stay nil, got %s", snap.TotalProfit)
	}
	post := TokenSnapshot{Token: tokens.WETH, TotalProfit: big.NewInt(5), Attempts: 2}
	_, err = ProfitDelta(snap, post)
	if !errors.Is(err, ledger.ErrRead) {
		t.Fatalf("expected ErrRead for missing profit, got %v", err)
	}
}

func TestProfitDeltaRejectsMismatchedTokens(t *testing.T) {
	pre := TokenSnapshot{Token: tokens.WETH, TotalProfit: big.NewInt(0)}
	post := TokenSnapshot{Token: tokens.WBTC, TotalProfit: big.NewInt(0)}
	if _, err := ProfitDelta(pre, post); err == nil {
		t.Fatalf("expected error for different tokens")
	}
	if _, err := ProfitDelta(TokenSnapshot{Token: tokens.WETH}, post); err == nil {
		t.Fatalf("expected error for missing profit")
	}
}

func TestUint64FromUint256Saturating(t *testing.T) {
	t.Parallel()

	over := new(big.Int).Add(new(big.Int).SetUint64(math.MaxUint64), big.NewInt(1))
	cases := []struct {
		name string
		in   *big.Int
		want uint64
	}{
		{"nil", nil, 0},
		{"negative", big.NewInt(-1), 0},
		{"fits", big.NewInt(123_456_789), 123_456_789},
		{"overflows", over, math.MaxUint64},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := uint64FromUint256Saturating(tc.in); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
	if got := saturatingAdd(math.MaxUint64, 1); got != math.MaxUint64 {
		t.Fatalf("saturating add mismatch: got %d", got)
	}
}
