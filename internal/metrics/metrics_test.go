package metrics

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"flasharb/internal/batch"
	"flasharb/internal/ledger"
	"flasharb/internal/observe"
	"flasharb/internal/stats"
	"flasharb/internal/tokens"
)

func TestTradesAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "flasharb")

	m.OnTrade(batch.TradeRecord{
		Token:     tokens.WETH,
		Outcome:   batch.OutcomeConfirmed,
		Success:   true,
		GasCost:   big.NewInt(1_050_000),
		NetProfit: big.NewInt(2_000_000),
	})
	m.OnTrade(batch.TradeRecord{
		Token:   tokens.WBTC,
		Outcome: batch.OutcomeExecutionError,
		GasCost: big.NewInt(50),
		Err:     fmt.Errorf("%w: reverted", ledger.ErrExecution),
	})
	m.OnTrade(batch.TradeRecord{
		Token:     tokens.WETH,
		Outcome:   batch.OutcomeConfirmed,
		Success:   true,
		Anomaly:   true,
		GasCost:   new(big.Int),
		NetProfit: new(big.Int),
	})

	if got := testutil.ToFloat64(m.Trades.WithLabelValues("WETH", "confirmed")); got != 2 {
		t.Fatalf("WETH confirmed mismatch: got %v want 2", got)
	}
	if got := testutil.ToFloat64(m.Trades.WithLabelValues("WBTC", "execution_error")); got != 1 {
		t.Fatalf("WBTC failure mismatch: got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("execution")); got != 1 {
		t.Fatalf("execution errors mismatch: got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.Anomalies); got != 1 {
		t.Fatalf("anomalies mismatch: got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.GasSpentWei); got != 1_050_050 {
		t.Fatalf("gas mismatch: got %v", got)
	}
	if got := testutil.ToFloat64(m.NetProfit.WithLabelValues("WETH")); got != 2_000_000 {
		t.Fatalf("net profit mismatch: got %v", got)
	}
}

func TestStatsGauges(t *testing.T) {
	m := New(prometheus.NewRegistry(), "flasharb")
	m.OnStats(stats.Aggregate{IsSearching: true, LastSearch: time.Unix(1700000000, 0), TotalFlashLoans: 9, SuccessfulSwaps: 7, FailedSwaps: 2})
	m.OnOverall(stats.Overall{TotalTrades: 5, SuccessfulTrades: 4})
	m.OnEvent(observe.EventView{Kind: ledger.KindSwapExecuted})

	if got := testutil.ToFloat64(m.TotalFlashLoans); got != 9 {
		t.Fatalf("flash loans mismatch: got %v", got)
	}
	if got := testutil.ToFloat64(m.Searching); got != 1 {
		t.Fatalf("searching mismatch: got %v", got)
	}
	if got := testutil.ToFloat64(m.LastSearchSeconds); got != 1700000000 {
		t.Fatalf("last search mismatch: got %v", got)
	}
	if got := testutil.ToFloat64(m.SuccessfulTrades); got != 4 {
		t.Fatalf("successful trades mismatch: got %v", got)
	}
	if got := testutil.ToFloat64(m.Events.WithLabelValues("SwapExecuted")); got != 1 {
		t.Fatalf("events mismatch: got %v", got)
	}
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil, "")
	m.ObserveError(nil)
	m.ObserveError(fmt.Errorf("%w: x", ledger.ErrRead))
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("read")); got != 1 {
		t.Fatalf("read errors mismatch: got %v", got)
	}
}
