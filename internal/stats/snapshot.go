package stats

import (
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"flasharb/internal/tokens"
)

// Aggregate is a point-in-time copy of getStats(). Counters that exceed
// uint64 saturate.
type Aggregate struct {
	IsSearching     bool
	LastSearch      time.Time
	TotalFlashLoans uint64
	SuccessfulSwaps uint64
	FailedSwaps     uint64

	CapturedAt time.Time
}

// Equal compares content, ignoring CapturedAt.
func (a Aggregate) Equal(b Aggregate) bool {
	return a.IsSearching == b.IsSearching &&
		a.LastSearch.Equal(b.LastSearch) &&
		a.TotalFlashLoans == b.TotalFlashLoans &&
		a.SuccessfulSwaps == b.SuccessfulSwaps &&
		a.FailedSwaps == b.FailedSwaps
}

// SuccessRate is successful/(successful+failed) as a percentage, zero when no
// swap has been recorded.
func (a Aggregate) SuccessRate() decimal.Decimal {
	return percent(a.SuccessfulSwaps, saturatingAdd(a.SuccessfulSwaps, a.FailedSwaps))
}

// TokenSnapshot is a point-in-time copy of getTokenStats(token). TotalProfit
// is in the token's smallest unit.
type TokenSnapshot struct {
	Token       tokens.Token
	TotalProfit *big.Int
	Attempts    uint64

	CapturedAt time.Time
}

func (s TokenSnapshot) Equal(o TokenSnapshot) bool {
	return s.Token.Address == o.Token.Address &&
		s.Attempts == o.Attempts &&
		bigEqual(s.TotalProfit, o.TotalProfit)
}

// Overall is a point-in-time copy of getOverallStats().
type Overall struct {
	TotalTrades      uint64
	SuccessfulTrades uint64
	TotalProfit      *big.Int
	LastTrade        time.Time

	CapturedAt time.Time
}

func (o Overall) Equal(p Overall) bool {
	return o.TotalTrades == p.TotalTrades &&
		o.SuccessfulTrades == p.SuccessfulTrades &&
		o.LastTrade.Equal(p.LastTrade) &&
		bigEqual(o.TotalProfit, p.TotalProfit)
}

// SuccessRate is successful/total trades as a percentage, zero with no trades.
func (o Overall) SuccessRate() decimal.Decimal {
	return percent(o.SuccessfulTrades, o.TotalTrades)
}

func percent(part, whole uint64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	p := decimal.NewFromBigInt(new(big.Int).SetUint64(part), 0)
	w := decimal.NewFromBigInt(new(big.Int).SetUint64(whole), 0)
	return p.Mul(decimal.NewFromInt(100)).DivRound(w, 2)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

func uint64FromUint256Saturating(x *big.Int) uint64 {
	if x == nil || x.Sign() <= 0 {
		return 0
	}
	if x.IsUint64() {
		return x.Uint64()
	}
	return math.MaxUint64
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// cloneBig keeps nil so a missing value is not mistaken for zero.
func cloneBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
