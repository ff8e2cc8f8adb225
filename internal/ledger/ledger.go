package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is the request/response and subscription surface of the arbitrage
// contract consumed by the orchestrator, reconciler and monitor. The client is
// the only writer of contract state; everything else reads through it.
type Client interface {
	SubmitFlashloan(ctx context.Context, token common.Address, amount *big.Int) (Handle, error)
	AwaitConfirmation(ctx context.Context, h Handle) (Confirmation, error)

	AggregateStats(ctx context.Context) (AggregateStats, error)
	TokenStats(ctx context.Context, token common.Address) (TokenStats, error)
	OverallStats(ctx context.Context) (OverallStats, error)

	// Subscribe delivers decoded events of one kind to out, in emission order,
	// until the subscription is unsubscribed or fails.
	Subscribe(ctx context.Context, kind EventKind, out chan<- Event) (ethereum.Subscription, error)
}

// Handle is a submitted flash-loan attempt awaiting confirmation.
type Handle struct {
	Token       common.Address
	Amount      *big.Int
	TxHash      common.Hash
	SubmittedAt time.Time

	tx *types.Transaction
}

// Confirmation carries the receipt figures of a mined attempt.
type Confirmation struct {
	TxHash            common.Hash
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Status            uint64

	// Events are the contract's domain events found in the receipt logs.
	Events []Event
}

func (c Confirmation) Succeeded() bool {
	return c.Status == types.ReceiptStatusSuccessful
}

// AggregateStats mirrors getStats().
type AggregateStats struct {
	IsSearching         bool
	LastSearchTimestamp *big.Int
	TotalFlashLoans     *big.Int
	SuccessfulSwaps     *big.Int
	FailedSwaps         *big.Int
}

// TokenStats mirrors getTokenStats(token). TotalProfit is denominated in the
// token's own smallest unit.
type TokenStats struct {
	TotalProfit *big.Int
	Attempts    *big.Int
}

// OverallStats mirrors getOverallStats().
type OverallStats struct {
	TotalTrades        *big.Int
	SuccessfulTrades   *big.Int
	TotalProfit        *big.Int
	LastTradeTimestamp *big.Int
}

// maxUnixSeconds is 9999-12-31T23:59:59Z, the last instant RFC 3339 can print.
const maxUnixSeconds = 253402300799

// UnixTime converts a uint256 unix-seconds value. Zero, nil and values past
// year 9999 yield the zero time, which displays as "never".
func UnixTime(secs *big.Int) time.Time {
	if secs == nil || secs.Sign() <= 0 {
		return time.Time{}
	}
	if !secs.IsInt64() || secs.Int64() > maxUnixSeconds {
		return time.Time{}
	}
	return time.Unix(secs.Int64(), 0).UTC()
}
