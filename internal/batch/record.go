package batch

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/tokens"
)

type Outcome string

const (
	OutcomeConfirmed       Outcome = "confirmed"
	OutcomeSubmissionError Outcome = "submission_error"
	OutcomeExecutionError  Outcome = "execution_error"
)

// TradeRecord is the result of one attempt. A nil NetProfit means the profit
// is undefined: the attempt failed, or a snapshot read failed
// (ProfitUnavailable).
type TradeRecord struct {
	Seq   int
	RunID string

	Token       tokens.Token
	Amount      *big.Int
	SubmittedAt time.Time
	TxHash      common.Hash

	Outcome Outcome
	Success bool

	GasUsed           uint64
	EffectiveGasPrice *big.Int
	GasCost           *big.Int

	// GrossProfitDelta is the token profit counter delta clamped at zero.
	GrossProfitDelta *big.Int
	// RawProfitDelta keeps the unclamped delta for diagnostics.
	RawProfitDelta *big.Int
	NetProfit      *big.Int

	Anomaly           bool
	ProfitUnavailable bool
	MeetsThreshold    bool

	Err error
}

func (r TradeRecord) Failed() bool {
	return r.Outcome != OutcomeConfirmed
}

// Summary tallies the records of one batch.
type Summary struct {
	RunID string

	Attempted         int
	Confirmed         int
	SubmissionErrors  int
	ExecutionErrors   int
	Anomalies         int
	ProfitUnavailable int
	MeetingThreshold  int
	// Skipped is always zero: every worklist entry is attempted.
	Skipped int

	// NetProfit is summed per token in that token's smallest unit.
	NetProfit map[common.Address]*big.Int
	// GasCost is summed in wei.
	GasCost *big.Int

	tokens map[common.Address]tokens.Token
}

func NewSummary(runID string) *Summary {
	return &Summary{
		RunID:     runID,
		NetProfit: make(map[common.Address]*big.Int),
		GasCost:   new(big.Int),
		tokens:    make(map[common.Address]tokens.Token),
	}
}

func (s *Summary) Add(r TradeRecord) {
	s.Attempted++
	switch r.Outcome {
	case OutcomeConfirmed:
		s.Confirmed++
	case OutcomeSubmissionError:
		s.SubmissionErrors++
	case OutcomeExecutionError:
		s.ExecutionErrors++
	}
	if r.Anomaly {
		s.Anomalies++
	}
	if r.ProfitUnavailable {
		s.ProfitUnavailable++
	}
	if r.MeetsThreshold {
		s.MeetingThreshold++
	}
	if r.GasCost != nil {
		s.GasCost.Add(s.GasCost, r.GasCost)
	}
	if r.NetProfit != nil {
		sum, ok := s.NetProfit[r.Token.Address]
		if !ok {
			sum = new(big.Int)
			s.NetProfit[r.Token.Address] = sum
		}
		sum.Add(sum, r.NetProfit)
		s.tokens[r.Token.Address] = r.Token
	}
}

// Failed counts attempts that were made and failed.
func (s *Summary) Failed() int {
	return s.SubmissionErrors + s.ExecutionErrors
}

// TokenProfits returns the per-token net profit sums ordered by symbol.
func (s *Summary) TokenProfits() []TokenProfit {
	out := make([]TokenProfit, 0, len(s.NetProfit))
	for addr, sum := range s.NetProfit {
		out = append(out, TokenProfit{Token: s.tokens[addr], NetProfit: new(big.Int).Set(sum)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token.Label() < out[j].Token.Label() })
	return out
}

type TokenProfit struct {
	Token     tokens.Token
	NetProfit *big.Int
}
