package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	"github.com/google/uuid"

	"flasharb/internal/ledger"
	"flasharb/internal/stats"
	"flasharb/internal/tokens"
)

type Options struct {
	// ProfitThreshold marks records whose net profit reaches it. Nil disables
	// the check.
	ProfitThreshold *big.Int
	// RunID defaults to a fresh uuid.
	RunID string
}

// Orchestrator runs flash-loan attempts one token at a time.
type Orchestrator struct {
	client ledger.Client
	rec    *stats.Reconciler
	opts   Options
}

func New(client ledger.Client, rec *stats.Reconciler, opts Options) *Orchestrator {
	return &Orchestrator{client: client, rec: rec, opts: opts}
}

// RunBatch returns a stream with exactly one record per worklist entry, in
// worklist order. The stream is unbuffered: attempt N+1 is not submitted
// until record N has been received. Cancelling ctx abandons the remaining
// worklist between attempts; an attempt already submitted still runs to
// confirmation (bounded by the client's confirm timeout) and its record is
// always delivered, so callers must drain the channel until it is closed.
func (o *Orchestrator) RunBatch(ctx context.Context, worklist []tokens.Token, amount *big.Int) (<-chan TradeRecord, error) {
	return o.runBatch(ctx, worklist, amount, o.runID())
}

func (o *Orchestrator) runID() string {
	if o.opts.RunID != "" {
		return o.opts.RunID
	}
	return uuid.NewString()
}

func (o *Orchestrator) runBatch(ctx context.Context, worklist []tokens.Token, amount *big.Int, runID string) (<-chan TradeRecord, error) {
	if amount == nil {
		return nil, fmt.Errorf("amount per attempt required")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount per attempt must be non-negative, got %s", amount)
	}
	amount = new(big.Int).Set(amount)
	list := append([]tokens.Token(nil), worklist...)

	out := make(chan TradeRecord)
	go func() {
		defer close(out)
		for i, tok := range list {
			if ctx.Err() != nil {
				log.Printf("[info] batch %s cancelled after %d/%d attempts", runID, i, len(list))
				return
			}
			rec := o.attempt(context.WithoutCancel(ctx), tok, amount)
			rec.Seq = i + 1
			rec.RunID = runID
			// A submitted attempt is always reported, even after a cancel.
			out <- rec
		}
	}()
	return out, nil
}

// Run drains RunBatch into a Summary, handing every record to fn first.
func (o *Orchestrator) Run(ctx context.Context, worklist []tokens.Token, amount *big.Int, fn func(TradeRecord)) (*Summary, error) {
	runID := o.runID()
	records, err := o.runBatch(ctx, worklist, amount, runID)
	if err != nil {
		return nil, err
	}
	sum := NewSummary(runID)
	for r := range records {
		if fn != nil {
			fn(r)
		}
		sum.Add(r)
	}
	return sum, ctx.Err()
}

func (o *Orchestrator) attempt(ctx context.Context, tok tokens.Token, amount *big.Int) TradeRecord {
	rec := TradeRecord{Token: tok, Amount: new(big.Int).Set(amount)}

	pre, preErr := o.rec.Token(ctx, tok)
	if preErr != nil {
		log.Printf("[warn] pre-attempt snapshot %s: %v", tok.Label(), preErr)
	}

	h, err := o.client.SubmitFlashloan(ctx, tok.Address, amount)
	if err != nil {
		rec.Outcome = OutcomeSubmissionError
		rec.Err = classified(ledger.ErrSubmission, err)
		log.Printf("[warn] attempt %s failed: %v", tok.Label(), rec.Err)
		return rec
	}
	rec.TxHash = h.TxHash
	rec.SubmittedAt = h.SubmittedAt

	conf, err := o.client.AwaitConfirmation(ctx, h)
	// A reverted receipt still carries gas figures; a timeout carries none.
	if err == nil || conf.EffectiveGasPrice != nil {
		price := conf.EffectiveGasPrice
		if price == nil {
			price = new(big.Int)
		}
		rec.GasUsed = conf.GasUsed
		rec.EffectiveGasPrice = new(big.Int).Set(price)
		rec.GasCost = gasCost(conf.GasUsed, price)
	}
	if err == nil && !conf.Succeeded() {
		err = fmt.Errorf("tx %s status %d", conf.TxHash.Hex(), conf.Status)
	}
	if err != nil {
		rec.Outcome = OutcomeExecutionError
		rec.Err = classified(ledger.ErrExecution, err)
		log.Printf("[warn] attempt %s failed tx=%s: %v", tok.Label(), h.TxHash.Hex(), rec.Err)
		return rec
	}
	rec.Outcome = OutcomeConfirmed
	rec.Success = true

	post, postErr := o.rec.Token(ctx, tok)
	if postErr != nil {
		log.Printf("[warn] post-attempt snapshot %s: %v", tok.Label(), postErr)
	}
	if preErr != nil || postErr != nil {
		rec.ProfitUnavailable = true
		rec.Err = errors.Join(preErr, postErr)
		return rec
	}

	delta, err := stats.ProfitDelta(pre, post)
	if err != nil {
		rec.ProfitUnavailable = true
		rec.Err = err
		return rec
	}
	rec.RawProfitDelta = delta.Raw
	rec.GrossProfitDelta = delta.Gross
	if delta.AttemptsRegressed {
		log.Printf("[warn] %s attempts counter moved backwards tx=%s", tok.Label(), h.TxHash.Hex())
	}
	if delta.Anomaly {
		rec.Anomaly = true
		rec.NetProfit = new(big.Int)
		log.Printf("[warn] reconciliation anomaly %s tx=%s: raw delta %s", tok.Label(), h.TxHash.Hex(), delta.Raw)
	} else {
		rec.NetProfit = new(big.Int).Sub(delta.Gross, rec.GasCost)
	}
	if o.opts.ProfitThreshold != nil {
		rec.MeetsThreshold = rec.NetProfit.Cmp(o.opts.ProfitThreshold) >= 0
	}
	return rec
}

func gasCost(gasUsed uint64, price *big.Int) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), price)
}

// classified makes sure err carries class so callers can errors.Is on it even
// when a client implementation forgot to wrap.
func classified(class, err error) error {
	if errors.Is(err, class) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}
