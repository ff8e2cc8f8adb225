package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"

	"flasharb/internal/retry"
)

const (
	DefaultConfirmTimeout = 3 * time.Minute
	DefaultCallTimeout    = 10 * time.Second
)

var errSubscriptionClosed = errors.New("log subscription closed by node")

type Options struct {
	URL      string
	Contract common.Address

	// PrivateKey signs startFlashloan transactions. Read-only use (monitoring)
	// may leave it nil.
	PrivateKey *ecdsa.PrivateKey
	// ChainID is resolved from the node when nil.
	ChainID *big.Int
	// ABI defaults to DefaultABIJSON.
	ABI *abi.ABI

	ConfirmTimeout time.Duration
	CallTimeout    time.Duration

	// GasLimit of zero lets the node estimate.
	GasLimit uint64
	// GasPriceBumpPct > 0 submits a legacy gas price of
	// suggested*(100+bump)/100.
	GasPriceBumpPct int64

	DialBackoff retry.Backoff
}

// EthClient implements Client over a go-ethereum RPC connection.
type EthClient struct {
	rpc      *ethclient.Client
	contract common.Address
	abi      abi.ABI
	bound    *bind.BoundContract
	decoder  *Decoder
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	opts     Options
}

var _ Client = (*EthClient)(nil)

// Dial connects to the node, retrying with backoff until ctx is cancelled,
// and checks that the contract address holds code.
func Dial(ctx context.Context, opts Options) (*EthClient, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("rpc url required")
	}
	if (opts.Contract == common.Address{}) {
		return nil, fmt.Errorf("contract address required")
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	var contractABI abi.ABI
	if opts.ABI != nil {
		contractABI = *opts.ABI
	} else {
		parsed, err := DefaultABI()
		if err != nil {
			return nil, err
		}
		contractABI = parsed
	}
	decoder, err := NewDecoder(contractABI)
	if err != nil {
		return nil, err
	}

	rpc, head, err := dialWithBackoff(ctx, opts.URL, opts.DialBackoff)
	if err != nil {
		return nil, err
	}

	chainID := opts.ChainID
	if chainID == nil {
		chainID, err = rpc.ChainID(ctx)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("%w: fetch chain id: %w", ErrConnectivity, err)
		}
	}

	code, err := rpc.CodeAt(ctx, opts.Contract, nil)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("%w: code at %s: %w", ErrConnectivity, opts.Contract.Hex(), err)
	}
	if len(code) == 0 {
		rpc.Close()
		return nil, fmt.Errorf("%w: no contract code at %s (chain %s)", ErrConnectivity, opts.Contract.Hex(), chainID)
	}
	log.Printf("[info] connected chain=%s head=%d contract=%s", chainID, head, opts.Contract.Hex())

	return &EthClient{
		rpc:      rpc,
		contract: opts.Contract,
		abi:      contractABI,
		bound:    bind.NewBoundContract(opts.Contract, contractABI, rpc, rpc, rpc),
		decoder:  decoder,
		key:      opts.PrivateKey,
		chainID:  chainID,
		opts:     opts,
	}, nil
}

func dialWithBackoff(ctx context.Context, url string, b retry.Backoff) (*ethclient.Client, uint64, error) {
	if b.Min <= 0 {
		b.Min = time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		client, err := ethclient.DialContext(ctx, url)
		if err == nil {
			head, headErr := client.BlockNumber(ctx)
			if headErr == nil {
				return client, head, nil
			}
			client.Close()
			err = fmt.Errorf("failed to fetch head: %w", headErr)
		}

		wait := retry.Jitter(b.Next())
		log.Printf("[warn] failed to connect rpc, retrying in %s: %v", wait, err)
		if err := retry.Sleep(ctx, wait); err != nil {
			return nil, 0, err
		}
	}
}

func (c *EthClient) Close() {
	c.rpc.Close()
}

func (c *EthClient) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *EthClient) Contract() common.Address { return c.contract }

func (c *EthClient) Decoder() *Decoder { return c.decoder }

func (c *EthClient) SubmitFlashloan(ctx context.Context, token common.Address, amount *big.Int) (Handle, error) {
	if c.key == nil {
		return Handle{}, fmt.Errorf("%w: no signing key configured", ErrSubmission)
	}
	if (token == common.Address{}) {
		return Handle{}, fmt.Errorf("%w: zero token address", ErrSubmission)
	}
	if amount == nil || amount.Sign() < 0 {
		return Handle{}, fmt.Errorf("%w: amount must be a non-negative integer", ErrSubmission)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: transactor: %w", ErrSubmission, err)
	}
	opts.Context = ctx
	opts.GasLimit = c.opts.GasLimit
	if c.opts.GasPriceBumpPct > 0 {
		suggested, err := c.rpc.SuggestGasPrice(ctx)
		if err != nil {
			return Handle{}, fmt.Errorf("%w: suggest gas price: %w", ErrSubmission, err)
		}
		opts.GasPrice = BumpGasPrice(suggested, c.opts.GasPriceBumpPct)
	}

	tx, err := c.bound.Transact(opts, methodStartFlashloan, token, amount)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %s(%s, %s): %w", ErrSubmission, methodStartFlashloan, token.Hex(), amount, err)
	}
	return Handle{
		Token:       token,
		Amount:      new(big.Int).Set(amount),
		TxHash:      tx.Hash(),
		SubmittedAt: time.Now(),
		tx:          tx,
	}, nil
}

// BumpGasPrice returns price*(100+pct)/100 using integer arithmetic.
func BumpGasPrice(price *big.Int, pct int64) *big.Int {
	if price == nil {
		return nil
	}
	out := new(big.Int).Mul(price, big.NewInt(100+pct))
	return out.Quo(out, big.NewInt(100))
}

func (c *EthClient) AwaitConfirmation(ctx context.Context, h Handle) (Confirmation, error) {
	tx := h.tx
	if tx == nil {
		fetched, _, err := c.rpc.TransactionByHash(ctx, h.TxHash)
		if err != nil {
			return Confirmation{TxHash: h.TxHash}, fmt.Errorf("%w: lookup tx %s: %w", ErrExecution, h.TxHash.Hex(), err)
		}
		tx = fetched
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.rpc, tx)
	if err != nil {
		return Confirmation{TxHash: h.TxHash}, fmt.Errorf("%w: await tx %s: %w", ErrExecution, h.TxHash.Hex(), err)
	}

	conf := confirmationFromReceipt(receipt, tx, c.contract, c.decoder)
	if !conf.Succeeded() {
		return conf, fmt.Errorf("%w: tx %s reverted in block %d", ErrExecution, conf.TxHash.Hex(), conf.BlockNumber)
	}
	return conf, nil
}

// confirmationFromReceipt extracts gas figures and the contract's own events
// from a mined receipt. Logs from other addresses and unknown topics are
// skipped.
func confirmationFromReceipt(receipt *types.Receipt, tx *types.Transaction, contract common.Address, decoder *Decoder) Confirmation {
	conf := Confirmation{
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
		Status:  receipt.Status,
	}
	if receipt.BlockNumber != nil {
		conf.BlockNumber = receipt.BlockNumber.Uint64()
	}
	switch {
	case receipt.EffectiveGasPrice != nil:
		conf.EffectiveGasPrice = new(big.Int).Set(receipt.EffectiveGasPrice)
	case tx != nil && tx.GasPrice() != nil:
		conf.EffectiveGasPrice = new(big.Int).Set(tx.GasPrice())
	default:
		conf.EffectiveGasPrice = new(big.Int)
	}

	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != contract || decoder == nil || !decoder.Known(*lg) {
			continue
		}
		ev, err := decoder.Decode(*lg)
		if err != nil {
			log.Printf("[warn] receipt log decode tx=%s idx=%d: %v", receipt.TxHash.Hex(), lg.Index, err)
			continue
		}
		conf.Events = append(conf.Events, ev)
	}
	return conf
}

func (c *EthClient) AggregateStats(ctx context.Context) (AggregateStats, error) {
	vals, err := c.call(ctx, methodGetStats)
	if err != nil {
		return AggregateStats{}, err
	}
	return decodeAggregateStats(vals)
}

func (c *EthClient) TokenStats(ctx context.Context, token common.Address) (TokenStats, error) {
	vals, err := c.call(ctx, methodGetTokenStats, token)
	if err != nil {
		return TokenStats{}, err
	}
	return decodeTokenStats(vals)
}

func (c *EthClient) OverallStats(ctx context.Context) (OverallStats, error) {
	vals, err := c.call(ctx, methodGetOverallStats)
	if err != nil {
		return OverallStats{}, err
	}
	return decodeOverallStats(vals)
}

func (c *EthClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %w", ErrRead, method, err)
	}
	out, err := c.rpc.CallContract(callCtx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned empty result", ErrRead, method)
	}
	vals, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %w", ErrRead, method, err)
	}
	return vals, nil
}

func decodeAggregateStats(vals []interface{}) (AggregateStats, error) {
	if len(vals) != 5 {
		return AggregateStats{}, fmt.Errorf("%w: %s: unexpected result len %d", ErrRead, methodGetStats, len(vals))
	}
	searching, ok := vals[0].(bool)
	if !ok {
		return AggregateStats{}, fmt.Errorf("%w: %s: unexpected type %T for isSearching", ErrRead, methodGetStats, vals[0])
	}
	nums, err := bigInts(methodGetStats, vals[1:])
	if err != nil {
		return AggregateStats{}, err
	}
	return AggregateStats{
		IsSearching:         searching,
		LastSearchTimestamp: nums[0],
		TotalFlashLoans:     nums[1],
		SuccessfulSwaps:     nums[2],
		FailedSwaps:         nums[3],
	}, nil
}

func decodeTokenStats(vals []interface{}) (TokenStats, error) {
	if len(vals) != 2 {
		return TokenStats{}, fmt.Errorf("%w: %s: unexpected result len %d", ErrRead, methodGetTokenStats, len(vals))
	}
	nums, err := bigInts(methodGetTokenStats, vals)
	if err != nil {
		return TokenStats{}, err
	}
	return TokenStats{TotalProfit: nums[0], Attempts: nums[1]}, nil
}

func decodeOverallStats(vals []interface{}) (OverallStats, error) {
	if len(vals) != 4 {
		return OverallStats{}, fmt.Errorf("%w: %s: unexpected result len %d", ErrRead, methodGetOverallStats, len(vals))
	}
	nums, err := bigInts(methodGetOverallStats, vals)
	if err != nil {
		return OverallStats{}, err
	}
	return OverallStats{
		TotalTrades:        nums[0],
		SuccessfulTrades:   nums[1],
		TotalProfit:        nums[2],
		LastTradeTimestamp: nums[3],
	}, nil
}

func bigInts(method string, vals []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		n, ok := v.(*big.Int)
		if !ok || n == nil {
			return nil, fmt.Errorf("%w: %s: unexpected type %T at %d", ErrRead, method, v, i)
		}
		out[i] = new(big.Int).Set(n)
	}
	return out, nil
}

// Subscribe opens a log subscription for one event kind. Decoding happens
// here so consumers only ever see typed events. Requires a websocket/IPC RPC.
func (c *EthClient) Subscribe(ctx context.Context, kind EventKind, out chan<- Event) (ethereum.Subscription, error) {
	id, ok := c.decoder.EventID(kind)
	if !ok {
		return nil, fmt.Errorf("event %s not declared in contract abi", kind)
	}
	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{id}},
	}
	logs := make(chan types.Log, 256)
	sub, err := c.rpc.SubscribeFilterLogs(ctx, q, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", kind, err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case <-quit:
				return nil
			case err := <-sub.Err():
				if err == nil {
					return errSubscriptionClosed
				}
				return err
			case lg := <-logs:
				ev, err := c.decoder.Decode(lg)
				if err != nil {
					log.Printf("[warn] decode %s log tx=%s idx=%d: %v", kind, lg.TxHash.Hex(), lg.Index, err)
					continue
				}
				select {
				case out <- ev:
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}
