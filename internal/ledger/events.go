package ledger

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type EventKind string

const (
	KindFlashloanInitiated       EventKind = "FlashloanInitiated"
	KindSwapExecuted             EventKind = "SwapExecuted"
	KindArbitrageCompleted       EventKind = "ArbitrageCompleted"
	KindOpportunityFound         EventKind = "OpportunityFound"
	KindOpportunityNotProfitable EventKind = "OpportunityNotProfitable"

	// Emitted by the earlier revision of the contract.
	KindArbitrageExecuted EventKind = "ArbitrageExecuted"
	KindFlashLoanTaken    EventKind = "FlashLoanTaken"
)

// DefaultKinds are the events of the current contract revision.
var DefaultKinds = []EventKind{
	KindFlashloanInitiated,
	KindSwapExecuted,
	KindArbitrageCompleted,
	KindOpportunityFound,
	KindOpportunityNotProfitable,
}

// AllKinds adds the legacy events.
var AllKinds = append(append([]EventKind(nil), DefaultKinds...), KindArbitrageExecuted, KindFlashLoanTaken)

// argTypes lists the expected argument types per event in declaration order.
var argTypes = map[EventKind][]string{
	KindFlashloanInitiated:       {"address", "uint256", "uint256", "uint256"},
	KindSwapExecuted:             {"address", "address", "address", "uint256", "uint256", "uint256"},
	KindArbitrageCompleted:       {"uint256", "uint256", "bool", "uint256"},
	KindOpportunityFound:         {"address", "uint256", "uint256"},
	KindOpportunityNotProfitable: {"address", "uint256", "uint256", "uint256"},
	KindArbitrageExecuted:        {"uint256", "address", "address", "uint256", "uint256", "bool", "uint256"},
	KindFlashLoanTaken:           {"address", "uint256", "uint256"},
}

// ParseEventKinds parses a comma separated list of event names
// (case-insensitive). Empty input yields DefaultKinds; "all" yields AllKinds.
func ParseEventKinds(raw string) ([]EventKind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]EventKind(nil), DefaultKinds...), nil
	}
	if strings.EqualFold(raw, "all") {
		return append([]EventKind(nil), AllKinds...), nil
	}
	var out []EventKind
	seen := make(map[EventKind]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		var match EventKind
		for _, k := range AllKinds {
			if strings.EqualFold(string(k), name) {
				match = k
				break
			}
		}
		if match == "" {
			return nil, fmt.Errorf("unknown event %q", name)
		}
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		out = append(out, match)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no events in %q", raw)
	}
	return out, nil
}

// Event is one decoded contract event. The concrete types below are the only
// implementations.
type Event interface {
	Kind() EventKind
	Meta() LogMeta
}

// LogMeta locates the log an event was decoded from.
type LogMeta struct {
	TxHash      common.Hash
	BlockHash   common.Hash
	BlockNumber uint64
	LogIndex    uint
	Removed     bool
}

func (m LogMeta) Meta() LogMeta { return m }

type FlashloanInitiated struct {
	LogMeta
	Token          common.Address
	Amount         *big.Int
	Timestamp      time.Time
	ExpectedProfit *big.Int
}

type SwapExecuted struct {
	LogMeta
	Router    common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	Timestamp time.Time
}

type ArbitrageCompleted struct {
	LogMeta
	Profit     *big.Int
	GasUsed    *big.Int
	Successful bool
	Timestamp  time.Time
}

type OpportunityFound struct {
	LogMeta
	Token          common.Address
	ExpectedProfit *big.Int
	Timestamp      time.Time
}

type OpportunityNotProfitable struct {
	LogMeta
	Token          common.Address
	ExpectedProfit *big.Int
	RequiredProfit *big.Int
	Timestamp      time.Time
}

type ArbitrageExecuted struct {
	LogMeta
	TradeID         *big.Int
	Token0          common.Address
	Token1          common.Address
	FlashLoanAmount *big.Int
	Profit          *big.Int
	Successful      bool
	Timestamp       time.Time
}

type FlashLoanTaken struct {
	LogMeta
	Token     common.Address
	Amount    *big.Int
	Timestamp time.Time
}

func (FlashloanInitiated) Kind() EventKind       { return KindFlashloanInitiated }
func (SwapExecuted) Kind() EventKind             { return KindSwapExecuted }
func (ArbitrageCompleted) Kind() EventKind       { return KindArbitrageCompleted }
func (OpportunityFound) Kind() EventKind         { return KindOpportunityFound }
func (OpportunityNotProfitable) Kind() EventKind { return KindOpportunityNotProfitable }
func (ArbitrageExecuted) Kind() EventKind        { return KindArbitrageExecuted }
func (FlashLoanTaken) Kind() EventKind           { return KindFlashLoanTaken }

// Decoder turns raw contract logs into typed events. Argument layouts are
// checked once against the ABI when the decoder is built, so Decode never
// has to guess at tuple shapes.
type Decoder struct {
	byID   map[common.Hash]abi.Event
	byKind map[EventKind]abi.Event
}

func NewDecoder(contractABI abi.ABI) (*Decoder, error) {
	d := &Decoder{
		byID:   make(map[common.Hash]abi.Event),
		byKind: make(map[EventKind]abi.Event),
	}
	for _, kind := range AllKinds {
		ev, ok := contractABI.Events[string(kind)]
		if !ok {
			continue
		}
		want := argTypes[kind]
		if len(ev.Inputs) != len(want) {
			return nil, fmt.Errorf("event %s: expected %d args, abi has %d", kind, len(want), len(ev.Inputs))
		}
		for i, in := range ev.Inputs {
			if got := in.Type.String(); got != want[i] {
				return nil, fmt.Errorf("event %s arg %d (%s): expected %s, abi has %s", kind, i, in.Name, want[i], got)
			}
		}
		d.byID[ev.ID] = ev
		d.byKind[kind] = ev
	}
	if len(d.byKind) == 0 {
		return nil, fmt.Errorf("abi declares none of the known events")
	}
	return d, nil
}

// Kinds returns the supported kinds in a stable order.
func (d *Decoder) Kinds() []EventKind {
	out := make([]EventKind, 0, len(d.byKind))
	for k := range d.byKind {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d *Decoder) EventID(kind EventKind) (common.Hash, bool) {
	ev, ok := d.byKind[kind]
	if !ok {
		return common.Hash{}, false
	}
	return ev.ID, true
}

// Known reports whether the log's first topic is one of the decoder's events.
func (d *Decoder) Known(lg types.Log) bool {
	if len(lg.Topics) == 0 {
		return false
	}
	_, ok := d.byID[lg.Topics[0]]
	return ok
}

func (d *Decoder) Decode(lg types.Log) (Event, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("log without topics (tx=%s idx=%d)", lg.TxHash.Hex(), lg.Index)
	}
	ev, ok := d.byID[lg.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("unknown event topic %s", lg.Topics[0].Hex())
	}

	vals, err := argValues(ev, lg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Name, err)
	}
	meta := LogMeta{
		TxHash:      lg.TxHash,
		BlockHash:   lg.BlockHash,
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
		Removed:     lg.Removed,
	}

	switch EventKind(ev.Name) {
	case KindFlashloanInitiated:
		return FlashloanInitiated{
			LogMeta:        meta,
			Token:          asAddress(vals[0]),
			Amount:         asUint(vals[1]),
			Timestamp:      UnixTime(asUint(vals[2])),
			ExpectedProfit: asUint(vals[3]),
		}, nil
	case KindSwapExecuted:
		return SwapExecuted{
			LogMeta:   meta,
			Router:    asAddress(vals[0]),
			TokenIn:   asAddress(vals[1]),
			TokenOut:  asAddress(vals[2]),
			AmountIn:  asUint(vals[3]),
			AmountOut: asUint(vals[4]),
			Timestamp: UnixTime(asUint(vals[5])),
		}, nil
	case KindArbitrageCompleted:
		return ArbitrageCompleted{
			LogMeta:    meta,
			Profit:     asUint(vals[0]),
			GasUsed:    asUint(vals[1]),
			Successful: asBool(vals[2]),
			Timestamp:  UnixTime(asUint(vals[3])),
		}, nil
	case KindOpportunityFound:
		return OpportunityFound{
			LogMeta:        meta,
			Token:          asAddress(vals[0]),
			ExpectedProfit: asUint(vals[1]),
			Timestamp:      UnixTime(asUint(vals[2])),
		}, nil
	case KindOpportunityNotProfitable:
		return OpportunityNotProfitable{
			LogMeta:        meta,
			Token:          asAddress(vals[0]),
			ExpectedProfit: asUint(vals[1]),
			RequiredProfit: asUint(vals[2]),
			Timestamp:      UnixTime(asUint(vals[3])),
		}, nil
	case KindArbitrageExecuted:
		return ArbitrageExecuted{
			LogMeta:         meta,
			TradeID:         asUint(vals[0]),
			Token0:          asAddress(vals[1]),
			Token1:          asAddress(vals[2]),
			FlashLoanAmount: asUint(vals[3]),
			Profit:          asUint(vals[4]),
			Successful:      asBool(vals[5]),
			Timestamp:       UnixTime(asUint(vals[6])),
		}, nil
	case KindFlashLoanTaken:
		return FlashLoanTaken{
			LogMeta:   meta,
			Token:     asAddress(vals[0]),
			Amount:    asUint(vals[1]),
			Timestamp: UnixTime(asUint(vals[2])),
		}, nil
	default:
		return nil, fmt.Errorf("unhandled event %s", ev.Name)
	}
}

// argValues returns the event arguments in declaration order, pulling indexed
// ones from the topics and the rest from the data section.
func argValues(ev abi.Event, lg types.Log) ([]any, error) {
	nonIndexed, err := ev.Inputs.Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	indexed := len(ev.Inputs) - len(ev.Inputs.NonIndexed())
	if len(lg.Topics)-1 < indexed {
		return nil, fmt.Errorf("unexpected topics len=%d (want %d)", len(lg.Topics), indexed+1)
	}

	out := make([]any, len(ev.Inputs))
	ti, ni := 1, 0
	for i, in := range ev.Inputs {
		if in.Indexed {
			out[i] = topicValue(in.Type, lg.Topics[ti])
			ti++
			continue
		}
		if ni >= len(nonIndexed) {
			return nil, fmt.Errorf("data has %d values, need more", len(nonIndexed))
		}
		out[i] = nonIndexed[ni]
		ni++
	}
	return out, nil
}

func topicValue(t abi.Type, h common.Hash) any {
	switch t.T {
	case abi.AddressTy:
		return common.BytesToAddress(h.Bytes())
	case abi.BoolTy:
		return h[common.HashLength-1] == 1
	default:
		return new(big.Int).SetBytes(h.Bytes())
	}
}

func asAddress(v any) common.Address {
	a, _ := v.(common.Address)
	return a
}

func asUint(v any) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
