package monitor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/ledger"
	"flasharb/internal/observe"
	"flasharb/internal/tokens"
)

// Format resolves ev for display. Tokens missing from reg show as their hex
// address and are formatted with tokens.DefaultDecimals.
func Format(ev ledger.Event, reg *tokens.Registry) observe.EventView {
	meta := ev.Meta()
	v := observe.EventView{
		Kind:        ev.Kind(),
		TxHash:      meta.TxHash,
		BlockNumber: meta.BlockNumber,
		LogIndex:    meta.LogIndex,
		Removed:     meta.Removed,
	}
	name := func(a common.Address) string {
		t, _ := reg.Lookup(a)
		return t.Label()
	}
	amount := func(a common.Address, x *big.Int) string {
		t, _ := reg.Lookup(a)
		return t.Format(x)
	}
	add := func(n, val string) {
		v.Fields = append(v.Fields, observe.Field{Name: n, Value: val})
	}

	switch e := ev.(type) {
	case ledger.FlashloanInitiated:
		v.Title = "Flashloan Initiated"
		v.Time = e.Timestamp
		add("Token", name(e.Token))
		add("Amount", amount(e.Token, e.Amount))
		add("Expected Profit", amount(e.Token, e.ExpectedProfit))
	case ledger.SwapExecuted:
		v.Title = "Swap Executed"
		v.Time = e.Timestamp
		add("Router", e.Router.Hex())
		add("Token In", name(e.TokenIn))
		add("Token Out", name(e.TokenOut))
		add("Amount In", amount(e.TokenIn, e.AmountIn))
		add("Amount Out", amount(e.TokenOut, e.AmountOut))
	case ledger.ArbitrageCompleted:
		ok := e.Successful
		v.Success = &ok
		v.Time = e.Timestamp
		if ok {
			v.Title = "Arbitrage Completed Successfully"
			// The contract reports this profit in the native unit.
			add("Profit", tokens.FormatUnits(e.Profit, tokens.DefaultDecimals))
		} else {
			v.Title = "Arbitrage Failed"
		}
		add("Gas Used", e.GasUsed.String())
	case ledger.OpportunityFound:
		v.Title = "Opportunity Found"
		v.Time = e.Timestamp
		add("Token", name(e.Token))
		add("Expected Profit", amount(e.Token, e.ExpectedProfit))
	case ledger.OpportunityNotProfitable:
		v.Title = "Opportunity Below Threshold"
		v.Time = e.Timestamp
		add("Token", name(e.Token))
		add("Expected Profit", amount(e.Token, e.ExpectedProfit))
		add("Required Profit", amount(e.Token, e.RequiredProfit))
	case ledger.ArbitrageExecuted:
		ok := e.Successful
		v.Success = &ok
		v.Title = "Trade Executed"
		v.Time = e.Timestamp
		add("Trade ID", e.TradeID.String())
		add("Token0", name(e.Token0))
		add("Token1", name(e.Token1))
		add("Flash Loan Amount", amount(e.Token0, e.FlashLoanAmount))
		add("Profit", amount(e.Token0, e.Profit))
	case ledger.FlashLoanTaken:
		v.Title = "Flash Loan Taken"
		v.Time = e.Timestamp
		add("Token", name(e.Token))
		add("Amount", amount(e.Token, e.Amount))
	default:
		v.Title = string(ev.Kind())
	}
	return v
}
