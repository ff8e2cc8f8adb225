package observe

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/batch"
	"flasharb/internal/journal"
	"flasharb/internal/stats"
)

// EventRecord, StatsRecord, OverallRecord, TradeEntry and SummaryRecord map
// sink payloads onto the flat journal line, which is also the websocket wire
// shape.

func EventRecord(v EventView) journal.Record {
	rec := journal.Record{
		Event:   "event",
		Kind:    string(v.Kind),
		TxHash:  v.TxHash.Hex(),
		Block:   v.BlockNumber,
		LogIdx:  v.LogIndex,
		Removed: v.Removed,
		Fields:  make(map[string]string, len(v.Fields)+1),
	}
	for _, f := range v.Fields {
		rec.Fields[f.Name] = f.Value
	}
	if v.Success != nil {
		rec.Ok = *v.Success
		rec.Fields["Successful"] = strconv.FormatBool(*v.Success)
	}
	if !v.Time.IsZero() {
		rec.Fields["Time"] = v.Time.UTC().Format(time.RFC3339)
	}
	return rec
}

func StatsRecord(a stats.Aggregate) journal.Record {
	s := map[string]string{
		"is_searching":      strconv.FormatBool(a.IsSearching),
		"total_flash_loans": strconv.FormatUint(a.TotalFlashLoans, 10),
		"successful_swaps":  strconv.FormatUint(a.SuccessfulSwaps, 10),
		"failed_swaps":      strconv.FormatUint(a.FailedSwaps, 10),
		"success_rate_pct":  a.SuccessRate().StringFixed(2),
	}
	if !a.LastSearch.IsZero() {
		s["last_search"] = a.LastSearch.UTC().Format(time.RFC3339)
	}
	return journal.Record{TsMs: tsMs(a.CapturedAt), Event: "stats", Stats: s}
}

func OverallRecord(o stats.Overall) journal.Record {
	s := map[string]string{
		"total_trades":      strconv.FormatUint(o.TotalTrades, 10),
		"successful_trades": strconv.FormatUint(o.SuccessfulTrades, 10),
		"total_profit":      bigString(o.TotalProfit),
		"success_rate_pct":  o.SuccessRate().StringFixed(2),
	}
	if !o.LastTrade.IsZero() {
		s["last_trade"] = o.LastTrade.UTC().Format(time.RFC3339)
	}
	return journal.Record{TsMs: tsMs(o.CapturedAt), Event: "overall", Stats: s}
}

func TradeEntry(r batch.TradeRecord) journal.Record {
	rec := journal.Record{
		Event:             "trade",
		RunID:             r.RunID,
		Seq:               r.Seq,
		Token:             r.Token.Address.Hex(),
		Symbol:            r.Token.Symbol,
		Amount:            bigString(r.Amount),
		Outcome:           string(r.Outcome),
		Ok:                r.Success,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: bigString(r.EffectiveGasPrice),
		GasCost:           bigString(r.GasCost),
		GrossProfit:       bigString(r.GrossProfitDelta),
		RawProfit:         bigString(r.RawProfitDelta),
		NetProfit:         bigString(r.NetProfit),
		Anomaly:           r.Anomaly,
		ProfitUnavailable: r.ProfitUnavailable,
		MeetsThreshold:    r.MeetsThreshold,
	}
	if r.TxHash != (common.Hash{}) {
		rec.TxHash = r.TxHash.Hex()
	}
	if r.Err != nil {
		rec.Err = r.Err.Error()
	}
	return rec
}

func SummaryRecord(s *batch.Summary) journal.Record {
	st := map[string]string{
		"attempted":          strconv.Itoa(s.Attempted),
		"confirmed":          strconv.Itoa(s.Confirmed),
		"submission_errors":  strconv.Itoa(s.SubmissionErrors),
		"execution_errors":   strconv.Itoa(s.ExecutionErrors),
		"anomalies":          strconv.Itoa(s.Anomalies),
		"profit_unavailable": strconv.Itoa(s.ProfitUnavailable),
		"meeting_threshold":  strconv.Itoa(s.MeetingThreshold),
		"skipped":            strconv.Itoa(s.Skipped),
		"gas_cost_wei":       bigString(s.GasCost),
	}
	for _, tp := range s.TokenProfits() {
		st["net_profit_"+tp.Token.Label()] = tp.NetProfit.String()
	}
	return journal.Record{Event: "summary", RunID: s.RunID, Stats: st}
}

func bigString(x *big.Int) string {
	if x == nil {
		return ""
	}
	return x.String()
}

func tsMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
