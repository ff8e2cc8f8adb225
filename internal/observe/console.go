package observe

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"flasharb/internal/batch"
	"flasharb/internal/ledger"
	"flasharb/internal/stats"
	"flasharb/internal/tokens"
)

const rule = "--------------------------------"

// Console prints human readable blocks, one per callback.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	blue, cyan, green, yellow, red, magenta *color.Color
}

func NewConsole(out io.Writer, noColor bool) *Console {
	c := &Console{
		out:     out,
		blue:    color.New(color.FgBlue, color.Bold),
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen, color.Bold),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta, color.Bold),
	}
	if noColor {
		for _, col := range []*color.Color{c.blue, c.cyan, c.green, c.yellow, c.red, c.magenta} {
			col.DisableColor()
		}
	}
	return c
}

func (c *Console) heading(v EventView) *color.Color {
	switch v.Kind {
	case ledger.KindFlashloanInitiated, ledger.KindOpportunityNotProfitable:
		return c.yellow
	case ledger.KindSwapExecuted:
		return c.green
	case ledger.KindOpportunityFound:
		return c.cyan
	case ledger.KindArbitrageCompleted, ledger.KindArbitrageExecuted:
		if v.Success != nil && !*v.Success {
			return c.red
		}
		return c.green
	default:
		return c.magenta
	}
}

func (c *Console) OnEvent(v EventView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := v.Title
	if v.Removed {
		title += " (removed by reorg)"
	}
	c.heading(v).Fprintf(c.out, "\n%s:\n", title)
	for _, f := range v.Fields {
		fmt.Fprintf(c.out, "%s: %s\n", f.Name, f.Value)
	}
	if !v.Time.IsZero() {
		fmt.Fprintf(c.out, "Time: %s\n", v.Time.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(c.out, "Tx: %s (block %d)\n", v.TxHash.Hex(), v.BlockNumber)
}

func (c *Console) OnStats(a stats.Aggregate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := "Idle"
	if a.IsSearching {
		status = "Searching"
	}
	c.blue.Fprintln(c.out, "\nCurrent Stats:")
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Status: %s\n", status)
	fmt.Fprintf(c.out, "Last Search: %s\n", timeOrNever(a.LastSearch))
	fmt.Fprintf(c.out, "Total Flash Loans: %d\n", a.TotalFlashLoans)
	fmt.Fprintf(c.out, "Successful Swaps: %d\n", a.SuccessfulSwaps)
	fmt.Fprintf(c.out, "Failed Swaps: %d\n", a.FailedSwaps)
	fmt.Fprintf(c.out, "Success Rate: %s%%\n", a.SuccessRate().StringFixed(2))
}

func (c *Console) OnOverall(o stats.Overall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blue.Fprintln(c.out, "\nOverall Statistics:")
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Total Trades: %d\n", o.TotalTrades)
	fmt.Fprintf(c.out, "Successful Trades: %d\n", o.SuccessfulTrades)
	fmt.Fprintf(c.out, "Success Rate: %s%%\n", o.SuccessRate().StringFixed(2))
	fmt.Fprintf(c.out, "Total Profit: %s ETH\n", tokens.FormatUnits(o.TotalProfit, tokens.DefaultDecimals))
	fmt.Fprintf(c.out, "Last Trade: %s\n", timeOrNever(o.LastTrade))
}

func (c *Console) OnTrade(r batch.TradeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	head := fmt.Sprintf("[%d] %s amount=%s", r.Seq, r.Token.Label(), r.Token.Format(r.Amount))
	switch {
	case r.Failed():
		c.red.Fprintf(c.out, "%s %s: %v\n", head, r.Outcome, r.Err)
		if r.GasCost != nil {
			fmt.Fprintf(c.out, "    gas=%d cost=%s ETH tx=%s\n", r.GasUsed, tokens.FormatUnits(r.GasCost, tokens.DefaultDecimals), r.TxHash.Hex())
		}
		return
	case r.ProfitUnavailable:
		c.yellow.Fprintf(c.out, "%s confirmed, profit unavailable: %v\n", head, r.Err)
	case r.Anomaly:
		c.yellow.Fprintf(c.out, "%s confirmed, ANOMALY net=0 (raw delta %s)\n", head, r.Token.Format(r.RawProfitDelta))
	default:
		c.green.Fprintf(c.out, "%s confirmed net=%s gross=%s\n", head, r.Token.Format(r.NetProfit), r.Token.Format(r.GrossProfitDelta))
	}
	fmt.Fprintf(c.out, "    gas=%d cost=%s ETH tx=%s\n", r.GasUsed, tokens.FormatUnits(r.GasCost, tokens.DefaultDecimals), r.TxHash.Hex())
}

// Summary prints the batch tally. Failed and skipped are reported apart.
func (c *Console) Summary(s *batch.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blue.Fprintf(c.out, "\nBatch %s:\n", s.RunID)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Attempted: %d  Confirmed: %d  Failed: %d  Skipped: %d\n", s.Attempted, s.Confirmed, s.Failed(), s.Skipped)
	fmt.Fprintf(c.out, "Submission errors: %d  Execution errors: %d\n", s.SubmissionErrors, s.ExecutionErrors)
	if s.Anomalies > 0 || s.ProfitUnavailable > 0 {
		c.yellow.Fprintf(c.out, "Anomalies: %d  Profit unavailable: %d\n", s.Anomalies, s.ProfitUnavailable)
	}
	fmt.Fprintf(c.out, "Gas spent: %s ETH\n", tokens.FormatUnits(s.GasCost, tokens.DefaultDecimals))
	for _, tp := range s.TokenProfits() {
		fmt.Fprintf(c.out, "Net profit %s: %s\n", tp.Token.Label(), tp.Token.Format(tp.NetProfit))
	}
}

func timeOrNever(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
