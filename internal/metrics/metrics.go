// Package metrics exposes run activity as prometheus collectors. Metrics
// implements observe.Sink so it can sit next to the console and journal.
package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"flasharb/internal/batch"
	"flasharb/internal/ledger"
	"flasharb/internal/observe"
	"flasharb/internal/stats"
)

type Metrics struct {
	Events            *prometheus.CounterVec
	Trades            *prometheus.CounterVec
	Anomalies         prometheus.Counter
	GasSpentWei       prometheus.Counter
	NetProfit         *prometheus.GaugeVec
	Errors            *prometheus.CounterVec
	TotalFlashLoans   prometheus.Gauge
	SuccessfulSwaps   prometheus.Gauge
	FailedSwaps       prometheus.Gauge
	Searching         prometheus.Gauge
	LastSearchSeconds prometheus.Gauge
	TotalTrades       prometheus.Gauge
	SuccessfulTrades  prometheus.Gauge
}

var _ observe.Sink = (*Metrics)(nil)

// New builds the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "contract_events_total",
			Help: "Contract events delivered by the monitor.",
		}, []string{"kind"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_total",
			Help: "Flash-loan attempts by token and outcome.",
		}, []string{"token", "outcome"}),
		Anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconciliation_anomalies_total",
			Help: "Attempts whose profit counter moved backwards.",
		}),
		GasSpentWei: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "gas_spent_wei_total",
			Help: "Gas cost of mined attempts in wei.",
		}),
		NetProfit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "net_profit_units",
			Help: "Net profit of this run per token, in the token's smallest unit.",
		}, []string{"token"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Errors by class.",
		}, []string{"class"}),
		TotalFlashLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "contract_flash_loans",
			Help: "totalFlashLoans as last polled.",
		}),
		SuccessfulSwaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "contract_successful_swaps",
			Help: "successfulSwaps as last polled.",
		}),
		FailedSwaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "contract_failed_swaps",
			Help: "failedSwaps as last polled.",
		}),
		Searching: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "contract_searching",
			Help: "1 while the contract reports it is searching.",
		}),
		LastSearchSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "contract_last_search_timestamp_seconds",
			Help: "lastSearchTimestamp as last polled.",
		}),
		TotalTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "contract_trades",
			Help: "totalTrades from getOverallStats as last polled.",
		}),
		SuccessfulTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "contract_successful_trades",
			Help: "successfulTrades from getOverallStats as last polled.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.Trades, m.Anomalies, m.GasSpentWei, m.NetProfit, m.Errors,
			m.TotalFlashLoans, m.SuccessfulSwaps, m.FailedSwaps, m.Searching, m.LastSearchSeconds,
			m.TotalTrades, m.SuccessfulTrades)
	}
	return m
}

func (m *Metrics) OnEvent(v observe.EventView) {
	m.Events.WithLabelValues(string(v.Kind)).Inc()
}

func (m *Metrics) OnStats(a stats.Aggregate) {
	m.TotalFlashLoans.Set(float64(a.TotalFlashLoans))
	m.SuccessfulSwaps.Set(float64(a.SuccessfulSwaps))
	m.FailedSwaps.Set(float64(a.FailedSwaps))
	if a.IsSearching {
		m.Searching.Set(1)
	} else {
		m.Searching.Set(0)
	}
	if !a.LastSearch.IsZero() {
		m.LastSearchSeconds.Set(float64(a.LastSearch.Unix()))
	}
}

func (m *Metrics) OnOverall(o stats.Overall) {
	m.TotalTrades.Set(float64(o.TotalTrades))
	m.SuccessfulTrades.Set(float64(o.SuccessfulTrades))
}

// OnTrade records the attempt. Amounts become float64 here, which is fine for
// dashboards; exact values live in the journal.
func (m *Metrics) OnTrade(r batch.TradeRecord) {
	label := r.Token.Label()
	m.Trades.WithLabelValues(label, string(r.Outcome)).Inc()
	if r.Anomaly {
		m.Anomalies.Inc()
	}
	if r.GasCost != nil {
		m.GasSpentWei.Add(toFloat(r.GasCost))
	}
	if r.NetProfit != nil {
		m.NetProfit.WithLabelValues(label).Add(toFloat(r.NetProfit))
	}
	if r.Err != nil {
		m.ObserveError(r.Err)
	}
}

// ObserveError counts err under its ledger error class.
func (m *Metrics) ObserveError(err error) {
	if err == nil {
		return
	}
	m.Errors.WithLabelValues(ledger.Classify(err)).Inc()
}

func toFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
