// Package observe holds the sinks the monitor, poller and orchestrator report
// to. Every Sink implementation is safe for concurrent use.
package observe

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/batch"
	"flasharb/internal/ledger"
	"flasharb/internal/stats"
)

type Sink interface {
	OnEvent(EventView)
	OnStats(stats.Aggregate)
	OnOverall(stats.Overall)
	OnTrade(batch.TradeRecord)
}

// Field is one rendered line of an event, e.g. {"Amount", "1.5"}.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EventView is a contract event resolved for display: token symbols looked
// up, amounts scaled by decimals.
type EventView struct {
	Kind  ledger.EventKind
	Title string
	// Success is set for events that report an outcome.
	Success *bool
	Fields  []Field
	Time    time.Time

	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
	Removed     bool
}

// Field returns the value of the named field.
func (v EventView) Field(name string) (string, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Nop ignores everything. Embed it to implement part of Sink.
type Nop struct{}

func (Nop) OnEvent(EventView)         {}
func (Nop) OnStats(stats.Aggregate)   {}
func (Nop) OnOverall(stats.Overall)   {}
func (Nop) OnTrade(batch.TradeRecord) {}

type multi []Sink

// Multi fans out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multi) OnEvent(v EventView) {
	for _, s := range m {
		s.OnEvent(v)
	}
}

func (m multi) OnStats(a stats.Aggregate) {
	for _, s := range m {
		s.OnStats(a)
	}
}

func (m multi) OnOverall(o stats.Overall) {
	for _, s := range m {
		s.OnOverall(o)
	}
}

func (m multi) OnTrade(r batch.TradeRecord) {
	for _, s := range m {
		s.OnTrade(r)
	}
}
