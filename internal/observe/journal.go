package observe

import (
	"log"

	"flasharb/internal/batch"
	"flasharb/internal/journal"
	"flasharb/internal/stats"
)

// Journal appends every callback to the run journal. Write failures are
// logged and otherwise ignored.
type Journal struct {
	w *journal.Writer
}

func NewJournal(w *journal.Writer) *Journal {
	return &Journal{w: w}
}

func (j *Journal) append(rec journal.Record) {
	if err := j.w.Append(rec); err != nil {
		log.Printf("[warn] journal write failed: %v", err)
	}
}

func (j *Journal) OnEvent(v EventView)         { j.append(EventRecord(v)) }
func (j *Journal) OnStats(a stats.Aggregate)   { j.append(StatsRecord(a)) }
func (j *Journal) OnOverall(o stats.Overall)   { j.append(OverallRecord(o)) }
func (j *Journal) OnTrade(r batch.TradeRecord) { j.append(TradeEntry(r)) }
func (j *Journal) Summary(s *batch.Summary)    { j.append(SummaryRecord(s)) }
