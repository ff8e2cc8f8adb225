// Package journal appends the current run's records to a JSONL file. It is
// an audit trail for operators tailing the file, not a store: nothing is
// read back.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Record is one journal line. Amounts are decimal strings in the token's
// smallest unit so they survive JSON without precision loss.
type Record struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`
	RunID string `json:"run_id,omitempty"`

	Seq     int    `json:"seq,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Token   string `json:"token,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
	Amount  string `json:"amount,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`
	Block   uint64 `json:"block,omitempty"`
	LogIdx  uint   `json:"log_index,omitempty"`
	Removed bool   `json:"removed,omitempty"`

	Outcome           string `json:"outcome,omitempty"`
	Ok                bool   `json:"ok,omitempty"`
	GasUsed           uint64 `json:"gas_used,omitempty"`
	EffectiveGasPrice string `json:"effective_gas_price,omitempty"`
	GasCost           string `json:"gas_cost,omitempty"`
	GrossProfit       string `json:"gross_profit,omitempty"`
	RawProfit         string `json:"raw_profit,omitempty"`
	NetProfit         string `json:"net_profit,omitempty"`
	Anomaly           bool   `json:"anomaly,omitempty"`
	ProfitUnavailable bool   `json:"profit_unavailable,omitempty"`
	MeetsThreshold    bool   `json:"meets_threshold,omitempty"`

	Fields map[string]string `json:"fields,omitempty"`
	Stats  map[string]string `json:"stats,omitempty"`

	Err string `json:"err,omitempty"`
}

// Writer is safe for concurrent use. A nil *Writer discards everything.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
	now  func() time.Time
}

// New returns a writer appending to path, or nil when path is blank. The file
// is created on first write.
func New(path string) *Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Writer{path: path, now: time.Now}
}

func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

func (w *Writer) openLocked() error {
	if w.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// Append writes rec as one line and flushes so tailers see it immediately.
// A zero TsMs is stamped with the current time.
func (w *Writer) Append(rec Record) error {
	if w == nil {
		return nil
	}
	if rec.Event == "" {
		return fmt.Errorf("journal: record without event")
	}
	if rec.TsMs == 0 {
		rec.TsMs = w.now().UnixMilli()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.openLocked(); err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		firstErr = w.w.Flush()
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.w = nil
	w.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
