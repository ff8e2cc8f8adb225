package main

import (
	"bufio"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/config"
	"flasharb/internal/journal"
	"flasharb/internal/tokens"
)

func readJournal(t *testing.T, path string) []journal.Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var out []journal.Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec journal.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode journal line %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan journal: %v", err)
	}
	return out
}

func TestRunFailureStillWritesShutdown(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "run.jsonl")
	cfg := config.Config{
		Mode:     config.ModeBatch,
		RPCURL:   "ws://127.0.0.1:1",
		Contract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		ABIPath:  filepath.Join(dir, "missing-abi.json"),
		Registry: tokens.DefaultRegistry(),
		Worklist: []tokens.Token{tokens.WETH},
		Amount:   big.NewInt(1),
		OutFile:  out,
		NoColor:  true,
	}

	err := run(cfg)
	if err == nil {
		t.Fatalf("expected run to fail on a missing abi file")
	}

	recs := readJournal(t, out)
	if len(recs) != 2 {
		t.Fatalf("journal line count mismatch: got %d want 2", len(recs))
	}
	if recs[0].Event != "start" {
		t.Fatalf("first record mismatch: got %s want start", recs[0].Event)
	}
	last := recs[1]
	if last.Event != "shutdown" || last.Ok {
		t.Fatalf("shutdown record mismatch: %+v", last)
	}
	if !strings.Contains(last.Fields["err"], "missing-abi.json") {
		t.Fatalf("shutdown record should carry the cause, got %q", last.Fields["err"])
	}
	if last.RunID == "" || last.RunID != recs[0].RunID {
		t.Fatalf("run id mismatch: start=%q shutdown=%q", recs[0].RunID, last.RunID)
	}
}
