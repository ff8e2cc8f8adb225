package ledger

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func TestParseABIAcceptsArtifact(t *testing.T) {
	artifact := `{"_format":"hh-sol-artifact-1","contractName":"Arbitrage","abi":` + DefaultABIJSON + `,"bytecode":"0x"}`
	parsed, err := ParseABI([]byte(artifact))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := parsed.Methods["getOverallStats"]; !ok {
		t.Fatalf("getOverallStats missing from artifact abi")
	}
	if _, ok := parsed.Events["ArbitrageCompleted"]; !ok {
		t.Fatalf("ArbitrageCompleted missing from artifact abi")
	}
}

func TestParseABIRejects(t *testing.T) {
	cases := map[string]string{
		"empty":           "   ",
		"no abi field":    `{"contractName":"Arbitrage"}`,
		"garbage":         `[{"type":`,
		"missing methods": `[{"inputs":[],"name":"getStats","outputs":[],"stateMutability":"view","type":"function"}]`,
	}
	for name, raw := range cases {
		if _, err := ParseABI([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadABI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Arbitrage.json")
	if err := os.WriteFile(path, []byte(DefaultABIJSON), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadABI(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadABI(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDecodeStatsTuples(t *testing.T) {
	parsed := mustDefaultABI(t)

	out, err := parsed.Methods["getStats"].Outputs.Pack(true, big.NewInt(1700000000), big.NewInt(3), big.NewInt(2), big.NewInt(1))
	if err != nil {
		t.Fatalf("pack getStats: %v", err)
	}
	vals, err := parsed.Unpack("getStats", out)
	if err != nil {
		t.Fatalf("unpack getStats: %v", err)
	}
	agg, err := decodeAggregateStats(vals)
	if err != nil {
		t.Fatalf("decode aggregate: %v", err)
	}
	if !agg.IsSearching || agg.TotalFlashLoans.Int64() != 3 || agg.SuccessfulSwaps.Int64() != 2 || agg.FailedSwaps.Int64() != 1 {
		t.Fatalf("aggregate mismatch: %+v", agg)
	}

	out, err = parsed.Methods["getTokenStats"].Outputs.Pack(big.NewInt(5e16), big.NewInt(4))
	if err != nil {
		t.Fatalf("pack getTokenStats: %v", err)
	}
	vals, err = parsed.Unpack("getTokenStats", out)
	if err != nil {
		t.Fatalf("unpack getTokenStats: %v", err)
	}
	ts, err := decodeTokenStats(vals)
	if err != nil {
		t.Fatalf("decode token stats: %v", err)
	}
	if ts.TotalProfit.String() != "50000000000000000" || ts.Attempts.Int64() != 4 {
		t.Fatalf("token stats mismatch: %+v", ts)
	}

	out, err = parsed.Methods["getOverallStats"].Outputs.Pack(big.NewInt(10), big.NewInt(7), big.NewInt(99), big.NewInt(1700000005))
	if err != nil {
		t.Fatalf("pack getOverallStats: %v", err)
	}
	vals, err = parsed.Unpack("getOverallStats", out)
	if err != nil {
		t.Fatalf("unpack getOverallStats: %v", err)
	}
	ov, err := decodeOverallStats(vals)
	if err != nil {
		t.Fatalf("decode overall: %v", err)
	}
	if ov.TotalTrades.Int64() != 10 || ov.SuccessfulTrades.Int64() != 7 || ov.TotalProfit.Int64() != 99 {
		t.Fatalf("overall mismatch: %+v", ov)
	}
}

func TestDecodeStatsRejectsShape(t *testing.T) {
	if _, err := decodeAggregateStats([]interface{}{true}); !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead for short tuple, got %v", err)
	}
	if _, err := decodeAggregateStats([]interface{}{"x", big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1)}); !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead for bad bool, got %v", err)
	}
	if _, err := decodeTokenStats([]interface{}{big.NewInt(1), uint64(2)}); !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead for bad uint, got %v", err)
	}
}

func TestBumpGasPrice(t *testing.T) {
	if got := BumpGasPrice(big.NewInt(1_000_000_000), 20); got.Int64() != 1_200_000_000 {
		t.Fatalf("bump mismatch: got %s want 1200000000", got)
	}
	if got := BumpGasPrice(big.NewInt(7), 20); got.Int64() != 8 {
		t.Fatalf("bump floor mismatch: got %s want 8", got)
	}
	if BumpGasPrice(nil, 20) != nil {
		t.Fatalf("expected nil for nil price")
	}
}

func TestConfirmationFromReceipt(t *testing.T) {
	parsed := mustDefaultABI(t)
	d := mustDecoder(t)
	contract := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	own := buildLog(t, parsed, "ArbitrageCompleted", nil, big.NewInt(2e16), big.NewInt(210000), true, big.NewInt(1700000002))
	own.Address = contract
	foreign := own
	foreign.Address = common.HexToAddress("0x1111111111111111111111111111111111111111")
	unknown := types.Log{Address: contract, Topics: []common.Hash{common.HexToHash("0x01")}}

	receipt := &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		TxHash:            common.HexToHash("0xcc"),
		BlockNumber:       big.NewInt(77),
		GasUsed:           210000,
		EffectiveGasPrice: big.NewInt(5_000_000_000),
		Logs:              []*types.Log{&own, &foreign, &unknown, nil},
	}
	conf := confirmationFromReceipt(receipt, nil, contract, d)
	if !conf.Succeeded() || conf.BlockNumber != 77 || conf.GasUsed != 210000 {
		t.Fatalf("confirmation mismatch: %+v", conf)
	}
	if conf.EffectiveGasPrice.Int64() != 5_000_000_000 {
		t.Fatalf("gas price mismatch: got %s", conf.EffectiveGasPrice)
	}
	if len(conf.Events) != 1 || conf.Events[0].Kind() != KindArbitrageCompleted {
		t.Fatalf("events mismatch: %+v", conf.Events)
	}

	receipt.Status = types.ReceiptStatusFailed
	receipt.EffectiveGasPrice = nil
	tx := types.NewTx(&types.LegacyTx{GasPrice: big.NewInt(3_000_000_000)})
	conf = confirmationFromReceipt(receipt, tx, contract, d)
	if conf.Succeeded() {
		t.Fatalf("expected failed confirmation")
	}
	if conf.EffectiveGasPrice.Int64() != 3_000_000_000 {
		t.Fatalf("fallback gas price mismatch: got %s", conf.EffectiveGasPrice)
	}
}
