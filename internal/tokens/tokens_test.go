package tokens

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFormatUnits(t *testing.T) {
	t.Parallel()

	e18, _ := new(big.Int).SetString("1000000000000000000", 10)
	cases := []struct {
		name     string
		amount   *big.Int
		decimals int
		want     string
	}{
		{"one_weth", e18, 18, "1"},
		{"usdc", big.NewInt(1_500_000), 6, "1.5"},
		{"wbtc_sats", big.NewInt(1), 8, "0.00000001"},
		{"zero", big.NewInt(0), 18, "0"},
		{"no_decimals", big.NewInt(42), 0, "42"},
		{"nil", nil, 18, "n/a"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatUnits(tc.amount, tc.decimals); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestParseUnits(t *testing.T) {
	t.Parallel()

	got, err := ParseUnits("1", 18)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.String() != "1000000000000000000" {
		t.Fatalf("got %s", got)
	}

	got, err = ParseUnits("0.25", 6)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.String() != "250000" {
		t.Fatalf("got %s", got)
	}

	if _, err := ParseUnits("0.0000001", 6); err == nil {
		t.Fatalf("expected precision error")
	}
	if _, err := ParseUnits("-1", 18); err == nil {
		t.Fatalf("expected negative error")
	}
	if _, err := ParseUnits("abc", 18); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseBaseUnits(t *testing.T) {
	t.Parallel()

	got, err := ParseBaseUnits("20000000000000000")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.String() != "20000000000000000" {
		t.Fatalf("got %s", got)
	}
	if _, err := ParseBaseUnits("1.5"); err == nil {
		t.Fatalf("expected error for fractional input")
	}
	if _, err := ParseBaseUnits("-5"); err == nil {
		t.Fatalf("expected error for negative input")
	}
}

func TestParseList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got, err := ParseList("  ")
		if err != nil || got != nil {
			t.Fatalf("expected nil,nil got %#v, %v", got, err)
		}
	})

	t.Run("full_and_partial", func(t *testing.T) {
		got, err := ParseList("0x0000000000000000000000000000000000000001:AAA:6, 0x0000000000000000000000000000000000000002")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 tokens, got %d", len(got))
		}
		if got[0].Symbol != "AAA" || got[0].Decimals != 6 {
			t.Fatalf("first token mismatch: %#v", got[0])
		}
		if got[1].Symbol != "" || got[1].Decimals != DefaultDecimals {
			t.Fatalf("second token mismatch: %#v", got[1])
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseList("0xnope:X:1"); err == nil {
			t.Fatalf("expected err")
		}
		if _, err := ParseList("0x0000000000000000000000000000000000000001:X:y"); err == nil {
			t.Fatalf("expected err")
		}
	})
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	if reg.Len() != 3 {
		t.Fatalf("default registry size: got %d want 3", reg.Len())
	}

	tok, ok := reg.Lookup(WBTC.Address)
	if !ok || tok.Symbol != "WBTC" || tok.Decimals != 8 {
		t.Fatalf("WBTC lookup mismatch: %#v ok=%v", tok, ok)
	}

	unknown := common.HexToAddress("0x1234")
	tok, ok = reg.Lookup(unknown)
	if ok {
		t.Fatalf("unexpected hit for unknown token")
	}
	if tok.Decimals != DefaultDecimals || tok.Label() != unknown.Hex() {
		t.Fatalf("unknown token fallback mismatch: %#v", tok)
	}

	if _, err := NewRegistry([]Token{WETH, WETH}); err == nil {
		t.Fatalf("expected duplicate error")
	}
}
