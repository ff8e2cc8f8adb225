package tokens

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUnits renders an amount in smallest units as a decimal string with
// the given number of decimals, e.g. (1500000, 6) -> "1.5". Exact; trailing
// zeros are trimmed.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "n/a"
	}
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	return decimal.NewFromBigInt(amount, int32(-decimals)).String()
}

// Format renders amount using the token's decimals.
func (t Token) Format(amount *big.Int) string {
	return FormatUnits(amount, t.Decimals)
}

// ParseUnits converts a human amount ("1.5") into smallest units. The value
// must be non-negative and representable exactly at the given precision.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if decimals < 0 {
		return nil, fmt.Errorf("invalid decimals %d", decimals)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseBaseUnits parses a non-negative base-10 integer in smallest units.
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	return v, nil
}
