package tokens

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultDecimals is used for display when a token is not in the registry.
const DefaultDecimals = 18

// Token identifies an ERC-20 the contract can borrow. Decimals only affect
// display formatting.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals int
}

// Label returns the symbol, or the hex address when the symbol is unknown.
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

func (t Token) String() string {
	if t.Symbol == "" {
		return t.Address.Hex()
	}
	return fmt.Sprintf("%s(%s)", t.Symbol, t.Address.Hex())
}

// Registry is a static address -> token mapping loaded once at start-up.
// Lookups are read-only, so a Registry is safe to share.
type Registry struct {
	byAddr map[common.Address]Token
	order  []common.Address
}

func NewRegistry(list []Token) (*Registry, error) {
	r := &Registry{byAddr: make(map[common.Address]Token, len(list))}
	for _, t := range list {
		if (t.Address == common.Address{}) {
			return nil, fmt.Errorf("token %q: zero address", t.Symbol)
		}
		if t.Decimals < 0 || t.Decimals > 77 {
			return nil, fmt.Errorf("token %s: invalid decimals %d", t.Address.Hex(), t.Decimals)
		}
		if _, ok := r.byAddr[t.Address]; ok {
			return nil, fmt.Errorf("token %s listed twice", t.Address.Hex())
		}
		r.byAddr[t.Address] = t
		r.order = append(r.order, t.Address)
	}
	return r, nil
}

// Well-known mainnet tokens.
var (
	WBTC = Token{Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Symbol: "WBTC", Decimals: 8}
	WETH = Token{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH", Decimals: 18}
	USDC = Token{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
)

func DefaultRegistry() *Registry {
	r, _ := NewRegistry([]Token{WBTC, WETH, USDC})
	return r
}

// Lookup returns the registered token, or a token carrying only the address
// and DefaultDecimals.
func (r *Registry) Lookup(addr common.Address) (Token, bool) {
	if r != nil {
		if t, ok := r.byAddr[addr]; ok {
			return t, true
		}
	}
	return Token{Address: addr, Decimals: DefaultDecimals}, false
}

// Tokens returns the registered tokens in registration order.
func (r *Registry) Tokens() []Token {
	if r == nil {
		return nil
	}
	out := make([]Token, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, r.byAddr[a])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// ParseList parses "addr:SYMBOL:decimals" entries separated by commas,
// semicolons or whitespace. Symbol and decimals are optional; decimals
// default to DefaultDecimals.
func ParseList(raw string) ([]Token, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\n', '\r', '\t':
			return true
		default:
			return false
		}
	})

	out := make([]Token, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(part, ":")
		if len(fields) > 3 {
			return nil, fmt.Errorf("invalid token entry %q (want addr:SYMBOL:decimals)", part)
		}
		addr := strings.TrimSpace(fields[0])
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid token address %q", addr)
		}
		t := Token{Address: common.HexToAddress(addr), Decimals: DefaultDecimals}
		if len(fields) > 1 {
			t.Symbol = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			d, err := strconv.Atoi(strings.TrimSpace(fields[2]))
			if err != nil {
				return nil, fmt.Errorf("invalid decimals in %q: %w", part, err)
			}
			t.Decimals = d
		}
		out = append(out, t)
	}
	return out, nil
}
