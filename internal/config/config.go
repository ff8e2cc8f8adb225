// Package config turns flags and environment variables into a validated
// Config. Flags win over environment variables; nothing is read after Load
// returns.
package config

import (
	"crypto/ecdsa"
	"flag"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"flasharb/internal/ethutil"
	"flasharb/internal/ledger"
	"flasharb/internal/tokens"
)

type Mode string

const (
	ModeBatch   Mode = "batch"
	ModeMonitor Mode = "monitor"
	ModeAll     Mode = "all"
	// ModeStats is the read-only mode of the flashstats tool.
	ModeStats Mode = "stats"
)

func (m Mode) Submits() bool  { return m == ModeBatch || m == ModeAll }
func (m Mode) Monitors() bool { return m == ModeMonitor || m == ModeAll }

const (
	DefaultPollInterval   = 60 * time.Second
	DefaultConfirmTimeout = 3 * time.Minute
	DefaultAmount         = "1"
	DefaultAmountDecimals = 18
)

type Config struct {
	Mode Mode

	RPCURL   string
	Contract common.Address
	ChainID  *big.Int
	ABIPath  string

	PrivateKey *ecdsa.PrivateKey
	Sender     common.Address

	Registry *tokens.Registry
	Worklist []tokens.Token
	Amount   *big.Int

	PollInterval    time.Duration
	PollOverall     bool
	ProfitThreshold *big.Int
	ConfirmTimeout  time.Duration
	GasLimit        uint64
	GasPriceBumpPct int64
	Events          []ledger.EventKind

	OutFile  string
	HTTPAddr string
	NoColor  bool
}

// Load parses args (without the program name) with env fallbacks from
// getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	return load("flasharb", args, getenv, "")
}

// LoadStats is Load for the read-only stats tool: MODE is ignored and no
// signing key is needed.
func LoadStats(args []string, getenv func(string) string) (Config, error) {
	return load("flashstats", args, getenv, ModeStats)
}

type rawFlags struct {
	mode, rpcURL, contract, chainID, abiPath, privateKey string
	tokens, worklist                                     string
	amount, amountDecimals, amountWei                    string
	pollInterval, pollOverall, profitThreshold           string
	confirmTimeout, gasLimit, gasBump, events            string
	outFile, httpAddr, noColor                           string
}

func load(name string, args []string, getenv func(string) string, forced Mode) (Config, error) {
	var f rawFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.mode, "mode", "", "Run mode: batch, monitor or all (or MODE; default all)")
	fs.StringVar(&f.rpcURL, "rpc", "", "Node RPC URL, ws(s):// for monitoring (or RPC_URL)")
	fs.StringVar(&f.contract, "contract", "", "Arbitrage contract address (or CONTRACT_ADDRESS)")
	fs.StringVar(&f.chainID, "chain-id", "", "Chain id (or CHAIN_ID; default: ask the node)")
	fs.StringVar(&f.abiPath, "abi", "", "ABI or hardhat artifact JSON (or ABI_PATH; default: built-in)")
	fs.StringVar(&f.privateKey, "private-key", "", "Signer private key hex (or PRIVATE_KEY)")
	fs.StringVar(&f.tokens, "tokens", "", "Token table addr:SYMBOL:decimals,... (or TOKENS; default WBTC/WETH/USDC)")
	fs.StringVar(&f.worklist, "worklist", "", "Token addresses to attempt, in order (or WORKLIST; default: every token in the table)")
	fs.StringVar(&f.amount, "amount", "", "Amount per attempt in whole units (or AMOUNT; default 1)")
	fs.StringVar(&f.amountDecimals, "amount-decimals", "", "Decimals applied to --amount (or AMOUNT_DECIMALS; default 18)")
	fs.StringVar(&f.amountWei, "amount-wei", "", "Amount per attempt in smallest units; overrides --amount (or AMOUNT_WEI)")
	fs.StringVar(&f.pollInterval, "poll-interval", "", "Stats polling interval (or POLL_INTERVAL; default 60s)")
	fs.StringVar(&f.pollOverall, "poll-overall", "", "Also poll getOverallStats (or POLL_OVERALL)")
	fs.StringVar(&f.profitThreshold, "profit-threshold", "", "Net profit threshold in smallest units (or PROFIT_THRESHOLD)")
	fs.StringVar(&f.confirmTimeout, "confirm-timeout", "", "Max wait for a receipt (or CONFIRM_TIMEOUT; default 3m)")
	fs.StringVar(&f.gasLimit, "gas-limit", "", "Fixed gas limit, 0 = estimate (or GAS_LIMIT)")
	fs.StringVar(&f.gasBump, "gas-price-bump-pct", "", "Raise the suggested gas price by this percent (or GAS_PRICE_BUMP_PCT)")
	fs.StringVar(&f.events, "events", "", "Events to monitor, comma separated or \"all\" (or EVENTS)")
	fs.StringVar(&f.outFile, "out", "", "JSONL journal path (or OUT_FILE)")
	fs.StringVar(&f.httpAddr, "http", "", "Listen address for /metrics, /ws and /healthz (or HTTP_ADDR)")
	fs.StringVar(&f.noColor, "no-color", "", "Disable colour output (or NO_COLOR)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	pick := func(flagVal string, envKeys ...string) string {
		if v := strings.TrimSpace(flagVal); v != "" {
			return v
		}
		for _, k := range envKeys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}

	var cfg Config
	var err error

	cfg.Mode = forced
	if cfg.Mode == "" {
		cfg.Mode, err = parseMode(pick(f.mode, "MODE"))
		if err != nil {
			return Config{}, err
		}
	}

	cfg.RPCURL = pick(f.rpcURL, "RPC_URL", "RPC_WS_URL")
	if err := validateRPCURL(cfg.RPCURL, cfg.Mode.Monitors()); err != nil {
		return Config{}, err
	}

	rawContract := pick(f.contract, "CONTRACT_ADDRESS", "ARBITRAGE_ADDRESS")
	if rawContract == "" {
		return Config{}, fmt.Errorf("contract address required (set --contract or CONTRACT_ADDRESS)")
	}
	if cfg.Contract, err = ethutil.ParseAddress(rawContract); err != nil {
		return Config{}, fmt.Errorf("invalid contract address: %w", err)
	}

	if raw := pick(f.chainID, "CHAIN_ID"); raw != "" {
		id, ok := new(big.Int).SetString(raw, 10)
		if !ok || id.Sign() <= 0 {
			return Config{}, fmt.Errorf("invalid CHAIN_ID %q", raw)
		}
		cfg.ChainID = id
	}
	cfg.ABIPath = pick(f.abiPath, "ABI_PATH")

	if cfg.Mode.Submits() {
		pk := pick(f.privateKey, "PRIVATE_KEY")
		if pk == "" {
			return Config{}, fmt.Errorf("private key required for mode %s (set --private-key or PRIVATE_KEY)", cfg.Mode)
		}
		if cfg.PrivateKey, cfg.Sender, err = ethutil.ParsePrivateKey(pk); err != nil {
			return Config{}, err
		}
	}

	if raw := pick(f.tokens, "TOKENS"); raw != "" {
		list, err := tokens.ParseList(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOKENS: %w", err)
		}
		if cfg.Registry, err = tokens.NewRegistry(list); err != nil {
			return Config{}, fmt.Errorf("invalid TOKENS: %w", err)
		}
	} else {
		cfg.Registry = tokens.DefaultRegistry()
	}

	if raw := pick(f.worklist, "WORKLIST"); raw != "" {
		addrs, err := ethutil.ParseAddressList(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid WORKLIST: %w", err)
		}
		for _, a := range addrs {
			t, _ := cfg.Registry.Lookup(a)
			cfg.Worklist = append(cfg.Worklist, t)
		}
	} else {
		cfg.Worklist = cfg.Registry.Tokens()
	}

	if raw := pick(f.amountWei, "AMOUNT_WEI"); raw != "" {
		if cfg.Amount, err = tokens.ParseBaseUnits(raw); err != nil {
			return Config{}, fmt.Errorf("invalid AMOUNT_WEI: %w", err)
		}
	} else {
		decimals := DefaultAmountDecimals
		if raw := pick(f.amountDecimals, "AMOUNT_DECIMALS"); raw != "" {
			if decimals, err = strconv.Atoi(raw); err != nil || decimals < 0 || decimals > 77 {
				return Config{}, fmt.Errorf("invalid AMOUNT_DECIMALS %q", raw)
			}
		}
		raw := pick(f.amount, "AMOUNT")
		if raw == "" {
			raw = DefaultAmount
		}
		if cfg.Amount, err = tokens.ParseUnits(raw, decimals); err != nil {
			return Config{}, fmt.Errorf("invalid AMOUNT: %w", err)
		}
	}

	if cfg.PollInterval, err = durationOr(pick(f.pollInterval, "POLL_INTERVAL"), DefaultPollInterval); err != nil {
		return Config{}, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if cfg.ConfirmTimeout, err = durationOr(pick(f.confirmTimeout, "CONFIRM_TIMEOUT"), DefaultConfirmTimeout); err != nil {
		return Config{}, fmt.Errorf("invalid CONFIRM_TIMEOUT: %w", err)
	}
	if cfg.ConfirmTimeout <= 0 {
		return Config{}, fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	if cfg.PollOverall, err = boolOr(pick(f.pollOverall, "POLL_OVERALL"), false); err != nil {
		return Config{}, fmt.Errorf("invalid POLL_OVERALL: %w", err)
	}

	if raw := pick(f.profitThreshold, "PROFIT_THRESHOLD"); raw != "" {
		if cfg.ProfitThreshold, err = tokens.ParseBaseUnits(raw); err != nil {
			return Config{}, fmt.Errorf("invalid PROFIT_THRESHOLD: %w", err)
		}
	}
	if raw := pick(f.gasLimit, "GAS_LIMIT"); raw != "" {
		if cfg.GasLimit, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return Config{}, fmt.Errorf("invalid GAS_LIMIT %q: %w", raw, err)
		}
	}
	if raw := pick(f.gasBump, "GAS_PRICE_BUMP_PCT"); raw != "" {
		if cfg.GasPriceBumpPct, err = strconv.ParseInt(raw, 10, 64); err != nil || cfg.GasPriceBumpPct < 0 || cfg.GasPriceBumpPct > 1000 {
			return Config{}, fmt.Errorf("invalid GAS_PRICE_BUMP_PCT %q (want 0..1000)", raw)
		}
	}

	if cfg.Events, err = ledger.ParseEventKinds(pick(f.events, "EVENTS")); err != nil {
		return Config{}, fmt.Errorf("invalid EVENTS: %w", err)
	}

	cfg.OutFile = pick(f.outFile, "OUT_FILE")
	cfg.HTTPAddr = pick(f.httpAddr, "HTTP_ADDR")
	// NO_COLOR follows no-color.org: any non-empty value disables colour.
	if raw := pick(f.noColor, "NO_COLOR"); raw != "" {
		v, perr := strconv.ParseBool(raw)
		cfg.NoColor = perr != nil || v
	}
	return cfg, nil
}

func parseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(raw)) {
	case "":
		return ModeAll, nil
	case ModeBatch:
		return ModeBatch, nil
	case ModeMonitor:
		return ModeMonitor, nil
	case ModeAll:
		return ModeAll, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want batch, monitor or all)", raw)
	}
}

func validateRPCURL(raw string, needsSubscriptions bool) error {
	if raw == "" {
		return fmt.Errorf("rpc url required (set --rpc or RPC_URL)")
	}
	lower := strings.ToLower(raw)
	isWS := strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://")
	isHTTP := strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
	isIPC := strings.HasSuffix(lower, ".ipc")
	if !isWS && !isHTTP && !isIPC {
		return fmt.Errorf("rpc url must be ws(s)://, http(s):// or an .ipc path, got %q", raw)
	}
	if strings.Contains(raw, "YOUR_KEY") || strings.Contains(raw, "YOUR_API_KEY") {
		return fmt.Errorf("rpc url still contains a placeholder key: %q", raw)
	}
	if needsSubscriptions && isHTTP {
		return fmt.Errorf("event monitoring needs a ws(s):// or .ipc rpc url, got %q", raw)
	}
	return nil
}

func durationOr(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// Bare numbers are seconds.
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration", raw)
	}
	return time.Duration(secs) * time.Second, nil
}

func boolOr(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}
