package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodStartFlashloan  = "startFlashloan"
	methodGetStats        = "getStats"
	methodGetTokenStats   = "getTokenStats"
	methodGetOverallStats = "getOverallStats"
)

// DefaultABIJSON is the interface of the Arbitrage contract the tooling was
// written against.
const DefaultABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"token","type":"address"},
    {"internalType":"uint256","name":"amount","type":"uint256"}
  ],"name":"startFlashloan","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[],"name":"getStats","outputs":[
    {"internalType":"bool","name":"isSearching","type":"bool"},
    {"internalType":"uint256","name":"lastSearchTimestamp","type":"uint256"},
    {"internalType":"uint256","name":"totalFlashLoans","type":"uint256"},
    {"internalType":"uint256","name":"successfulSwaps","type":"uint256"},
    {"internalType":"uint256","name":"failedSwaps","type":"uint256"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"token","type":"address"}],"name":"getTokenStats","outputs":[
    {"internalType":"uint256","name":"totalProfit","type":"uint256"},
    {"internalType":"uint256","name":"attempts","type":"uint256"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getOverallStats","outputs":[
    {"internalType":"uint256","name":"_totalTrades","type":"uint256"},
    {"internalType":"uint256","name":"_successfulTrades","type":"uint256"},
    {"internalType":"uint256","name":"_totalProfit","type":"uint256"},
    {"internalType":"uint256","name":"_lastTradeTimestamp","type":"uint256"}
  ],"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"token","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"expectedProfit","type":"uint256"}
  ],"name":"FlashloanInitiated","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"router","type":"address"},
    {"indexed":false,"internalType":"address","name":"tokenIn","type":"address"},
    {"indexed":false,"internalType":"address","name":"tokenOut","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"amountOut","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}
  ],"name":"SwapExecuted","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":false,"internalType":"uint256","name":"profit","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"gasUsed","type":"uint256"},
    {"indexed":false,"internalType":"bool","name":"successful","type":"bool"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}
  ],"name":"ArbitrageCompleted","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"token","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"expectedProfit","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}
  ],"name":"OpportunityFound","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"token","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"expectedProfit","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"requiredProfit","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}
  ],"name":"OpportunityNotProfitable","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"uint256","name":"tradeId","type":"uint256"},
    {"indexed":false,"internalType":"address","name":"token0","type":"address"},
    {"indexed":false,"internalType":"address","name":"token1","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"flashLoanAmount","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"profit","type":"uint256"},
    {"indexed":false,"internalType":"bool","name":"successful","type":"bool"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}
  ],"name":"ArbitrageExecuted","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"token","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}
  ],"name":"FlashLoanTaken","type":"event"}
]`

func DefaultABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(DefaultABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("default abi parse: %w", err)
	}
	return parsed, nil
}

// LoadABI reads either a bare ABI array or a compiler artifact
// ({"abi": [...], ...}) such as the ones hardhat writes under artifacts/.
func LoadABI(path string) (abi.ABI, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi %s: %w", path, err)
	}
	return ParseABI(b)
}

func ParseABI(b []byte) (abi.ABI, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return abi.ABI{}, fmt.Errorf("abi: empty input")
	}
	if trimmed[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("abi artifact decode: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("abi artifact has no \"abi\" field")
		}
		trimmed = artifact.ABI
	}
	parsed, err := abi.JSON(bytes.NewReader(trimmed))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("abi parse: %w", err)
	}
	for _, m := range []string{methodStartFlashloan, methodGetStats, methodGetTokenStats, methodGetOverallStats} {
		if _, ok := parsed.Methods[m]; !ok {
			return abi.ABI{}, fmt.Errorf("abi missing method %s", m)
		}
	}
	return parsed, nil
}
