package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testWallet = "7B2UBtod3aH7nBCNhdMCVsXjHt8mcDmQxP6EfJfXEipG"
	testPool   = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
)

const operationsYAML = `
operations:
  - name: sell-sol
    type: swap
    wallet: ` + testWallet + `
    base_token: SOL
    quote_token: USDC
    amount: 0.5
    side: sell
    slippage_pct: 1
  - name: open-range
    type: lp_open
    wallet: ` + testWallet + `
    pool_address: ` + testPool + `
    lower_price: 150
    upper_price: 200
    base_token_amount: 1
    compute_units: 900000
  - name: broken-side
    type: swap
    wallet: ` + testWallet + `
    base_token: SOL
    quote_token: USDC
    amount: 1
    side: HOLD
  - name: unknown
    type: bridge
    wallet: ` + testWallet + `
  - name: bad-wallet
    type: lp_close
    wallet: not-base58-0OIl
    position_address: ` + testPool + `
`

func TestParseOperationsSkipsInvalid(t *testing.T) {
	m := NewManager("solana", zaptest.NewLogger(t))

	ops, err := m.ParseOperations([]byte(operationsYAML))
	require.NoError(t, err)
	require.Len(t, ops, 2)

	swap := ops[0]
	assert.Equal(t, "sell-sol", swap.Name)
	assert.Equal(t, OperationSwap, swap.Type)
	assert.Equal(t, SideSell, swap.Side)
	assert.NotEmpty(t, swap.ID)
	assert.Equal(t, gateway.MethodExecuteSwap, swap.Method())
	assert.Equal(t, "SOL-USDC", swap.TradingPair())

	lp := ops[1]
	assert.Equal(t, OperationOpenPosition, lp.Type)
	assert.Equal(t, gateway.MethodOpenPosition, lp.Method())
	assert.Equal(t, "lp_open", lp.TxType())
	assert.NotEqual(t, swap.ID, lp.ID)
}

func TestParseOperationsNonSolanaSkipsAddressChecks(t *testing.T) {
	m := NewManager("ethereum", zaptest.NewLogger(t))

	ops, err := m.ParseOperations([]byte(operationsYAML))
	require.NoError(t, err)
	assert.Len(t, ops, 3)
}

func TestParseOperationsEmpty(t *testing.T) {
	m := NewManager("solana", zaptest.NewLogger(t))

	_, err := m.ParseOperations([]byte("operations: []\n"))
	assert.Error(t, err)

	_, err = m.ParseOperations([]byte("operations:\n  - name: x\n    type: bridge\n"))
	assert.Error(t, err)
}

func TestLoadOperationsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(operationsYAML), 0o600))

	ops, err := NewManager("solana", zaptest.NewLogger(t)).LoadOperationsYAML(path)
	require.NoError(t, err)
	assert.Len(t, ops, 2)

	_, err = NewManager("solana", zaptest.NewLogger(t)).LoadOperationsYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBaseParams(t *testing.T) {
	swap := &Operation{
		Name: "swap", Type: OperationSwap, Wallet: testWallet,
		BaseToken: "SOL", QuoteToken: "USDC", Amount: 0.01, Side: SideBuy, SlippagePct: 1,
	}
	params := swap.BaseParams("mainnet-beta")
	assert.Equal(t, gateway.Params{
		"network":       "mainnet-beta",
		"walletAddress": testWallet,
		"baseToken":     "SOL",
		"quoteToken":    "USDC",
		"amount":        0.01,
		"side":          SideBuy,
		"slippagePct":   1.0,
	}, params)

	closeOp := &Operation{Name: "close", Type: OperationClosePosition, Wallet: testWallet, PositionAddress: testPool, ComputeUnits: 700000, SlippagePct: 1}
	params = closeOp.BaseParams("devnet")
	assert.Equal(t, testPool, params["positionAddress"])
	assert.Equal(t, uint32(700000), params["computeUnits"])
	_, hasSlippage := params["slippagePct"]
	assert.False(t, hasSlippage)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		ok   bool
	}{
		{"valid swap", Operation{Name: "a", Type: OperationSwap, Wallet: "w", BaseToken: "SOL", QuoteToken: "USDC", Amount: 1, Side: SideBuy}, true},
		{"zero amount", Operation{Name: "a", Type: OperationSwap, Wallet: "w", BaseToken: "SOL", QuoteToken: "USDC", Side: SideBuy}, false},
		{"missing wallet", Operation{Name: "a", Type: OperationSwap, BaseToken: "SOL", QuoteToken: "USDC", Amount: 1, Side: SideBuy}, false},
		{"inverted range", Operation{Name: "a", Type: OperationOpenPosition, Wallet: "w", PoolAddress: "p", LowerPrice: 2, UpperPrice: 1, BaseTokenAmount: 1}, false},
		{"valid close", Operation{Name: "a", Type: OperationClosePosition, Wallet: "w", PositionAddress: "p"}, true},
		{"quote on close", Operation{Name: "a", Type: OperationClosePosition, Wallet: "w", PositionAddress: "p", QuoteFirst: true}, false},
		{"slippage too high", Operation{Name: "a", Type: OperationClosePosition, Wallet: "w", PositionAddress: "p", SlippagePct: 101}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTxTypeFollowsMethod(t *testing.T) {
	cases := map[OperationType]string{
		OperationSwap:          "swap",
		OperationOpenPosition:  "lp_open",
		OperationClosePosition: "lp_close",
	}
	for typ, want := range cases {
		op := &Operation{Type: typ}
		assert.Equal(t, want, op.TxType(), typ)
		assert.Equal(t, gateway.TxTypeForMethod(op.Method()), op.TxType())
	}
}
