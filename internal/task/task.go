// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/broadcast"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
)

// OperationType is the transaction class of an operation. It doubles as the
// compute unit cache key.
type OperationType string

const (
	OperationSwap          OperationType = "swap"
	OperationOpenPosition  OperationType = "lp_open"
	OperationClosePosition OperationType = "lp_close"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Operation is one transaction to broadcast through the Gateway.
type Operation struct {
	ID               string
	Name             string
	Type             OperationType
	Connector        string // overrides the configured connector when set
	Wallet           string
	BaseToken        string
	QuoteToken       string
	Amount           float64
	Side             string
	SlippagePct      float64
	PoolAddress      string
	PositionAddress  string
	LowerPrice       float64
	UpperPrice       float64
	BaseTokenAmount  float64
	QuoteTokenAmount float64
	ComputeUnits     uint32 // explicit budget, 0 means resolve from cache
	QuoteFirst       bool   // fetch a quote to learn the compute units
	CreatedAt        time.Time
}

// Validate checks that the fields required by the operation type are set.
func (o *Operation) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("operation name cannot be empty")
	}
	if o.Wallet == "" {
		return fmt.Errorf("wallet cannot be empty")
	}
	if o.SlippagePct < 0 || o.SlippagePct > 100 {
		return fmt.Errorf("slippage must be between 0 and 100")
	}

	switch o.Type {
	case OperationSwap:
		if o.BaseToken == "" || o.QuoteToken == "" {
			return fmt.Errorf("swap requires base_token and quote_token")
		}
		if o.Amount <= 0 {
			return fmt.Errorf("amount must be greater than zero")
		}
		if o.Side != SideBuy && o.Side != SideSell {
			return fmt.Errorf("invalid side: %q", o.Side)
		}
	case OperationOpenPosition:
		if o.PoolAddress == "" {
			return fmt.Errorf("lp_open requires pool_address")
		}
		if o.LowerPrice <= 0 || o.UpperPrice <= o.LowerPrice {
			return fmt.Errorf("invalid price range [%v, %v]", o.LowerPrice, o.UpperPrice)
		}
		if o.BaseTokenAmount <= 0 && o.QuoteTokenAmount <= 0 {
			return fmt.Errorf("lp_open requires base_token_amount or quote_token_amount")
		}
	case OperationClosePosition:
		if o.PositionAddress == "" {
			return fmt.Errorf("lp_close requires position_address")
		}
	default:
		return fmt.Errorf("invalid operation type: %s", o.Type)
	}

	if o.QuoteFirst && o.Type != OperationSwap {
		return fmt.Errorf("quote_first is only supported for swaps")
	}
	return nil
}

// Method returns the Gateway connector method that submits the operation.
func (o *Operation) Method() string {
	switch o.Type {
	case OperationOpenPosition:
		return gateway.MethodOpenPosition
	case OperationClosePosition:
		return gateway.MethodClosePosition
	default:
		return gateway.MethodExecuteSwap
	}
}

// TxType is the compute unit cache class.
func (o *Operation) TxType() string {
	return gateway.TxTypeForMethod(o.Method())
}

// TradingPair formats the pair as BASE-QUOTE for logs and reports.
func (o *Operation) TradingPair() string {
	if o.BaseToken == "" && o.QuoteToken == "" {
		return ""
	}
	return strings.ToUpper(o.BaseToken) + "-" + strings.ToUpper(o.QuoteToken)
}

// BaseParams builds the execute request body without fee fields.
func (o *Operation) BaseParams(network string) gateway.Params {
	params := gateway.Params{
		"network":       network,
		"walletAddress": o.Wallet,
	}

	switch o.Type {
	case OperationSwap:
		params["baseToken"] = o.BaseToken
		params["quoteToken"] = o.QuoteToken
		params["amount"] = o.Amount
		params["side"] = o.Side
		if o.PoolAddress != "" {
			params["poolAddress"] = o.PoolAddress
		}
	case OperationOpenPosition:
		params["poolAddress"] = o.PoolAddress
		params["lowerPrice"] = o.LowerPrice
		params["upperPrice"] = o.UpperPrice
		if o.BaseTokenAmount > 0 {
			params["baseTokenAmount"] = o.BaseTokenAmount
		}
		if o.QuoteTokenAmount > 0 {
			params["quoteTokenAmount"] = o.QuoteTokenAmount
		}
	case OperationClosePosition:
		params["positionAddress"] = o.PositionAddress
	}

	if o.SlippagePct > 0 && o.Type != OperationClosePosition {
		params["slippagePct"] = o.SlippagePct
	}
	if o.ComputeUnits > 0 {
		params[broadcast.ParamComputeUnits] = o.ComputeUnits
	}
	return params
}

// QuoteRequest builds the quote-swap query for a swap operation.
func (o *Operation) QuoteRequest(network string) gateway.QuoteRequest {
	return gateway.QuoteRequest{
		Network:     network,
		BaseToken:   o.BaseToken,
		QuoteToken:  o.QuoteToken,
		Amount:      o.Amount,
		Side:        o.Side,
		SlippagePct: o.SlippagePct,
		PoolAddress: o.PoolAddress,
	}
}
