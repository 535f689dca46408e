// internal/gateway/types.go
package gateway

import (
	"strings"
	"time"
)

// TxStatus is the Gateway's numeric transaction status.
type TxStatus int

const (
	StatusFailed    TxStatus = -1
	StatusPending   TxStatus = 0
	StatusConfirmed TxStatus = 1
)

func (s TxStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Connector methods that submit a transaction.
const (
	MethodExecuteSwap   = "execute-swap"
	MethodOpenPosition  = "open-position"
	MethodClosePosition = "close-position"
)

// TxTypeForMethod derives the compute unit cache class from a connector
// method, e.g. "execute-swap" becomes "swap".
func TxTypeForMethod(method string) string {
	switch method {
	case MethodOpenPosition:
		return "lp_open"
	case MethodClosePosition:
		return "lp_close"
	}
	if i := strings.LastIndex(method, "-"); i >= 0 {
		return method[i+1:]
	}
	return method
}

// Params is the JSON body of an execute request.
type Params map[string]interface{}

// Clone returns a shallow copy so callers can add fee fields without
// touching the original.
func (p Params) Clone() Params {
	out := make(Params, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// GasEstimate is the per compute unit priority fee the Gateway suggests.
type GasEstimate struct {
	FeePerComputeUnit uint64
	Denomination      string
	Timestamp         time.Time
}

type gasEstimateResponse struct {
	FeePerComputeUnit float64 `json:"feePerComputeUnit"`
	Denomination      string  `json:"denomination"`
	Timestamp         int64   `json:"timestamp"`
}

// QuoteRequest is sent as the query string of quote-swap.
type QuoteRequest struct {
	Network     string
	BaseToken   string
	QuoteToken  string
	Amount      float64
	Side        string
	SlippagePct float64
	PoolAddress string
}

// Quote is the subset of a quote-swap response the broadcaster consumes.
type Quote struct {
	PoolAddress        string  `json:"poolAddress,omitempty"`
	EstimatedAmountIn  float64 `json:"estimatedAmountIn,omitempty"`
	EstimatedAmountOut float64 `json:"estimatedAmountOut,omitempty"`
	AmountOut          float64 `json:"amountOut,omitempty"`
	MinAmountOut       float64 `json:"minAmountOut,omitempty"`
	MaxAmountIn        float64 `json:"maxAmountIn,omitempty"`
	Price              float64 `json:"price,omitempty"`
	ComputeUnits       uint32  `json:"computeUnits,omitempty"`
}

// ExpectedOut prefers the estimated figure and falls back to amountOut.
func (q *Quote) ExpectedOut() float64 {
	if q.EstimatedAmountOut != 0 {
		return q.EstimatedAmountOut
	}
	return q.AmountOut
}

// ExecuteResponse is the result of submitting a transaction.
type ExecuteResponse struct {
	Signature string                 `json:"signature"`
	Status    TxStatus               `json:"status"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// PollResponse is the result of a chains/{chain}/poll call.
type PollResponse struct {
	CurrentBlock uint64   `json:"currentBlock"`
	Signature    string   `json:"signature"`
	TxBlock      *uint64  `json:"txBlock"`
	TxStatus     TxStatus `json:"txStatus"`
	Fee          *float64 `json:"fee"`
	Error        string   `json:"error,omitempty"`
}
