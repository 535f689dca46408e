// internal/broadcast/types.go
package broadcast

import (
	"context"
	"time"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
)

// Parameter names merged into every execute request.
const (
	ParamPriorityFeePerCU = "priorityFeePerCU"
	ParamComputeUnits     = "computeUnits"
)

// TransactionResult is what an execute call reports, extended by the
// coordinator with the fee settings and attempt history that produced it.
type TransactionResult struct {
	Signature string
	Status    gateway.TxStatus
	Data      map[string]interface{}
	Error     string

	PriorityFeePerCU uint64
	ComputeUnits     uint32
	Attempts         []Attempt
	Confirmation     *PollResult
}

// Attempt records one execute call.
type Attempt struct {
	Index            int
	PriorityFeePerCU uint64
	CandidateFee     uint64
	ComputeUnits     uint32
	Params           gateway.Params
	Signature        string
	Outcome          Outcome
	Error            string
	StartedAt        time.Time
	Duration         time.Duration
}

// ExecuteFunc submits a transaction with fully resolved params.
type ExecuteFunc func(ctx context.Context, params gateway.Params) (*TransactionResult, error)

// GatewayExecutor adapts a Gateway connector method to an ExecuteFunc.
func GatewayExecutor(client gateway.Client, connector, method string) ExecuteFunc {
	return func(ctx context.Context, params gateway.Params) (*TransactionResult, error) {
		resp, err := client.Execute(ctx, connector, method, params)
		if err != nil {
			return nil, err
		}
		return &TransactionResult{
			Signature: resp.Signature,
			Status:    resp.Status,
			Data:      resp.Data,
			Error:     resp.Error,
		}, nil
	}
}
