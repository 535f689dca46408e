// internal/gateway/client.go
package gateway

import "context"

// Client is the Gateway surface the broadcaster depends on.
type Client interface {
	EstimateGas(ctx context.Context, chain, network string) (*GasEstimate, error)
	GetQuote(ctx context.Context, connector string, req QuoteRequest) (*Quote, error)
	Execute(ctx context.Context, connector, method string, params Params) (*ExecuteResponse, error)
	PollTransaction(ctx context.Context, chain, network, signature string) (*PollResponse, error)
}
