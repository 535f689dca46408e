// internal/gateway/http.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/utils/metrics"
	"go.uber.org/zap"
)

const maxErrorBody = 4096

// HTTPClient talks to a Gateway over its REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewHTTPClient creates a client for the Gateway at baseURL. Every request
// is bounded by timeout in addition to the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger.Named("gateway-client"),
	}
}

var _ Client = (*HTTPClient)(nil)

// Ping checks that the Gateway answers on its root path.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "", nil, nil, nil)
}

func (c *HTTPClient) EstimateGas(ctx context.Context, chain, network string) (*GasEstimate, error) {
	var resp gasEstimateResponse
	path := fmt.Sprintf("chains/%s/estimate-gas", chain)
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"network": network}, &resp); err != nil {
		return nil, err
	}
	if resp.FeePerComputeUnit < 0 {
		return nil, NewError(fmt.Errorf("%w: negative feePerComputeUnit", ErrInvalidResponse), http.MethodPost, path, http.StatusOK)
	}

	ts := time.Now()
	if resp.Timestamp > 0 {
		ts = time.UnixMilli(resp.Timestamp)
	}
	return &GasEstimate{
		FeePerComputeUnit: uint64(math.Round(resp.FeePerComputeUnit)),
		Denomination:      resp.Denomination,
		Timestamp:         ts,
	}, nil
}

func (c *HTTPClient) GetQuote(ctx context.Context, connector string, req QuoteRequest) (*Quote, error) {
	query := url.Values{}
	query.Set("network", req.Network)
	query.Set("baseToken", req.BaseToken)
	query.Set("quoteToken", req.QuoteToken)
	query.Set("amount", strconv.FormatFloat(req.Amount, 'f', -1, 64))
	query.Set("side", req.Side)
	if req.SlippagePct > 0 {
		query.Set("slippagePct", strconv.FormatFloat(req.SlippagePct, 'f', -1, 64))
	}
	if req.PoolAddress != "" {
		query.Set("poolAddress", req.PoolAddress)
	}

	var quote Quote
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("connectors/%s/quote-swap", connector), query, nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *HTTPClient) Execute(ctx context.Context, connector, method string, params Params) (*ExecuteResponse, error) {
	var resp ExecuteResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("connectors/%s/%s", connector, method), nil, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) PollTransaction(ctx context.Context, chain, network, signature string) (*PollResponse, error) {
	var resp PollResponse
	body := map[string]string{"network": network, "signature": signature}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("chains/%s/poll", chain), nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Signature == "" {
		resp.Signature = signature
	}
	return &resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL
	if path != "" {
		target += "/" + path
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return NewError(err, method, path, 0)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayLatency(endpointLabel(path), 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return NewError(fmt.Errorf("%w: %w", ErrConnectionFailed, ctxErr), method, path, 0)
		}
		return NewError(fmt.Errorf("%w: %w", ErrConnectionFailed, err), method, path, 0)
	}
	defer resp.Body.Close()
	metrics.RecordGatewayLatency(endpointLabel(path), resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("Gateway returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return NewError(fmt.Errorf("%w (%d): %s", ErrRequestFailed, resp.StatusCode, errorMessage(raw)), method, path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(fmt.Errorf("%w: %w", ErrInvalidResponse, err), method, path, resp.StatusCode)
	}
	return nil
}

// errorMessage pulls the "error" or "message" field out of a JSON error
// body and falls back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

// endpointLabel keeps metric cardinality bounded by dropping the chain or
// connector segment from the path.
func endpointLabel(path string) string {
	if path == "" {
		return "root"
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
