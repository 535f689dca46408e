package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedPoller struct {
	mu        sync.Mutex
	responses []*gateway.PollResponse
	errs      []error
	calls     int
}

func (s *scriptedPoller) PollTransaction(ctx context.Context, chain, network, signature string) (*gateway.PollResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return s.responses[i], nil
}

func (s *scriptedPoller) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func uint64Ptr(v uint64) *uint64 { return &v }

func float64Ptr(v float64) *float64 { return &v }

func TestPollSingleCall(t *testing.T) {
	client := &scriptedPoller{responses: []*gateway.PollResponse{
		{CurrentBlock: 1000, TxBlock: uint64Ptr(998), TxStatus: gateway.StatusConfirmed, Fee: float64Ptr(0.000005)},
	}}
	p := NewPoller(client, time.Millisecond, time.Second, zaptest.NewLogger(t))

	res, err := p.Poll(context.Background(), "solana", "mainnet-beta", testSignature)
	require.NoError(t, err)
	assert.Equal(t, 1, client.count())
	assert.Equal(t, uint64(1000), res.CurrentBlock)
	assert.Equal(t, uint64(998), res.TxBlock)
	assert.Equal(t, gateway.StatusConfirmed, res.TxStatus)
	assert.Equal(t, uint64(5000), res.FeeLamports())
}

func TestPollDoesNotRetryErrors(t *testing.T) {
	pollErr := errors.New("gateway request failed (503): unavailable")
	client := &scriptedPoller{responses: []*gateway.PollResponse{nil}, errs: []error{pollErr}}
	p := NewPoller(client, time.Millisecond, time.Second, zaptest.NewLogger(t))

	_, err := p.Poll(context.Background(), "solana", "mainnet-beta", testSignature)
	assert.ErrorIs(t, err, pollErr)
	assert.Equal(t, 1, client.count())
}

func TestPollRejectsInvalidSolanaSignature(t *testing.T) {
	client := &scriptedPoller{}
	p := NewPoller(client, time.Millisecond, time.Second, zaptest.NewLogger(t))

	_, err := p.Poll(context.Background(), "solana", "mainnet-beta", "not-a-signature")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = p.Poll(context.Background(), "solana", "mainnet-beta", "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, 0, client.count())
}

func TestPollAcceptsNonSolanaHashes(t *testing.T) {
	client := &scriptedPoller{responses: []*gateway.PollResponse{{TxStatus: gateway.StatusPending}}}
	p := NewPoller(client, time.Millisecond, time.Second, zaptest.NewLogger(t))

	res, err := p.Poll(context.Background(), "ethereum", "mainnet", "0xabc123")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPending, res.TxStatus)
	assert.Equal(t, uint64(0), res.FeeLamports())
}

func TestAwaitUntilConfirmed(t *testing.T) {
	client := &scriptedPoller{
		responses: []*gateway.PollResponse{
			{TxStatus: gateway.StatusPending},
			nil,
			{TxStatus: gateway.StatusConfirmed, TxBlock: uint64Ptr(42)},
		},
		errs: []error{nil, errors.New("temporary"), nil},
	}
	p := NewPoller(client, time.Millisecond, time.Second, zaptest.NewLogger(t))

	res, err := p.Await(context.Background(), "solana", "mainnet-beta", testSignature)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.TxBlock)
	assert.Equal(t, 3, client.count())
}

func TestAwaitStopsOnFailure(t *testing.T) {
	client := &scriptedPoller{responses: []*gateway.PollResponse{
		{TxStatus: gateway.StatusFailed, Error: "custom program error: 0x1771"},
	}}
	p := NewPoller(client, time.Millisecond, time.Second, zaptest.NewLogger(t))

	res, err := p.Await(context.Background(), "solana", "mainnet-beta", testSignature)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.Contains(t, err.Error(), "0x1771")
	require.NotNil(t, res)
	assert.Equal(t, 1, client.count())
}

func TestAwaitTimesOut(t *testing.T) {
	client := &scriptedPoller{responses: []*gateway.PollResponse{{TxStatus: gateway.StatusPending}}}
	p := NewPoller(client, 5*time.Millisecond, 30*time.Millisecond, zaptest.NewLogger(t))

	_, err := p.Await(context.Background(), "solana", "mainnet-beta", testSignature)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.GreaterOrEqual(t, client.count(), 2)
}

func TestAwaitHonoursCancellation(t *testing.T) {
	client := &scriptedPoller{responses: []*gateway.PollResponse{{TxStatus: gateway.StatusPending}}}
	p := NewPoller(client, 5*time.Millisecond, time.Minute, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Await(ctx, "solana", "mainnet-beta", testSignature)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		res  *TransactionResult
		err  error
		want Outcome
	}{
		{"confirmed", &TransactionResult{Status: gateway.StatusConfirmed}, nil, OutcomeConfirmed},
		{"insufficient", &TransactionResult{Status: gateway.StatusFailed, Error: "INSUFFICIENT funds"}, nil, OutcomeRetryable},
		{"fee", &TransactionResult{Status: gateway.StatusFailed, Error: "Priority Fee too low"}, nil, OutcomeRetryable},
		{"fatal", &TransactionResult{Status: gateway.StatusFailed, Error: "invalid token mint"}, nil, OutcomeFatal},
		{"pending", &TransactionResult{Status: gateway.StatusPending}, nil, OutcomePending},
		{"unknown status", &TransactionResult{Status: 7}, nil, OutcomePending},
		{"transport", nil, errors.New("EOF"), OutcomeTransport},
		{"empty", nil, nil, OutcomeTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.res, tt.err))
		})
	}
}

func TestAwaitLogsFeeInLamports(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	client := &scriptedPoller{responses: []*gateway.PollResponse{
		{TxStatus: gateway.StatusConfirmed, TxBlock: uint64Ptr(10), Fee: float64Ptr(0.000005)},
	}}
	p := NewPoller(client, time.Millisecond, time.Second, zap.New(core))

	_, err := p.Await(context.Background(), "solana", "mainnet-beta", testSignature)
	require.NoError(t, err)

	entries := logs.FilterMessage("Transaction confirmed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(5000), entries[0].ContextMap()["fee_lamports"])
}
