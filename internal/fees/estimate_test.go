package fees

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type stubEstimator struct {
	calls int32
	fee   uint64
	err   error
	delay time.Duration
}

func (s *stubEstimator) EstimateGas(ctx context.Context, chain, network string) (*gateway.GasEstimate, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.GasEstimate{FeePerComputeUnit: s.fee, Denomination: "microlamports", Timestamp: time.Now()}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEstimateCache(t *testing.T, est GasEstimator) (*EstimateCache, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := NewEstimateCache(est, 60*time.Second, 500000, zaptest.NewLogger(t))
	c.now = clock.Now
	return c, clock
}

func TestEstimateCacheHitWithinInterval(t *testing.T) {
	stub := &stubEstimator{fee: 100000}
	c, clock := newTestEstimateCache(t, stub)
	ctx := context.Background()

	first, err := c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	second, err := c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.calls))
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(100000), second.FeePerComputeUnit)
}

func TestEstimateCacheRefreshesAfterInterval(t *testing.T) {
	stub := &stubEstimator{fee: 100000}
	c, clock := newTestEstimateCache(t, stub)
	ctx := context.Background()

	_, err := c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	require.NoError(t, err)

	clock.Advance(60 * time.Second)
	stub.fee = 250000
	est, err := c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.calls))
	assert.Equal(t, uint64(250000), est.FeePerComputeUnit)
}

func TestEstimateCacheKeysByNetwork(t *testing.T) {
	stub := &stubEstimator{fee: 100000}
	c, _ := newTestEstimateCache(t, stub)
	ctx := context.Background()

	_, err := c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	require.NoError(t, err)
	_, err = c.GetFeeEstimate(ctx, "solana", "devnet")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.calls))
}

func TestEstimateCachePropagatesErrors(t *testing.T) {
	gwErr := errors.New("gateway request failed (500): boom")
	stub := &stubEstimator{err: gwErr}
	c, _ := newTestEstimateCache(t, stub)

	_, err := c.GetFeeEstimate(context.Background(), "solana", "mainnet-beta")
	assert.ErrorIs(t, err, gwErr)

	_, err = c.GetFeeEstimate(context.Background(), "solana", "mainnet-beta")
	assert.ErrorIs(t, err, gwErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.calls), "failures must not be cached")
}

func TestEstimateCacheZeroFallsBackToBaseFee(t *testing.T) {
	c, _ := newTestEstimateCache(t, &stubEstimator{fee: 0})

	est, err := c.GetFeeEstimate(context.Background(), "solana", "mainnet-beta")
	require.NoError(t, err)
	assert.Equal(t, uint64(500000), est.FeePerComputeUnit)
}

func TestEstimateCacheCoalescesConcurrentMisses(t *testing.T) {
	stub := &stubEstimator{fee: 100000, delay: 50 * time.Millisecond}
	c, _ := newTestEstimateCache(t, stub)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			est, err := c.GetFeeEstimate(context.Background(), "solana", "mainnet-beta")
			assert.NoError(t, err)
			assert.Equal(t, uint64(100000), est.FeePerComputeUnit)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.calls))
}

func TestEstimateCacheInvalidate(t *testing.T) {
	stub := &stubEstimator{fee: 100000}
	c, _ := newTestEstimateCache(t, stub)
	ctx := context.Background()

	_, err := c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	require.NoError(t, err)
	c.Invalidate("solana", "mainnet-beta")
	_, err = c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.calls))
}

func TestEstimateCacheCancelledContext(t *testing.T) {
	stub := &stubEstimator{fee: 100000, delay: 200 * time.Millisecond}
	// the in-flight fetch outlives the test, so it must not log through t
	c := NewEstimateCache(stub, 60*time.Second, 500000, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.GetFeeEstimate(ctx, "solana", "mainnet-beta")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// blockingEstimator answers once release is closed, or fails with the
// request context's error.
type blockingEstimator struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingEstimator) EstimateGas(ctx context.Context, chain, network string) (*gateway.GasEstimate, error) {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return &gateway.GasEstimate{FeePerComputeUnit: 250000, Denomination: "microlamports"}, nil
	}
}

func TestEstimateCacheSharedFetchSurvivesCallerCancel(t *testing.T) {
	est := &blockingEstimator{started: make(chan struct{}), release: make(chan struct{})}
	c := NewEstimateCache(est, 60*time.Second, 500000, zap.NewNop())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetFeeEstimate(ctxA, "solana", "mainnet-beta")
		errA <- err
	}()
	<-est.started

	type result struct {
		est FeeEstimate
		err error
	}
	resB := make(chan result, 1)
	go func() {
		e, err := c.GetFeeEstimate(context.Background(), "solana", "mainnet-beta")
		resB <- result{e, err}
	}()

	time.Sleep(10 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(est.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, uint64(250000), b.est.FeePerComputeUnit)
	assert.Equal(t, int32(1), atomic.LoadInt32(&est.calls))

	// the fetch completed and was cached for later operations
	cached, err := c.GetFeeEstimate(context.Background(), "solana", "mainnet-beta")
	require.NoError(t, err)
	assert.Equal(t, uint64(250000), cached.FeePerComputeUnit)
	assert.Equal(t, int32(1), atomic.LoadInt32(&est.calls))
}

func TestEstimateCacheFetchTimeout(t *testing.T) {
	est := &blockingEstimator{started: make(chan struct{}), release: make(chan struct{})}
	c := NewEstimateCache(est, 60*time.Second, 500000, zap.NewNop())
	c.SetFetchTimeout(20 * time.Millisecond)

	_, err := c.GetFeeEstimate(context.Background(), "solana", "mainnet-beta")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
