// internal/fees/estimate.go
package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/utils/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// GasEstimator is the part of the Gateway client the fee cache needs.
type GasEstimator interface {
	EstimateGas(ctx context.Context, chain, network string) (*gateway.GasEstimate, error)
}

// FeeEstimate is a cached per compute unit fee quote.
type FeeEstimate struct {
	FeePerComputeUnit uint64
	Denomination      string
	ObservedAt        time.Time
}

// EstimateCache memoizes Gateway fee estimates per chain and network for a
// fixed interval. Concurrent misses for the same key share one request.
type EstimateCache struct {
	estimator GasEstimator
	entries   *cache.Cache
	group     singleflight.Group
	ttl       time.Duration
	baseFee   uint64
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewEstimateCache creates a cache that refreshes each key at most once per
// ttl. baseFee is used when the Gateway reports no estimate.
func NewEstimateCache(estimator GasEstimator, ttl time.Duration, baseFee uint64, logger *zap.Logger) *EstimateCache {
	return &EstimateCache{
		estimator: estimator,
		entries:   cache.New(ttl, 2*ttl),
		ttl:       ttl,
		baseFee:   baseFee,
		timeout:   defaultFetchTimeout,
		now:       time.Now,
		logger:    logger.Named("fee-cache"),
	}
}

const defaultFetchTimeout = 30 * time.Second

// SetFetchTimeout bounds a shared Gateway fetch. A fetch is detached from
// the callers' contexts, so this is its only deadline.
func (c *EstimateCache) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

func estimateKey(chain, network string) string {
	return fmt.Sprintf("fee_estimate:%s:%s", chain, network)
}

// GetFeeEstimate returns a fresh cached estimate or fetches one from the
// Gateway. Gateway errors are returned unchanged and nothing is cached.
// Callers joining an in-flight fetch share its result; each one stops
// waiting when its own ctx is done without cancelling the fetch.
func (c *EstimateCache) GetFeeEstimate(ctx context.Context, chain, network string) (FeeEstimate, error) {
	key := estimateKey(chain, network)
	if est, ok := c.lookup(key); ok {
		metrics.IncFeeCacheHit()
		return est, nil
	}
	metrics.IncFeeCacheMiss()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if est, ok := c.lookup(key); ok {
			return est, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fetchCtx, key, chain, network)
	})

	select {
	case <-ctx.Done():
		return FeeEstimate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return FeeEstimate{}, res.Err
		}
		return res.Val.(FeeEstimate), nil
	}
}

func (c *EstimateCache) lookup(key string) (FeeEstimate, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return FeeEstimate{}, false
	}
	est := v.(FeeEstimate)
	if c.now().Sub(est.ObservedAt) >= c.ttl {
		return FeeEstimate{}, false
	}
	return est, true
}

func (c *EstimateCache) fetch(ctx context.Context, key, chain, network string) (FeeEstimate, error) {
	resp, err := c.estimator.EstimateGas(ctx, chain, network)
	if err != nil {
		c.logger.Warn("Fee estimate request failed",
			zap.String("chain", chain),
			zap.String("network", network),
			zap.Error(err))
		return FeeEstimate{}, err
	}

	fee := resp.FeePerComputeUnit
	if fee == 0 {
		fee = c.baseFee
	}
	est := FeeEstimate{
		FeePerComputeUnit: fee,
		Denomination:      resp.Denomination,
		ObservedAt:        c.now(),
	}
	c.entries.SetDefault(key, est)

	c.logger.Debug("Fee estimate refreshed",
		zap.String("key", key),
		zap.Uint64("fee_per_cu", est.FeePerComputeUnit),
		zap.String("denomination", est.Denomination))
	return est, nil
}

// Invalidate drops the cached estimate for chain and network so the next
// operation fetches a fresh one.
func (c *EstimateCache) Invalidate(chain, network string) {
	c.entries.Delete(estimateKey(chain, network))
}
