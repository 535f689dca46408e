// internal/fees/compute_units.go
package fees

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	DefaultSwapComputeUnits      uint32 = 600000
	DefaultLiquidityComputeUnits uint32 = 800000
)

// UnitSource tells where a compute unit figure came from.
type UnitSource string

const (
	SourceExplicit UnitSource = "explicit"
	SourceCached   UnitSource = "cached"
	SourceDefault  UnitSource = "default"
)

// ComputeUnitCache remembers the compute units of the last confirmed
// transaction per type. Entries live for the whole process.
type ComputeUnitCache struct {
	chain    string
	network  string
	defaults map[string]uint32

	units  map[string]uint32
	mu     sync.RWMutex
	logger *zap.Logger

	reads  uint64
	writes uint64
	hits   uint64
}

func NewComputeUnitCache(chain, network string, defaults map[string]uint32, logger *zap.Logger) *ComputeUnitCache {
	d := make(map[string]uint32, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &ComputeUnitCache{
		chain:    chain,
		network:  network,
		defaults: d,
		units:    make(map[string]uint32),
		logger:   logger.Named("compute-unit-cache"),
	}
}

func (c *ComputeUnitCache) key(txType string) string {
	return fmt.Sprintf("%s:%s:%s", txType, c.chain, c.network)
}

// Get returns the cached figure for txType if one has been recorded.
func (c *ComputeUnitCache) Get(txType string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	atomic.AddUint64(&c.reads, 1)
	units, ok := c.units[c.key(txType)]
	if ok {
		atomic.AddUint64(&c.hits, 1)
	}
	return units, ok
}

// Set records units for txType. Last writer wins.
func (c *ComputeUnitCache) Set(txType string, units uint32) {
	if units == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.units[c.key(txType)] = units
	atomic.AddUint64(&c.writes, 1)
	c.logger.Debug("Compute units cached",
		zap.String("tx_type", txType),
		zap.Uint32("compute_units", units))
}

// Default returns the configured budget for txType, falling back to the
// swap or liquidity class default.
func (c *ComputeUnitCache) Default(txType string) uint32 {
	if units, ok := c.defaults[txType]; ok && units > 0 {
		return units
	}
	if strings.HasPrefix(txType, "lp_") || strings.Contains(txType, "position") || strings.Contains(txType, "liquidity") {
		return DefaultLiquidityComputeUnits
	}
	return DefaultSwapComputeUnits
}

// Resolve picks the compute units for an operation: an explicit figure
// wins, then the cache, then the default.
func (c *ComputeUnitCache) Resolve(txType string, explicit uint32) (uint32, UnitSource) {
	if explicit > 0 {
		return explicit, SourceExplicit
	}
	if units, ok := c.Get(txType); ok {
		return units, SourceCached
	}
	return c.Default(txType), SourceDefault
}

// CacheStats is a point in time view of cache usage.
type CacheStats struct {
	Entries uint64
	Reads   uint64
	Writes  uint64
	Hits    uint64
}

func (c *ComputeUnitCache) Stats() CacheStats {
	c.mu.RLock()
	entries := uint64(len(c.units))
	c.mu.RUnlock()

	return CacheStats{
		Entries: entries,
		Reads:   atomic.LoadUint64(&c.reads),
		Writes:  atomic.LoadUint64(&c.writes),
		Hits:    atomic.LoadUint64(&c.hits),
	}
}
