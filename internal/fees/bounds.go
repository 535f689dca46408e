// internal/fees/bounds.go
package fees

import (
	"math"

	"github.com/gagliardetto/solana-go"
)

// microLamportsPerLamport converts compute unit prices to lamports.
const microLamportsPerLamport = 1_000_000

// Bounds clamps priority fees per compute unit into [Min, Max].
type Bounds struct {
	Min uint64
	Max uint64
}

// Bound returns max(Min, min(fee, Max)).
func (b Bounds) Bound(fee uint64) uint64 {
	if fee > b.Max {
		fee = b.Max
	}
	if fee < b.Min {
		fee = b.Min
	}
	return fee
}

// Escalate computes the fee for a zero based attempt index: the estimate
// times multiplier^attempt, rounded, then bounded. The unbounded candidate
// is returned as well for logging.
func (b Bounds) Escalate(estimate uint64, multiplier float64, attempt int) (candidate, fee uint64) {
	raw := math.Round(float64(estimate) * math.Pow(multiplier, float64(attempt)))
	if raw >= float64(math.MaxUint64) {
		candidate = math.MaxUint64
	} else {
		candidate = uint64(raw)
	}
	return candidate, b.Bound(candidate)
}

// TotalFeeSOL converts a per compute unit price in microlamports and a
// compute unit budget into SOL.
func TotalFeeSOL(feePerCU uint64, computeUnits uint32) float64 {
	lamports := float64(feePerCU) * float64(computeUnits) / microLamportsPerLamport
	return lamports / float64(solana.LAMPORTS_PER_SOL)
}
