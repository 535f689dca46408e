package fees

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBound(t *testing.T) {
	b := Bounds{Min: 100000, Max: 10000000}

	tests := []struct {
		name string
		in   uint64
		want uint64
	}{
		{"below min", 1, 100000},
		{"at min", 100000, 100000},
		{"inside", 400000, 400000},
		{"at max", 10000000, 10000000},
		{"above max", 20000000, 10000000},
		{"huge", math.MaxUint64, 10000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Bound(tt.in))
		})
	}
}

func TestEscalateIsMonotonic(t *testing.T) {
	b := Bounds{Min: 100000, Max: 10000000}

	var prev uint64
	for attempt := 0; attempt <= 10; attempt++ {
		_, fee := b.Escalate(100000, 2.0, attempt)
		assert.GreaterOrEqual(t, fee, prev)
		assert.GreaterOrEqual(t, fee, b.Min)
		assert.LessOrEqual(t, fee, b.Max)
		prev = fee
	}
}

func TestEscalateSequence(t *testing.T) {
	b := Bounds{Min: 100000, Max: 10000000}

	var fees []uint64
	for attempt := 0; attempt < 4; attempt++ {
		_, fee := b.Escalate(100000, 2.0, attempt)
		fees = append(fees, fee)
	}
	assert.Equal(t, []uint64{100000, 200000, 400000, 800000}, fees)

	candidate, fee := b.Escalate(20000000, 2.0, 0)
	assert.Equal(t, uint64(20000000), candidate)
	assert.Equal(t, uint64(10000000), fee)
}

func TestEscalateRounds(t *testing.T) {
	b := Bounds{Min: 1, Max: math.MaxUint64}
	candidate, _ := b.Escalate(100001, 1.5, 1)
	assert.Equal(t, uint64(150002), candidate)
}

func TestTotalFeeSOL(t *testing.T) {
	// 1e12 microlamports is 1e6 lamports
	assert.InDelta(t, 0.001, TotalFeeSOL(1000000, 1000000), 1e-12)
	assert.InDelta(t, 0.00006, TotalFeeSOL(100000, 600000), 1e-12)
}
