// internal/broadcast/classify.go
package broadcast

import (
	"strings"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
)

// Outcome is the classification of a single attempt.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeRetryable
	OutcomeFatal
	OutcomeTransport
	OutcomePending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	case OutcomeTransport:
		return "transport"
	case OutcomePending:
		return "pending"
	}
	return "unknown"
}

var retryableMarkers = []string{"insufficient", "fee"}

// IsRetryableFailure reports whether a failed transaction's error message
// points at an economic cause that a higher fee can fix.
func IsRetryableFailure(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range retryableMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Classify maps an execute call's result into an Outcome.
func Classify(res *TransactionResult, err error) Outcome {
	if err != nil || res == nil {
		return OutcomeTransport
	}
	switch res.Status {
	case gateway.StatusConfirmed:
		return OutcomeConfirmed
	case gateway.StatusFailed:
		if IsRetryableFailure(res.Error) {
			return OutcomeRetryable
		}
		return OutcomeFatal
	default:
		return OutcomePending
	}
}
