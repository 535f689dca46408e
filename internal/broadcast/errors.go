// internal/broadcast/errors.go
package broadcast

import (
	"errors"
	"fmt"
)

var (
	// ErrFatalFailure is matched by every FatalError.
	ErrFatalFailure = errors.New("transaction failed with non-retryable error")

	// ErrRetriesExhausted is matched by every ExhaustedError.
	ErrRetriesExhausted = errors.New("transaction retries exhausted")

	// ErrNotConfirmed is reported when a pending signature never confirms.
	ErrNotConfirmed = errors.New("transaction failed to confirm")

	// ErrEmptyResult is returned when an execute call yields neither a result nor an error.
	ErrEmptyResult = errors.New("execute returned no result")

	// ErrInvalidSignature rejects a signature that cannot be polled.
	ErrInvalidSignature = errors.New("invalid transaction signature")

	// ErrConfirmationTimeout is returned when Await runs out of time.
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")

	// ErrTransactionFailed is returned when a poll reports a failed status.
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

// FatalError aborts a broadcast without consuming the remaining attempts.
type FatalError struct {
	Attempt int
	Reason  string
	Result  *TransactionResult
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("transaction failed on attempt %d: %s", e.Attempt+1, e.Reason)
}

func (e *FatalError) Unwrap() error {
	return ErrFatalFailure
}

// ExhaustedError reports that every allowed attempt ended in a retryable failure.
type ExhaustedError struct {
	Attempts   int
	Last       error
	LastResult *TransactionResult
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("transaction failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrRetriesExhausted}
	}
	return []error{ErrRetriesExhausted, e.Last}
}

// failureError turns a Gateway failure string into an error value.
type failureError struct {
	msg string
}

func (e *failureError) Error() string {
	return e.msg
}
