// internal/gateway/errors.go
package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestFailed is wrapped by every non-200 Gateway response.
	ErrRequestFailed = errors.New("gateway request failed")

	// ErrInvalidResponse is returned when a 200 body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid gateway response")

	// ErrConnectionFailed is returned when the HTTP round trip itself fails.
	ErrConnectionFailed = errors.New("gateway connection failed")
)

// Error describes a failed Gateway call with the endpoint that produced it.
type Error struct {
	Err        error
	Method     string
	Path       string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error [%s %s]: %v", e.Method, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with request context.
func NewError(err error, method, path string, statusCode int) error {
	return &Error{
		Err:        err,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
	}
}

// StatusCode extracts the HTTP status of a Gateway error, or 0 when err did
// not come from a completed HTTP exchange.
func StatusCode(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode
	}
	return 0
}
