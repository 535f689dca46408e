// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	OperationStarted   EventType = "operation.started"
	OperationConfirmed EventType = "operation.confirmed"
	OperationFailed    EventType = "operation.failed"
	AttemptFailed      EventType = "attempt.failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps an event of type t with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// OperationStartedEvent is emitted before the first attempt of an operation.
type OperationStartedEvent struct {
	BaseEvent
	OperationID   string
	OperationName string
	TxType        string
	Wallet        string
}

// AttemptFailedEvent is emitted for each attempt that ends in a retryable failure.
type AttemptFailedEvent struct {
	BaseEvent
	OperationID      string
	Attempt          int
	PriorityFeePerCU uint64
	Reason           string
}

// OperationConfirmedEvent is emitted when an operation's transaction confirms.
type OperationConfirmedEvent struct {
	BaseEvent
	OperationID      string
	OperationName    string
	Signature        string
	Attempts         int
	PriorityFeePerCU uint64
	ComputeUnits     uint32
}

// OperationFailedEvent is emitted when an operation aborts or exhausts its attempts.
type OperationFailedEvent struct {
	BaseEvent
	OperationID   string
	OperationName string
	Status        string
	Error         error
}
