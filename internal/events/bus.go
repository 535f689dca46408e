// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
	ErrBusFull   = errors.New("event channel full")
)

// Bus is an in-memory publish/subscribe hub. Asynchronous events are
// delivered by a single dispatcher so handlers observe publish order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]Handler
	logger   *zap.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
	dropped   uint64
}

// NewBus creates a bus with room for bufferSize undelivered events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		handlers: make(map[EventType]map[string]Handler),
		logger:   logger.Named("event-bus"),
		events:   make(chan Event, bufferSize),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	return &subscription{id: id, eventBus: b, typ: eventType}
}

// SubscribeFunc subscribes a plain function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues event for asynchronous delivery. It never blocks; events
// that do not fit in the buffer are dropped.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}

	select {
	case b.events <- event:
		return nil
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.logger.Warn("Event channel full, dropping event", zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// PublishSync delivers event to every handler before returning.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()]))
	for _, h := range b.handlers[event.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		b.logger.Error("Event handlers failed",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
		return fmt.Errorf("%d handler(s) failed: %w", len(errs), err)
	}
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		select {
		case event := <-b.events:
			_ = b.PublishSync(context.Background(), event)
		case <-b.closed:
			for {
				select {
				case event := <-b.events:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Shutdown stops accepting events and waits until queued ones are delivered.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.closeOnce.Do(func() { close(b.closed) })

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// BusStats is a snapshot of bus usage.
type BusStats struct {
	Pending     int
	Dropped     uint64
	Subscribers map[EventType]int
}

func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make(map[EventType]int, len(b.handlers))
	for t, hs := range b.handlers {
		subs[t] = len(hs)
	}
	return BusStats{Pending: len(b.events), Dropped: b.dropped, Subscribers: subs}
}
