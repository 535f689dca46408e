package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)

	var mu sync.Mutex
	var got []int
	bus.SubscribeFunc(AttemptFailed, func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(*AttemptFailedEvent).Attempt)
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(&AttemptFailedEvent{BaseEvent: NewBase(AttemptFailed), Attempt: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.ErrorIs(t, bus.Publish(&AttemptFailedEvent{BaseEvent: NewBase(AttemptFailed)}), ErrBusClosed)
}

func TestBusPublishSyncCollectsErrors(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	boom := errors.New("boom")
	bus.SubscribeFunc(OperationFailed, func(ctx context.Context, e Event) error { return boom })
	bus.SubscribeFunc(OperationFailed, func(ctx context.Context, e Event) error { return nil })

	err := bus.PublishSync(context.Background(), &OperationFailedEvent{BaseEvent: NewBase(OperationFailed)})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "1 handler(s) failed")
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	calls := 0
	sub := bus.SubscribeFunc(OperationStarted, func(ctx context.Context, e Event) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, bus.Stats().Subscribers[OperationStarted])

	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), &OperationStartedEvent{BaseEvent: NewBase(OperationStarted)}))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, bus.Stats().Subscribers[OperationStarted])
}
