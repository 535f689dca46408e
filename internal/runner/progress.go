// internal/runner/progress.go
package runner

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/events"
)

// SubscribeProgress prints one line per lifecycle event to w. The returned
// function removes the subscriptions.
func SubscribeProgress(bus *events.Bus, w io.Writer, styles ReportStyles) func() {
	var mu sync.Mutex
	write := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	}

	subs := []events.Subscription{
		bus.SubscribeFunc(events.OperationStarted, func(ctx context.Context, e events.Event) error {
			ev := e.(*events.OperationStartedEvent)
			write(styles.Muted.Render(fmt.Sprintf("▶ %s (%s)", ev.OperationName, ev.TxType)))
			return nil
		}),
		bus.SubscribeFunc(events.AttemptFailed, func(ctx context.Context, e events.Event) error {
			ev := e.(*events.AttemptFailedEvent)
			write(styles.Status["exhausted"].Render(fmt.Sprintf("↻ %s attempt %d at %d µlamports/CU: %s",
				ev.OperationID, ev.Attempt+1, ev.PriorityFeePerCU, ev.Reason)))
			return nil
		}),
		bus.SubscribeFunc(events.OperationConfirmed, func(ctx context.Context, e events.Event) error {
			ev := e.(*events.OperationConfirmedEvent)
			write(styles.Status["confirmed"].Render(fmt.Sprintf("✔ %s confirmed after %d attempt(s): %s",
				ev.OperationName, ev.Attempts, ev.Signature)))
			return nil
		}),
		bus.SubscribeFunc(events.OperationFailed, func(ctx context.Context, e events.Event) error {
			ev := e.(*events.OperationFailedEvent)
			st, ok := styles.Status[ev.Status]
			if !ok {
				st = styles.Status["failed"]
			}
			write(st.Render(fmt.Sprintf("✖ %s %s: %v", ev.OperationName, ev.Status, ev.Error)))
			return nil
		}),
	}

	return func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}
}
