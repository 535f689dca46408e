// internal/runner/runner.go
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/broadcast"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/events"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage/models"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/task"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settings are the per-run values the runner needs from the config.
type Settings struct {
	Chain     string
	Network   string
	Connector string
	Workers   int
}

// Runner broadcasts a batch of operations through a shared coordinator.
type Runner struct {
	settings    Settings
	client      gateway.Client
	coordinator *broadcast.Coordinator
	journal     storage.Journal
	bus         *events.Bus
	logger      *zap.Logger
}

// NewRunner creates a runner. bus may be nil.
func NewRunner(settings Settings, client gateway.Client, coordinator *broadcast.Coordinator, journal storage.Journal, bus *events.Bus, logger *zap.Logger) *Runner {
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	return &Runner{
		settings:    settings,
		client:      client,
		coordinator: coordinator,
		journal:     journal,
		bus:         bus,
		logger:      logger.Named("runner"),
	}
}

// Run broadcasts every operation with at most Workers in flight. Individual
// failures are reported per operation; Run only fails when ctx is done
// before all operations were dispatched.
func (r *Runner) Run(ctx context.Context, ops []*task.Operation) (*Report, error) {
	report := &Report{
		StartedAt: time.Now(),
		Results:   make([]OperationResult, len(ops)),
	}
	r.logger.Info(fmt.Sprintf("🚀 Broadcasting %d operations with %d workers", len(ops), r.settings.Workers))

	g := new(errgroup.Group)
	g.SetLimit(r.settings.Workers)

	var dispatchErr error
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			dispatchErr = err
			for j := i; j < len(ops); j++ {
				report.Results[j] = OperationResult{Operation: ops[j], Status: models.StatusCancelled, Err: err}
			}
			break
		}
		g.Go(func() error {
			report.Results[i] = r.RunOperation(ctx, op)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	r.logger.Info("✅ All operations finished",
		zap.Int("confirmed", report.Count(models.StatusConfirmed)),
		zap.Int("total", len(ops)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	if dispatchErr != nil {
		return report, fmt.Errorf("run interrupted: %w", dispatchErr)
	}
	return report, nil
}

// RunOperation broadcasts a single operation and journals the outcome.
func (r *Runner) RunOperation(ctx context.Context, op *task.Operation) OperationResult {
	log := r.logger.With(
		zap.String("operation_id", op.ID),
		zap.String("operation", op.Name),
		zap.String("tx_type", op.TxType()))

	r.publish(&events.OperationStartedEvent{
		BaseEvent:     events.NewBase(events.OperationStarted),
		OperationID:   op.ID,
		OperationName: op.Name,
		TxType:        op.TxType(),
		Wallet:        op.Wallet,
	})

	started := time.Now()
	params := op.BaseParams(r.settings.Network)
	if op.QuoteFirst && op.Type == task.OperationSwap && op.ComputeUnits == 0 {
		if units := r.quoteComputeUnits(ctx, log, op); units > 0 {
			params[broadcast.ParamComputeUnits] = units
		}
	}

	execute := broadcast.GatewayExecutor(r.client, r.connectorFor(op), op.Method())
	res, err := r.coordinator.Execute(ctx, op.TxType(), execute, params)

	out := OperationResult{
		Operation: op,
		Result:    res,
		Err:       err,
		Status:    statusFor(err),
		Duration:  time.Since(started),
	}
	out.Record = r.record(op, out)

	// The journal write must survive a cancelled run.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := r.journal.SaveResult(saveCtx, out.Record); saveErr != nil {
		log.Error("Failed to journal broadcast result", zap.Error(saveErr))
	}

	if err != nil {
		log.Error("❌ Operation failed", zap.String("status", out.Status), zap.Error(err))
		r.publish(&events.OperationFailedEvent{
			BaseEvent:     events.NewBase(events.OperationFailed),
			OperationID:   op.ID,
			OperationName: op.Name,
			Status:        out.Status,
			Error:         err,
		})
		return out
	}

	for _, a := range res.Attempts {
		if a.Outcome == broadcast.OutcomeConfirmed {
			continue
		}
		r.publish(&events.AttemptFailedEvent{
			BaseEvent:        events.NewBase(events.AttemptFailed),
			OperationID:      op.ID,
			Attempt:          a.Index,
			PriorityFeePerCU: a.PriorityFeePerCU,
			Reason:           a.Error,
		})
	}
	log.Info("✅ Operation confirmed",
		zap.String("signature", res.Signature),
		zap.Int("attempts", len(res.Attempts)))
	r.publish(&events.OperationConfirmedEvent{
		BaseEvent:        events.NewBase(events.OperationConfirmed),
		OperationID:      op.ID,
		OperationName:    op.Name,
		Signature:        res.Signature,
		Attempts:         len(res.Attempts),
		PriorityFeePerCU: res.PriorityFeePerCU,
		ComputeUnits:     res.ComputeUnits,
	})
	return out
}

// quoteComputeUnits asks the connector for a quote and returns the compute
// units it reports. Quote failures are not fatal to the broadcast.
func (r *Runner) quoteComputeUnits(ctx context.Context, log *zap.Logger, op *task.Operation) uint32 {
	quote, err := r.client.GetQuote(ctx, r.connectorFor(op), op.QuoteRequest(r.settings.Network))
	if err != nil {
		log.Warn("Quote failed, resolving compute units from cache", zap.Error(err))
		return 0
	}
	log.Debug("Quote received",
		zap.String("pair", op.TradingPair()),
		zap.Float64("expected_out", quote.ExpectedOut()),
		zap.Uint32("compute_units", quote.ComputeUnits))
	return quote.ComputeUnits
}

func (r *Runner) record(op *task.Operation, out OperationResult) *models.TransactionRecord {
	rec := &models.TransactionRecord{
		OperationID:   op.ID,
		OperationName: op.Name,
		TxType:        op.TxType(),
		Chain:         r.settings.Chain,
		Network:       r.settings.Network,
		Connector:     r.connectorFor(op),
		WalletAddress: op.Wallet,
		Status:        out.Status,
		DurationMs:    out.Duration.Milliseconds(),
		CreatedAt:     time.Now().UTC(),
	}

	if res := out.Result; res != nil {
		rec.Signature = sql.NullString{String: res.Signature, Valid: res.Signature != ""}
		rec.Attempts = len(res.Attempts)
		rec.PriorityFeePerCU = int64(res.PriorityFeePerCU)
		rec.ComputeUnits = int64(res.ComputeUnits)
		if c := res.Confirmation; c != nil && c.Fee != nil {
			rec.FeeSOL = sql.NullFloat64{Float64: *c.Fee, Valid: true}
		}
	}

	if out.Err != nil {
		rec.ErrorMessage = sql.NullString{String: out.Err.Error(), Valid: true}
		var fatal *broadcast.FatalError
		var exhausted *broadcast.ExhaustedError
		switch {
		case errors.As(out.Err, &fatal):
			rec.Attempts = fatal.Attempt + 1
			if fatal.Result != nil && fatal.Result.Signature != "" {
				rec.Signature = sql.NullString{String: fatal.Result.Signature, Valid: true}
			}
		case errors.As(out.Err, &exhausted):
			rec.Attempts = exhausted.Attempts
		}
	}
	return rec
}

func (r *Runner) connectorFor(op *task.Operation) string {
	if op.Connector != "" {
		return op.Connector
	}
	return r.settings.Connector
}

func (r *Runner) publish(event events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(event); err != nil {
		r.logger.Debug("Event not published", zap.String("event_type", string(event.Type())), zap.Error(err))
	}
}

func statusFor(err error) string {
	var fatal *broadcast.FatalError
	var exhausted *broadcast.ExhaustedError
	switch {
	case err == nil:
		return models.StatusConfirmed
	case errors.As(err, &fatal):
		return models.StatusFatal
	case errors.As(err, &exhausted):
		return models.StatusExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.StatusCancelled
	default:
		return models.StatusFailed
	}
}
