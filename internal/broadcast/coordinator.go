// internal/broadcast/coordinator.go
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/fees"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/utils/logger"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/utils/metrics"
	"go.uber.org/zap"
)

// FeeSource supplies the current fee estimate for a chain and network.
type FeeSource interface {
	GetFeeEstimate(ctx context.Context, chain, network string) (fees.FeeEstimate, error)
}

// feeInvalidator is implemented by fee sources that can drop a stale estimate.
type feeInvalidator interface {
	Invalidate(chain, network string)
}

// Confirmer waits for a pending signature to reach a terminal state.
type Confirmer interface {
	Await(ctx context.Context, chain, network, signature string) (*PollResult, error)
}

// Options configures a Coordinator.
type Options struct {
	Chain         string
	Network       string
	Bounds        fees.Bounds
	Multiplier    float64
	MaxRetries    int
	RetryInterval time.Duration
}

// Coordinator submits transactions and escalates the priority fee until
// one confirms, a fatal error occurs, or attempts run out.
type Coordinator struct {
	opts      Options
	feeSource FeeSource
	units     *fees.ComputeUnitCache
	confirmer Confirmer
	logger    *zap.Logger
}

// NewCoordinator wires the caches together. confirmer may be nil, in which
// case a pending execute result counts as a retryable failure.
func NewCoordinator(opts Options, feeSource FeeSource, units *fees.ComputeUnitCache, confirmer Confirmer, logger *zap.Logger) *Coordinator {
	if opts.Multiplier < 1 {
		opts.Multiplier = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Coordinator{
		opts:      opts,
		feeSource: feeSource,
		units:     units,
		confirmer: confirmer,
		logger:    logger.Named("retry-coordinator"),
	}
}

// Execute runs up to MaxRetries+1 sequential attempts of execute. baseParams
// is never modified; each attempt gets a copy with the fee fields merged in.
func (c *Coordinator) Execute(ctx context.Context, txType string, execute ExecuteFunc, baseParams gateway.Params) (*TransactionResult, error) {
	log := logger.OperationLogger(c.logger, txType)

	explicit, err := explicitComputeUnits(baseParams)
	if err != nil {
		return nil, err
	}
	computeUnits, source := c.units.Resolve(txType, explicit)

	estimate, err := c.feeSource.GetFeeEstimate(ctx, c.opts.Chain, c.opts.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate priority fee: %w", err)
	}

	log.Info("Starting broadcast",
		zap.Uint64("estimated_fee_per_cu", estimate.FeePerComputeUnit),
		zap.Uint32("compute_units", computeUnits),
		zap.String("compute_units_source", string(source)),
		zap.Int("max_attempts", c.opts.MaxRetries+1))

	var (
		attempt   int
		history   []Attempt
		confirmed *TransactionResult
		terminal  error
		lastFail  error
		lastRes   *TransactionResult
	)

	operation := func() (*TransactionResult, error) {
		if err := ctx.Err(); err != nil {
			terminal = err
			return nil, backoff.Permanent(err)
		}

		index := attempt
		attempt++
		candidate, fee := c.opts.Bounds.Escalate(estimate.FeePerComputeUnit, c.opts.Multiplier, index)

		params := baseParams.Clone()
		params[ParamPriorityFeePerCU] = fee
		params[ParamComputeUnits] = computeUnits

		attemptLog := log.With(
			zap.Int("attempt", index),
			zap.Uint64("priority_fee_per_cu", fee),
			zap.Uint32("compute_units", computeUnits))
		attemptLog.Info("Submitting transaction",
			zap.Uint64("candidate_fee_per_cu", candidate),
			zap.Float64("total_priority_fee_sol", fees.TotalFeeSOL(fee, computeUnits)))

		metrics.RecordAttempt(txType)
		metrics.ObservePriorityFee(txType, fee)

		started := time.Now()
		res, execErr := execute(ctx, params)
		if execErr == nil && res == nil {
			execErr = ErrEmptyResult
		}
		outcome := Classify(res, execErr)
		if outcome == OutcomePending {
			res, outcome = c.awaitPending(ctx, attemptLog, res)
			if outcome == OutcomeTransport {
				execErr = ctx.Err()
			}
		}

		rec := Attempt{
			Index:            index,
			PriorityFeePerCU: fee,
			CandidateFee:     candidate,
			ComputeUnits:     computeUnits,
			Params:           params,
			Outcome:          outcome,
			StartedAt:        started,
			Duration:         time.Since(started),
		}
		if res != nil {
			rec.Signature = res.Signature
			rec.Error = res.Error
		}
		if execErr != nil {
			rec.Error = execErr.Error()
		}
		history = append(history, rec)
		metrics.RecordOutcome(txType, outcome.String())

		switch outcome {
		case OutcomeConfirmed:
			confirmed = res
			return res, nil

		case OutcomeFatal:
			attemptLog.Error("Transaction failed with non-retryable error", zap.String("error", res.Error))
			terminal = &FatalError{Attempt: index, Reason: res.Error, Result: res}
			return nil, backoff.Permanent(terminal)

		case OutcomeTransport:
			if ctxErr := ctx.Err(); ctxErr != nil {
				terminal = ctxErr
				return nil, backoff.Permanent(ctxErr)
			}
			if index >= c.opts.MaxRetries {
				attemptLog.Error("Execute call failed on final attempt",
				zap.Int("status_code", gateway.StatusCode(execErr)),
				zap.Error(execErr))
				terminal = execErr
				return nil, backoff.Permanent(execErr)
			}
			attemptLog.Warn("Execute call failed",
				zap.Int("status_code", gateway.StatusCode(execErr)),
				zap.Error(execErr))
			lastFail = execErr
			return nil, execErr

		default:
			attemptLog.Warn("Transaction attempt failed", zap.String("error", res.Error))
			lastFail = &failureError{msg: res.Error}
			lastRes = res
			return nil, lastFail
		}
	}

	_, retryErr := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.RetryInterval)),
		backoff.WithMaxTries(uint(c.opts.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug("Retrying with higher priority fee",
				zap.Int("next_attempt", attempt),
				zap.Duration("wait", next))
		}),
	)

	switch {
	case confirmed != nil:
		c.units.Set(txType, computeUnits)
		out := *confirmed
		out.PriorityFeePerCU = history[len(history)-1].PriorityFeePerCU
		out.ComputeUnits = computeUnits
		out.Attempts = history
		log.Info("Transaction confirmed",
			zap.String("signature", out.Signature),
			zap.Int("attempts", len(history)),
			zap.Uint64("priority_fee_per_cu", out.PriorityFeePerCU))
		return &out, nil

	case terminal != nil:
		if errors.Is(terminal, context.Canceled) || errors.Is(terminal, context.DeadlineExceeded) {
			metrics.RecordOutcome(txType, metrics.OutcomeCancelled)
		}
		return nil, terminal

	case ctx.Err() != nil:
		metrics.RecordOutcome(txType, metrics.OutcomeCancelled)
		return nil, ctx.Err()
	}

	metrics.RecordOutcome(txType, metrics.OutcomeExhausted)
	// every attempt underpaid, so the next operation refetches the estimate
	if inv, ok := c.feeSource.(feeInvalidator); ok {
		inv.Invalidate(c.opts.Chain, c.opts.Network)
	}
	exhausted := &ExhaustedError{Attempts: len(history), Last: lastFail, LastResult: lastRes}
	log.Error("Transaction retries exhausted", zap.Error(exhausted), zap.NamedError("last_error", retryErr))
	return nil, exhausted
}

// awaitPending resolves a pending execute result by polling its signature.
func (c *Coordinator) awaitPending(ctx context.Context, log *zap.Logger, res *TransactionResult) (*TransactionResult, Outcome) {
	if c.confirmer == nil || res.Signature == "" {
		out := *res
		out.Status = gateway.StatusFailed
		out.Error = ErrNotConfirmed.Error()
		return &out, OutcomeRetryable
	}

	log.Info("Transaction pending, awaiting confirmation", zap.String("signature", res.Signature))
	poll, err := c.confirmer.Await(ctx, c.opts.Chain, c.opts.Network, res.Signature)
	out := *res
	out.Confirmation = poll
	if err == nil {
		out.Status = gateway.StatusConfirmed
		return &out, OutcomeConfirmed
	}
	// cancelled while waiting; the caller reports ctx.Err()
	if ctx.Err() != nil {
		return nil, OutcomeTransport
	}

	out.Status = gateway.StatusFailed
	out.Error = fmt.Sprintf("%s: %v", ErrNotConfirmed, err)
	return &out, OutcomeRetryable
}

// explicitComputeUnits reads a compute unit figure the caller already
// learned, typically from a quote.
func explicitComputeUnits(params gateway.Params) (uint32, error) {
	raw, ok := params[ParamComputeUnits]
	if !ok || raw == nil {
		return 0, nil
	}

	var v float64
	switch n := raw.(type) {
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint32:
		return n, nil
	case uint64:
		v = float64(n)
	case float64:
		v = n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", ParamComputeUnits, err)
		}
		v = f
	default:
		return 0, fmt.Errorf("invalid %s type %T", ParamComputeUnits, raw)
	}
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%s out of range: %v", ParamComputeUnits, v)
	}
	return uint32(v), nil
}
