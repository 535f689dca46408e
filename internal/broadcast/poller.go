// internal/broadcast/poller.go
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/utils/metrics"
	"go.uber.org/zap"
)

// TxPoller is the part of the Gateway client the poller needs.
type TxPoller interface {
	PollTransaction(ctx context.Context, chain, network, signature string) (*gateway.PollResponse, error)
}

// PollResult is one observation of a transaction's inclusion state.
type PollResult struct {
	Signature    string
	CurrentBlock uint64
	TxBlock      uint64
	TxStatus     gateway.TxStatus
	Fee          *float64
	Error        string
	ObservedAt   time.Time
}

// FeeLamports converts the reported fee from SOL to lamports. It returns
// zero when the Gateway did not report a fee.
func (r *PollResult) FeeLamports() uint64 {
	if r.Fee == nil {
		return 0
	}
	return uint64(*r.Fee*float64(solana.LAMPORTS_PER_SOL) + 0.5)
}

// Poller checks transaction status through the Gateway.
type Poller struct {
	client   TxPoller
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewPoller(client TxPoller, interval, timeout time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		client:   client,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("poller"),
	}
}

// Poll makes exactly one Gateway call. The caller owns cadence and timeout.
func (p *Poller) Poll(ctx context.Context, chain, network, signature string) (*PollResult, error) {
	if err := validateSignature(chain, signature); err != nil {
		return nil, err
	}

	resp, err := p.client.PollTransaction(ctx, chain, network, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to poll transaction %s: %w", signature, err)
	}

	res := &PollResult{
		Signature:    signature,
		CurrentBlock: resp.CurrentBlock,
		TxStatus:     resp.TxStatus,
		Fee:          resp.Fee,
		Error:        resp.Error,
		ObservedAt:   time.Now(),
	}
	if resp.TxBlock != nil {
		res.TxBlock = *resp.TxBlock
	}
	return res, nil
}

var errStillPending = errors.New("transaction still pending")

// Await polls until the transaction confirms, fails, or the poller timeout
// elapses. Poll errors are logged and retried on the next tick.
func (p *Poller) Await(ctx context.Context, chain, network, signature string) (*PollResult, error) {
	if err := validateSignature(chain, signature); err != nil {
		return nil, err
	}

	logger := p.logger.With(zap.String("signature", signature))
	var last *PollResult

	operation := func() (*PollResult, error) {
		res, err := p.Poll(ctx, chain, network, signature)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			logger.Debug("Error polling transaction", zap.Error(err))
			return nil, err
		}
		last = res
		switch res.TxStatus {
		case gateway.StatusConfirmed:
			return res, nil
		case gateway.StatusFailed:
			return res, backoff.Permanent(ErrTransactionFailed)
		default:
			return nil, errStillPending
		}
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.interval)),
		backoff.WithMaxElapsedTime(p.timeout),
	)
	if err == nil {
		logger.Info("Transaction confirmed",
			zap.Uint64("tx_block", res.TxBlock),
			zap.Uint64("current_block", res.CurrentBlock),
			zap.Uint64("fee_lamports", res.FeeLamports()))
		return res, nil
	}

	switch {
	case last != nil && last.TxStatus == gateway.StatusFailed:
		logger.Warn("Transaction failed on chain", zap.String("error", last.Error))
		if last.Error != "" {
			return last, fmt.Errorf("%w: %s", ErrTransactionFailed, last.Error)
		}
		return last, ErrTransactionFailed
	case ctx.Err() != nil:
		return last, ctx.Err()
	default:
		metrics.IncPollTimeout()
		logger.Warn("Transaction confirmation timed out", zap.Duration("timeout", p.timeout))
		return last, fmt.Errorf("%w after %s: %w", ErrConfirmationTimeout, p.timeout, err)
	}
}

func validateSignature(chain, signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSignature)
	}
	if strings.EqualFold(chain, "solana") {
		if _, err := solana.SignatureFromBase58(signature); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
	}
	return nil
}
