package worker

import (
	"context"
	"fmt"
	"time"

	"raqam/internal/amqp"
	"raqam/internal/log"
	"raqam/internal/services"
)

// Sweeper catches up every owner with due obligations.
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepSummary, error)
}

// CatchUpWorker drives the catch-up engine from a sweep interval and from
// queued catch-up requests.
type CatchUpWorker struct {
	runner   services.Runner
	sweeper  Sweeper
	interval time.Duration
	logger   *log.Logger
}

func NewCatchUpWorker(runner services.Runner, sweeper Sweeper, interval time.Duration, logger *log.Logger) *CatchUpWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &CatchUpWorker{
		runner:   runner,
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleCatchUpRequest runs the catch-up for the requested owner. Failures of
// single obligations are not returned: the next trigger retries them, and
// requeueing would spin on a permanently broken obligation.
func (w *CatchUpWorker) HandleCatchUpRequest(ctx context.Context, msg *amqp.CatchUpRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing catch-up request",
		log.FieldOwnerID, msg.OwnerID,
		"requested_at", msg.RequestedAt.Format(time.RFC3339))

	result, err := w.runner.ProcessDue(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("catch-up for %s: %w", msg.OwnerID, err)
	}

	for _, e := range result.Errors {
		w.logger.WarnContext(ctx, "Obligation left for next run",
			log.FieldOwnerID, msg.OwnerID,
			log.FieldObligationID, e.ObligationID,
			log.FieldErrorKind, string(e.Kind),
			log.FieldError, e.Err)
	}

	w.logger.InfoContext(ctx, "Catch-up request complete",
		log.FieldOwnerID, msg.OwnerID,
		"transactions_created", len(result.CreatedTransactionIDs),
		"obligations_updated", len(result.UpdatedObligationIDs),
		"obligation_errors", len(result.Errors))
	return nil
}

// SweepOnce runs one sweep and logs its outcome.
func (w *CatchUpWorker) SweepOnce(ctx context.Context) (services.SweepSummary, error) {
	started := time.Now()
	summary, err := w.sweeper.Sweep(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Sweep failed",
			log.FieldOperation, log.OpSweep,
			log.FieldError, err)
		return summary, err
	}

	w.logger.InfoContext(ctx, "Sweep finished",
		"owners", summary.Owners,
		"transactions_created", summary.TransactionsCreated,
		"obligation_errors", summary.ObligationErrors,
		"failed_owners", len(summary.FailedOwners),
		log.FieldDuration, time.Since(started).Milliseconds())
	return summary, nil
}

// Run sweeps at startup, covering downtime, and then on every interval
// until ctx is done.
func (w *CatchUpWorker) Run(ctx context.Context) {
	w.logger.InfoContext(ctx, "Running startup sweep", "interval", w.interval)
	_, _ = w.SweepOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Stopping sweep loop", "reason", ctx.Err())
			return
		case <-ticker.C:
			_, _ = w.SweepOnce(ctx)
		}
	}
}
