package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"raqam/internal/log"
)

// SweepSummary aggregates the outcome of a sweep across owners.
type SweepSummary struct {
	Owners              int
	TransactionsCreated int
	ObligationsUpdated  int
	ObligationErrors    int
	FailedOwners        map[string]error
}

// Sweeper runs a catch-up for every owner with due obligations. Different
// owners run concurrently up to the configured limit.
type Sweeper struct {
	owners      ObligationStore
	runner      Runner
	concurrency int
	clock       func() time.Time
	logger      *log.Logger
}

// NewSweeper creates a sweeper. runner should serialize per owner.
func NewSweeper(owners ObligationStore, runner Runner, concurrency int, logger *log.Logger) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.Default(log.ComponentSweeper)
	}
	return &Sweeper{
		owners:      owners,
		runner:      runner,
		concurrency: concurrency,
		clock:       time.Now,
		logger:      logger.WithComponent(log.ComponentSweeper),
	}
}

// Sweep processes every owner that has due obligations at the current time.
// An owner's run-level failure is reported in the summary and does not stop
// the others.
func (s *Sweeper) Sweep(ctx context.Context) (SweepSummary, error) {
	summary := SweepSummary{FailedOwners: map[string]error{}}

	owners, err := s.owners.ListOwnersWithDueObligations(ctx, s.clock().UTC())
	if err != nil {
		return summary, fmt.Errorf("list owners with due obligations: %w", err)
	}
	summary.Owners = len(owners)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, ownerID := range owners {
		g.Go(func() error {
			result, err := s.runner.ProcessDue(ctx, ownerID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.FailedOwners[ownerID] = err
				s.logger.ErrorContext(ctx, "Owner catch-up failed",
					log.FieldOwnerID, ownerID,
					log.FieldError, err)
				return nil
			}
			summary.TransactionsCreated += len(result.CreatedTransactionIDs)
			summary.ObligationsUpdated += len(result.UpdatedObligationIDs)
			summary.ObligationErrors += len(result.Errors)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "Sweep complete",
		"owners", summary.Owners,
		"transactions_created", summary.TransactionsCreated,
		"obligations_updated", summary.ObligationsUpdated,
		"obligation_errors", summary.ObligationErrors,
		"failed_owners", len(summary.FailedOwners))

	return summary, nil
}
