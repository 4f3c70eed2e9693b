package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"raqam/internal/core"
	"raqam/internal/log"
)

// BudgetAdjuster propagates spend into every budget whose window covers an
// occurrence.
type BudgetAdjuster struct {
	budgets BudgetStore
	logger  *log.Logger
	timeout time.Duration
}

// NewBudgetAdjuster creates an adjuster. A zero timeout leaves store calls
// bounded only by the caller's context.
func NewBudgetAdjuster(budgets BudgetStore, logger *log.Logger, timeout time.Duration) *BudgetAdjuster {
	if logger == nil {
		logger = log.Default(log.ComponentBudget)
	}
	return &BudgetAdjuster{
		budgets: budgets,
		logger:  logger.WithComponent(log.ComponentBudget),
		timeout: timeout,
	}
}

// Adjust adds delta to the spend of every matching budget. It is a no-op when
// category, date or delta is empty. Each budget is updated independently;
// failures are collected and returned together after all budgets were tried.
func (a *BudgetAdjuster) Adjust(ctx context.Context, ownerID, category string, date time.Time, delta core.Money) error {
	if strings.TrimSpace(category) == "" || date.IsZero() || delta.IsZero() {
		return nil
	}
	if a.budgets == nil {
		return fmt.Errorf("budget adjuster not properly initialized")
	}

	findCtx, cancel := withTimeout(ctx, a.timeout)
	budgets, err := a.budgets.FindBudgetsCovering(findCtx, ownerID, category, date)
	cancel()
	if err != nil {
		return fmt.Errorf("find budgets covering %s: %w", date.Format("2006-01-02"), err)
	}

	var result *multierror.Error
	for _, b := range budgets {
		updCtx, cancel := withTimeout(ctx, a.timeout)
		updated, err := a.budgets.ApplyBudgetSpend(updCtx, b.ID, delta)
		cancel()
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to apply budget spend",
				log.FieldBudgetID, b.ID,
				log.FieldOwnerID, ownerID,
				log.FieldCategory, category,
				log.FieldAmountCents, delta.Cents,
				log.FieldError, err)
			result = multierror.Append(result, fmt.Errorf("budget %s: %w", b.ID, err))
			continue
		}

		a.logger.DebugContext(ctx, "Budget spend applied",
			log.FieldBudgetID, updated.ID,
			log.FieldSpentCents, updated.Spent.Cents,
			log.FieldBudgetStatus, updated.Status)
	}

	return result.ErrorOrNil()
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
