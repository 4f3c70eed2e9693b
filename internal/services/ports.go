package services

import (
	"context"
	"time"

	"raqam/internal/core"
)

// Ports for the stores the catch-up engine reads and writes.
type (
	ObligationStore interface {
		// ListDueObligations returns active obligations of owner with NextDue <= now,
		// ordered by NextDue then ID.
		ListDueObligations(ctx context.Context, ownerID string, now time.Time) ([]core.Obligation, error)
		GetObligation(ctx context.Context, id string) (core.Obligation, error)
		// UpdateObligationSchedule writes NextDue, LastProcessed, TotalOccurrences
		// and Status if the stored version still equals o.Version, and returns the
		// new version. A stale version yields core.ErrVersionConflict.
		UpdateObligationSchedule(ctx context.Context, o core.Obligation) (int64, error)
		// ListOwnersWithDueObligations returns every owner with at least one due obligation.
		ListOwnersWithDueObligations(ctx context.Context, now time.Time) ([]string, error)
	}

	TransactionStore interface {
		TransactionExists(ctx context.Context, ownerID, obligationID string, occurrence time.Time) (bool, error)
		// CreateTransaction inserts tx unless a transaction with the same
		// (owner, obligation, occurrence date) exists; created is false in that case.
		CreateTransaction(ctx context.Context, tx core.Transaction) (created bool, err error)
	}

	BudgetStore interface {
		// FindBudgetsCovering returns the owner's budgets for category whose window contains date.
		FindBudgetsCovering(ctx context.Context, ownerID, category string, date time.Time) ([]core.Budget, error)
		// ApplyBudgetSpend atomically applies core.Budget.ApplySpend to the stored budget.
		ApplyBudgetSpend(ctx context.Context, budgetID string, delta core.Money) (core.Budget, error)
	}

	// Store groups the ports a single backend provides.
	Store interface {
		ObligationStore
		TransactionStore
		BudgetStore
	}
)
