package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"raqam/internal/core"
	"raqam/internal/log"
	"raqam/internal/storage/memory"
)

// flakyBudgets fails spend updates for the listed budget ids.
type flakyBudgets struct {
	*memory.Store
	failing map[string]bool
	findErr error
	applied []string
}

func (f *flakyBudgets) FindBudgetsCovering(ctx context.Context, ownerID, category string, date time.Time) ([]core.Budget, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Store.FindBudgetsCovering(ctx, ownerID, category, date)
}

func (f *flakyBudgets) ApplyBudgetSpend(ctx context.Context, id string, delta core.Money) (core.Budget, error) {
	f.applied = append(f.applied, id)
	if f.failing[id] {
		return core.Budget{}, errDiskFull
	}
	return f.Store.ApplyBudgetSpend(ctx, id, delta)
}

func budgetFixture(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	mustAddBudget(t, store, core.Budget{
		ID: "april", OwnerID: "user-1", Category: "groceries",
		StartDate: core.NewDate(2024, 4, 1), EndDate: core.NewDate(2024, 4, 30),
		Amount: core.Money{Cents: 10000}, Spent: core.Money{Cents: 4000},
	})
	mustAddBudget(t, store, core.Budget{
		ID: "q2", OwnerID: "user-1", Category: "groceries",
		StartDate: core.NewDate(2024, 4, 1), EndDate: core.NewDate(2024, 6, 30),
		Amount: core.Money{Cents: 30000},
	})
	mustAddBudget(t, store, core.Budget{
		ID: "may", OwnerID: "user-1", Category: "groceries",
		StartDate: core.NewDate(2024, 5, 1), EndDate: core.NewDate(2024, 5, 31),
		Amount: core.Money{Cents: 10000},
	})
	mustAddBudget(t, store, core.Budget{
		ID: "other-owner", OwnerID: "user-2", Category: "groceries",
		StartDate: core.NewDate(2024, 4, 1), EndDate: core.NewDate(2024, 4, 30),
		Amount: core.Money{Cents: 10000},
	})
	return store
}

func TestBudgetAdjuster_NoopInputs(t *testing.T) {
	tests := []struct {
		name     string
		category string
		date     time.Time
		delta    core.Money
	}{
		{"blank category", "  ", core.NewDate(2024, 4, 10), core.Money{Cents: 100}},
		{"zero date", "groceries", time.Time{}, core.Money{Cents: 100}},
		{"zero delta", "groceries", core.NewDate(2024, 4, 10), core.Money{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budgets := &flakyBudgets{Store: budgetFixture(t)}
			a := NewBudgetAdjuster(budgets, log.Discard(), time.Second)

			if err := a.Adjust(context.Background(), "user-1", tt.category, tt.date, tt.delta); err != nil {
				t.Fatalf("Adjust() error = %v", err)
			}
			if len(budgets.applied) != 0 {
				t.Errorf("expected no budget updates, got %v", budgets.applied)
			}
		})
	}
}

func TestBudgetAdjuster_UpdatesEveryCoveringBudget(t *testing.T) {
	store := budgetFixture(t)
	a := NewBudgetAdjuster(store, log.Discard(), time.Second)

	if err := a.Adjust(context.Background(), "user-1", "groceries", core.NewDate(2024, 4, 30), core.Money{Cents: 7000}); err != nil {
		t.Fatalf("Adjust() error = %v", err)
	}

	tests := []struct {
		id         string
		wantSpent  int64
		wantStatus core.BudgetStatus
	}{
		{"april", 11000, core.BudgetExceeded},
		{"q2", 7000, core.BudgetActive},
		{"may", 0, core.BudgetActive},
		{"other-owner", 0, core.BudgetActive},
	}
	for _, tt := range tests {
		b, _ := store.Budget(tt.id)
		if b.Spent.Cents != tt.wantSpent || b.Status != tt.wantStatus {
			t.Errorf("%s: got %d/%s, want %d/%s", tt.id, b.Spent.Cents, b.Status, tt.wantSpent, tt.wantStatus)
		}
	}
}

func TestBudgetAdjuster_ReversalClampsAtZero(t *testing.T) {
	store := budgetFixture(t)
	a := NewBudgetAdjuster(store, log.Discard(), 0)

	if err := a.Adjust(context.Background(), "user-1", "groceries", core.NewDate(2024, 4, 2), core.Money{Cents: -5000}); err != nil {
		t.Fatalf("Adjust() error = %v", err)
	}
	b, _ := store.Budget("april")
	if b.Spent.Cents != 0 || b.Status != core.BudgetActive {
		t.Errorf("april: got %d/%s, want 0/active", b.Spent.Cents, b.Status)
	}
}

func TestBudgetAdjuster_FailureDoesNotBlockSiblings(t *testing.T) {
	budgets := &flakyBudgets{Store: budgetFixture(t), failing: map[string]bool{"april": true}}
	a := NewBudgetAdjuster(budgets, log.Discard(), time.Second)

	err := a.Adjust(context.Background(), "user-1", "groceries", core.NewDate(2024, 4, 15), core.Money{Cents: 500})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errDiskFull) {
		t.Errorf("error should wrap the cause, got %v", err)
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 1 {
		t.Errorf("expected one collected error, got %v", err)
	}

	if len(budgets.applied) != 2 {
		t.Errorf("both budgets should be attempted, got %v", budgets.applied)
	}
	q2, _ := budgets.Budget("q2")
	if q2.Spent.Cents != 500 {
		t.Errorf("q2 spent = %d, want 500", q2.Spent.Cents)
	}
}

func TestBudgetAdjuster_FindFailure(t *testing.T) {
	budgets := &flakyBudgets{Store: budgetFixture(t), findErr: errDiskFull}
	a := NewBudgetAdjuster(budgets, log.Discard(), time.Second)

	err := a.Adjust(context.Background(), "user-1", "groceries", core.NewDate(2024, 4, 15), core.Money{Cents: 500})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected find error, got %v", err)
	}
}
