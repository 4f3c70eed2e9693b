// Package memory provides an in-process store for the catch-up engine.
// It backs the "memory" data backend and the engine tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"raqam/internal/core"
)

type occurrenceKey struct {
	ownerID      string
	obligationID string
	occurrence   int64
}

type Store struct {
	mu           sync.Mutex
	obligations  map[string]core.Obligation
	budgets      map[string]core.Budget
	transactions []core.Transaction
	occurrences  map[occurrenceKey]string
}

func New() *Store {
	return &Store{
		obligations: map[string]core.Obligation{},
		budgets:     map[string]core.Budget{},
		occurrences: map[occurrenceKey]string{},
	}
}

func keyOf(ownerID, obligationID string, occurrence time.Time) occurrenceKey {
	return occurrenceKey{ownerID: ownerID, obligationID: obligationID, occurrence: occurrence.UTC().UnixNano()}
}

// AddObligation validates and stores o. A zero version starts at 1.
func (s *Store) AddObligation(o core.Obligation) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.Version == 0 {
		o.Version = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations[o.ID] = o
	return nil
}

// PutObligationUnchecked stores o without validation, for records that were
// edited into an invalid state outside the engine.
func (s *Store) PutObligationUnchecked(o core.Obligation) {
	if o.Version == 0 {
		o.Version = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations[o.ID] = o
}

// AddBudget validates and stores b with its status derived from spent.
func (s *Store) AddBudget(b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.Status = core.DeriveBudgetStatus(b.Spent, b.Amount)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) Budget(id string) (core.Budget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	return b, ok
}

// Transactions returns a copy of every stored transaction in insertion order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...)
}

func (s *Store) ListDueObligations(_ context.Context, ownerID string, now time.Time) ([]core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Obligation
	for _, o := range s.obligations {
		if o.OwnerID == ownerID && o.Status == core.ObligationActive && !o.NextDue.After(now) {
			out = append(out, o)
		}
	}
	sortByDue(out)
	return out, nil
}

func (s *Store) GetObligation(_ context.Context, id string) (core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[id]
	if !ok {
		return core.Obligation{}, fmt.Errorf("obligation %s: %w", id, core.ErrNotFound)
	}
	return o, nil
}

func (s *Store) UpdateObligationSchedule(_ context.Context, o core.Obligation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.obligations[o.ID]
	if !ok {
		return 0, fmt.Errorf("obligation %s: %w", o.ID, core.ErrNotFound)
	}
	if stored.Version != o.Version {
		return 0, fmt.Errorf("obligation %s at version %d: %w", o.ID, o.Version, core.ErrVersionConflict)
	}
	stored.NextDue = o.NextDue
	stored.LastProcessed = o.LastProcessed
	stored.TotalOccurrences = o.TotalOccurrences
	stored.Status = o.Status
	stored.Version++
	s.obligations[o.ID] = stored
	return stored.Version, nil
}

func (s *Store) ListOwnersWithDueObligations(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var owners []string
	for _, o := range s.obligations {
		if o.Status != core.ObligationActive || o.NextDue.After(now) {
			continue
		}
		if _, ok := seen[o.OwnerID]; ok {
			continue
		}
		seen[o.OwnerID] = struct{}{}
		owners = append(owners, o.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *Store) TransactionExists(_ context.Context, ownerID, obligationID string, occurrence time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.occurrences[keyOf(ownerID, obligationID, occurrence)]
	return ok, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.Metadata.ObligationID != "" {
		k := keyOf(tx.OwnerID, tx.Metadata.ObligationID, tx.Metadata.OccurrenceDate)
		if _, ok := s.occurrences[k]; ok {
			return false, nil
		}
		s.occurrences[k] = tx.ID
	}
	s.transactions = append(s.transactions, tx)
	return true, nil
}

func (s *Store) FindBudgetsCovering(_ context.Context, ownerID, category string, date time.Time) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.OwnerID == ownerID && b.Category == category && b.Covers(date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ApplyBudgetSpend(_ context.Context, budgetID string, delta core.Money) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[budgetID]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %s: %w", budgetID, core.ErrNotFound)
	}
	b = b.ApplySpend(delta)
	s.budgets[budgetID] = b
	return b, nil
}

func sortByDue(obs []core.Obligation) {
	sort.Slice(obs, func(i, j int) bool {
		if !obs[i].NextDue.Equal(obs[j].NextDue) {
			return obs[i].NextDue.Before(obs[j].NextDue)
		}
		return obs[i].ID < obs[j].ID
	})
}
