package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"raqam/internal/core"
	"raqam/internal/log"
	"raqam/internal/storage/memory"
)

// faultyStore wraps the memory store and injects failures per obligation.
type faultyStore struct {
	*memory.Store

	mu sync.Mutex
	// createFailures[obligationID] fails the n-th (1-based) create for that obligation; 0 fails every create.
	createFailures map[string]int
	createCalls    map[string]int
	updateErr      map[string]error
	existsBlocks   map[string]bool
	existsLies     bool
	staleList      []core.Obligation
	listErr        error
}

func newFaultyStore(t *testing.T) *faultyStore {
	t.Helper()
	return &faultyStore{
		Store:          memory.New(),
		createFailures: map[string]int{},
		createCalls:    map[string]int{},
		updateErr:      map[string]error{},
		existsBlocks:   map[string]bool{},
	}
}

var errDiskFull = fmt.Errorf("disk I/O error")

func (f *faultyStore) ListDueObligations(ctx context.Context, ownerID string, now time.Time) ([]core.Obligation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.staleList != nil {
		return f.staleList, nil
	}
	return f.Store.ListDueObligations(ctx, ownerID, now)
}

func (f *faultyStore) TransactionExists(ctx context.Context, ownerID, obligationID string, occurrence time.Time) (bool, error) {
	if f.existsBlocks[obligationID] {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if f.existsLies {
		return false, nil
	}
	return f.Store.TransactionExists(ctx, ownerID, obligationID, occurrence)
}

func (f *faultyStore) CreateTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	f.mu.Lock()
	id := tx.Metadata.ObligationID
	f.createCalls[id]++
	n, ok := f.createFailures[id]
	call := f.createCalls[id]
	f.mu.Unlock()
	if ok && (n == 0 || n == call) {
		return false, errDiskFull
	}
	return f.Store.CreateTransaction(ctx, tx)
}

func (f *faultyStore) UpdateObligationSchedule(ctx context.Context, o core.Obligation) (int64, error) {
	if err := f.updateErr[o.ID]; err != nil {
		return 0, err
	}
	return f.Store.UpdateObligationSchedule(ctx, o)
}

func (f *faultyStore) clearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFailures = map[string]int{}
	f.updateErr = map[string]error{}
	f.existsBlocks = map[string]bool{}
}

// failingAdjuster fails for one category and delegates otherwise.
type failingAdjuster struct {
	next     SpendAdjuster
	category string
}

func (a failingAdjuster) Adjust(ctx context.Context, ownerID, category string, date time.Time, delta core.Money) error {
	if category == a.category {
		return fmt.Errorf("budget store offline")
	}
	return a.next.Adjust(ctx, ownerID, category, date, delta)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("tx-%03d", n)
	}
}

func newTestProcessor(store Store, now time.Time, cfg ProcessorConfig) *CatchUpProcessor {
	logger := log.Discard()
	adjuster := NewBudgetAdjuster(store, logger, cfg.StorageTimeout)
	return NewCatchUpProcessor(store, adjuster, cfg, logger,
		WithClock(fixedClock(now)),
		WithIDGenerator(sequentialIDs()))
}

func monthlyObligation(id string, nextDue time.Time, cents int64) core.Obligation {
	return core.Obligation{
		ID:          id,
		OwnerID:     "user-1",
		Description: "Subscription " + id,
		Amount:      core.Money{Cents: cents},
		Category:    "subscriptions",
		Frequency:   core.Monthly,
		NextDue:     nextDue,
		Status:      core.ObligationActive,
		LedgerID:    "main",
	}
}

func mustAddObligation(t *testing.T, s *memory.Store, o core.Obligation) {
	t.Helper()
	if err := s.AddObligation(o); err != nil {
		t.Fatalf("AddObligation(%s): %v", o.ID, err)
	}
}

func mustAddBudget(t *testing.T, s *memory.Store, b core.Budget) {
	t.Helper()
	if err := s.AddBudget(b); err != nil {
		t.Fatalf("AddBudget(%s): %v", b.ID, err)
	}
}

func mustGetObligation(t *testing.T, s Store, id string) core.Obligation {
	t.Helper()
	o, err := s.GetObligation(context.Background(), id)
	if err != nil {
		t.Fatalf("GetObligation(%s): %v", id, err)
	}
	return o
}

func transactionsFor(s *memory.Store, obligationID string) []core.Transaction {
	var out []core.Transaction
	for _, tx := range s.Transactions() {
		if tx.Metadata.ObligationID == obligationID {
			out = append(out, tx)
		}
	}
	return out
}
