package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"raqam/internal/core"
	"raqam/internal/log"
)

// SpendAdjuster is the budget side effect of a materialized occurrence.
type SpendAdjuster interface {
	Adjust(ctx context.Context, ownerID, category string, date time.Time, delta core.Money) error
}

// ProcessorConfig holds configuration for the catch-up processor
type ProcessorConfig struct {
	// StorageTimeout bounds every individual store call (default: 5s)
	StorageTimeout time.Duration

	// CheckpointEachOccurrence persists the obligation's schedule after every
	// occurrence instead of once per obligation, so an interrupted run resumes
	// at the next unmaterialized occurrence (default: true)
	CheckpointEachOccurrence bool
}

// DefaultProcessorConfig returns sensible defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		StorageTimeout:           5 * time.Second,
		CheckpointEachOccurrence: true,
	}
}

// RunResult reports what a single ProcessDue call did.
type RunResult struct {
	OwnerID               string
	RunAt                 time.Time
	CreatedTransactionIDs []string
	UpdatedObligationIDs  []string
	Errors                []core.ObligationError
}

// ProcessorOption customizes a CatchUpProcessor.
type ProcessorOption func(*CatchUpProcessor)

// WithClock overrides the source of the run's "now".
func WithClock(clock func() time.Time) ProcessorOption {
	return func(p *CatchUpProcessor) { p.clock = clock }
}

// WithIDGenerator overrides how transaction ids are generated.
func WithIDGenerator(newID func() string) ProcessorOption {
	return func(p *CatchUpProcessor) { p.newID = newID }
}

// CatchUpProcessor materializes every due occurrence of a user's recurring
// obligations and rolls their schedules forward past now.
//
// It is not safe to run concurrently for the same owner: the existence check
// and the insert are separate store calls. Wrap it in a SerializedProcessor.
type CatchUpProcessor struct {
	store    Store
	adjuster SpendAdjuster
	config   ProcessorConfig
	clock    func() time.Time
	newID    func() string
	logger   *log.Logger
	events   *log.StructuredLogger
}

// NewCatchUpProcessor creates a new catch-up processor
func NewCatchUpProcessor(store Store, adjuster SpendAdjuster, config ProcessorConfig, logger *log.Logger, opts ...ProcessorOption) *CatchUpProcessor {
	if logger == nil {
		logger = log.Default(log.ComponentCatchUp)
	}
	logger = logger.WithComponent(log.ComponentCatchUp)
	p := &CatchUpProcessor{
		store:    store,
		adjuster: adjuster,
		config:   config,
		clock:    time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDue catches up every due obligation of ownerID. Failures of single
// obligations are reported in RunResult.Errors; only a failure to list the
// owner's obligations is returned as an error.
func (p *CatchUpProcessor) ProcessDue(ctx context.Context, ownerID string) (RunResult, error) {
	if p.store == nil || p.adjuster == nil {
		return RunResult{}, fmt.Errorf("processor not properly initialized")
	}

	now := p.clock().UTC()
	result := RunResult{OwnerID: ownerID, RunAt: now}
	started := time.Now()

	listCtx, cancel := withTimeout(ctx, p.config.StorageTimeout)
	due, err := p.store.ListDueObligations(listCtx, ownerID, now)
	cancel()
	if err != nil {
		return result, fmt.Errorf("list due obligations for %s: %w: %w", ownerID, core.ErrStorageUnavailable, err)
	}

	p.logger.InfoContext(ctx, "Processing due obligations",
		log.FieldOwnerID, ownerID,
		"total_due", len(due),
		log.FieldRunAt, now.Format(time.RFC3339))

	for _, ob := range due {
		if err := ctx.Err(); err != nil {
			p.recordFailure(ctx, &result, ob, fmt.Errorf("run cancelled: %w", err), false)
			continue
		}
		p.processObligation(ctx, &result, ob, now)
	}

	p.logger.InfoContext(ctx, "Catch-up run complete",
		log.FieldOwnerID, ownerID,
		"transactions_created", len(result.CreatedTransactionIDs),
		"obligations_updated", len(result.UpdatedObligationIDs),
		"errors", len(result.Errors),
		log.FieldDuration, time.Since(started).Milliseconds())

	return result, nil
}

// processObligation runs the occurrence loop for one obligation and records
// its outcome on result.
func (p *CatchUpProcessor) processObligation(ctx context.Context, result *RunResult, listed core.Obligation, now time.Time) {
	if _, err := GetAdvancer(listed.Frequency); err != nil {
		p.recordFailure(ctx, result, listed, err, false)
		return
	}

	// Re-read the obligation; it may have been paused or advanced since the list.
	getCtx, cancel := withTimeout(ctx, p.config.StorageTimeout)
	ob, err := p.store.GetObligation(getCtx, listed.ID)
	cancel()
	if err != nil {
		p.recordFailure(ctx, result, listed, fmt.Errorf("get obligation: %w", err), false)
		return
	}

	var (
		createdAny bool
		committed  bool
		dirty      bool
	)

	for ob.IsActive() && !ob.NextDue.After(now) {
		if ob.ReachedEnd() {
			ob.Status = core.ObligationEnded
			dirty = true
			break
		}

		occurrence := ob.NextDue
		txID, created, err := p.materialize(ctx, ob, occurrence)
		if err != nil {
			p.recordFailure(ctx, result, ob, err, createdAny || committed)
			p.markUpdated(result, ob.ID, committed)
			return
		}

		if created {
			createdAny = true
			result.CreatedTransactionIDs = append(result.CreatedTransactionIDs, txID)
			p.events.LogOccurrenceMaterialized(ctx, ob.OwnerID, ob.ID, txID, occurrence, ob.Amount.Cents)

			if err := p.adjuster.Adjust(ctx, ob.OwnerID, ob.Category, occurrence, ob.Amount.Abs()); err != nil {
				p.recordFailure(ctx, result, ob, fmt.Errorf("adjust budgets for %s: %w", occurrence.Format("2006-01-02"), err), true)
				p.markUpdated(result, ob.ID, committed)
				return
			}
		}

		next, err := Advance(occurrence, ob.Frequency)
		if err != nil {
			p.recordFailure(ctx, result, ob, err, createdAny || committed)
			p.markUpdated(result, ob.ID, committed)
			return
		}
		ob.TotalOccurrences++
		ob.LastProcessed = occurrence
		ob.NextDue = next
		dirty = true

		if p.config.CheckpointEachOccurrence {
			if err := p.commit(ctx, &ob); err != nil {
				p.recordFailure(ctx, result, ob, err, createdAny || committed)
				p.markUpdated(result, ob.ID, committed)
				return
			}
			committed = true
			dirty = false
		}
	}

	if ob.IsActive() && ob.ReachedEnd() {
		ob.Status = core.ObligationEnded
		dirty = true
	}

	if dirty {
		if err := p.commit(ctx, &ob); err != nil {
			p.recordFailure(ctx, result, ob, err, createdAny || committed)
			p.markUpdated(result, ob.ID, committed)
			return
		}
		committed = true
	}

	p.markUpdated(result, ob.ID, committed)

	if committed {
		p.logger.InfoContext(ctx, "Obligation schedule advanced",
			log.FieldObligationID, ob.ID,
			log.FieldNextDue, ob.NextDue.Format("2006-01-02"),
			"total_occurrences", ob.TotalOccurrences,
			"status", ob.Status)
	}
}

// materialize ensures the transaction for occurrence exists. created is false
// when a previous run already materialized it.
func (p *CatchUpProcessor) materialize(ctx context.Context, ob core.Obligation, occurrence time.Time) (string, bool, error) {
	existsCtx, cancel := withTimeout(ctx, p.config.StorageTimeout)
	exists, err := p.store.TransactionExists(existsCtx, ob.OwnerID, ob.ID, occurrence)
	cancel()
	if err != nil {
		return "", false, fmt.Errorf("check existing transaction: %w", err)
	}
	if exists {
		p.logger.DebugContext(ctx, "Occurrence already materialized",
			log.FieldObligationID, ob.ID,
			log.FieldOccurrenceDate, occurrence.Format("2006-01-02"))
		return "", false, nil
	}

	tx := core.Transaction{
		ID:          p.newID(),
		OwnerID:     ob.OwnerID,
		Description: ob.Description,
		Amount:      ob.Amount.Abs().Neg(),
		Category:    ob.Category,
		Date:        occurrence,
		LedgerID:    ob.LedgerID,
		Type:        core.TransactionTypeExpense,
		Status:      core.TransactionStatusCompleted,
		Metadata: core.OccurrenceMetadata{
			ObligationID:   ob.ID,
			OccurrenceDate: occurrence,
		},
	}

	createCtx, cancel := withTimeout(ctx, p.config.StorageTimeout)
	created, err := p.store.CreateTransaction(createCtx, tx)
	cancel()
	if err != nil {
		return "", false, fmt.Errorf("create transaction: %w", err)
	}
	if !created {
		p.logger.WarnContext(ctx, "Occurrence materialized concurrently",
			log.FieldObligationID, ob.ID,
			log.FieldOccurrenceDate, occurrence.Format("2006-01-02"))
		return "", false, nil
	}
	return tx.ID, true, nil
}

// commit writes the obligation's schedule guarded by its version and bumps
// ob.Version on success.
func (p *CatchUpProcessor) commit(ctx context.Context, ob *core.Obligation) error {
	updCtx, cancel := withTimeout(ctx, p.config.StorageTimeout)
	version, err := p.store.UpdateObligationSchedule(updCtx, *ob)
	cancel()
	if err != nil {
		return fmt.Errorf("update obligation schedule: %w", err)
	}
	ob.Version = version
	return nil
}

func (p *CatchUpProcessor) markUpdated(result *RunResult, obligationID string, committed bool) {
	if committed {
		result.UpdatedObligationIDs = append(result.UpdatedObligationIDs, obligationID)
	}
}

// recordFailure classifies err and appends it to result.Errors. partial is
// true once any side effect of this obligation's run has been committed.
func (p *CatchUpProcessor) recordFailure(ctx context.Context, result *RunResult, ob core.Obligation, err error, partial bool) {
	kind := classifyFailure(err, partial)
	switch kind {
	case core.KindPartialCommit:
		err = fmt.Errorf("%w: %w", core.ErrPartialCommit, err)
	case core.KindStorageUnavailable:
		if !errors.Is(err, core.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
		}
	}
	result.Errors = append(result.Errors, core.ObligationError{
		ObligationID: ob.ID,
		Kind:         kind,
		Err:          err,
	})

	fields := log.NewFields().
		WithOwner(ob.OwnerID).
		WithObligation(ob.ID, ob.Category, string(ob.Frequency), ob.Amount.Cents)
	fields[log.FieldErrorKind] = string(kind)

	if kind == core.KindPartialCommit {
		p.events.LogWarn(ctx, "Obligation partially committed", err, log.OpMaterialize, fields)
		return
	}
	p.events.LogError(ctx, "Failed to process obligation", err, log.OpMaterialize, fields)
}

func classifyFailure(err error, partial bool) core.ErrorKind {
	switch {
	case errors.Is(err, core.ErrInvalidFrequency):
		return core.KindInvalidFrequency
	case partial:
		return core.KindPartialCommit
	default:
		return core.KindStorageUnavailable
	}
}
