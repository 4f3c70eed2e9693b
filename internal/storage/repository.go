package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"raqam/internal/core"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so lexical order matches
// chronological order; budget windows are stored as plain dates.
const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout      = "2006-01-02"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const obligationColumns = `id, owner_id, description, amount_cents, category, frequency, next_due, status,
	last_processed, total_occurrences, ledger_id, end_date, max_occurrences, version`

// CreateObligation inserts a new obligation at version 1.
func (r *SQLiteRepository) CreateObligation(ctx context.Context, o core.Obligation) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("validate obligation: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO obligations (`+obligationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		o.ID, o.OwnerID, o.Description, o.Amount.Cents, o.Category, string(o.Frequency),
		formatTimestamp(o.NextDue), string(o.Status), nullTimestamp(o.LastProcessed),
		o.TotalOccurrences, o.LedgerID, nullTimestamp(o.EndDate), o.MaxOccurrences,
	)
	if err != nil {
		return fmt.Errorf("create obligation: %w", err)
	}
	return nil
}

// ListDueObligations implements services.ObligationStore
func (r *SQLiteRepository) ListDueObligations(ctx context.Context, ownerID string, now time.Time) ([]core.Obligation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+obligationColumns+`
		FROM obligations
		WHERE owner_id = ? AND status = ? AND next_due <= ?
		ORDER BY next_due, id`,
		ownerID, string(core.ObligationActive), formatTimestamp(now))
	if err != nil {
		return nil, fmt.Errorf("query due obligations: %w", err)
	}
	defer rows.Close()

	var out []core.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetObligation implements services.ObligationStore
func (r *SQLiteRepository) GetObligation(ctx context.Context, id string) (core.Obligation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+obligationColumns+` FROM obligations WHERE id = ?`, id)
	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Obligation{}, fmt.Errorf("obligation %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Obligation{}, fmt.Errorf("get obligation %s: %w", id, err)
	}
	return o, nil
}

// UpdateObligationSchedule implements services.ObligationStore. The write only
// applies if the stored version still matches o.Version.
func (r *SQLiteRepository) UpdateObligationSchedule(ctx context.Context, o core.Obligation) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE obligations
		SET next_due = ?, last_processed = ?, total_occurrences = ?, status = ?,
		    version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
		RETURNING version`,
		formatTimestamp(o.NextDue), nullTimestamp(o.LastProcessed), o.TotalOccurrences,
		string(o.Status), o.ID, o.Version,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetObligation(ctx, o.ID); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("obligation %s at version %d: %w", o.ID, o.Version, core.ErrVersionConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("update obligation schedule: %w", err)
	}

	slog.DebugContext(ctx, "Obligation schedule saved",
		"obligation_id", o.ID,
		"next_due", o.NextDue.Format(dateLayout),
		"version", version)
	return version, nil
}

// ListOwnersWithDueObligations implements services.ObligationStore
func (r *SQLiteRepository) ListOwnersWithDueObligations(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id FROM obligations
		WHERE status = ? AND next_due <= ?
		ORDER BY owner_id`,
		string(core.ObligationActive), formatTimestamp(now))
	if err != nil {
		return nil, fmt.Errorf("query owners with due obligations: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// TransactionExists implements services.TransactionStore
func (r *SQLiteRepository) TransactionExists(ctx context.Context, ownerID, obligationID string, occurrence time.Time) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM transactions
		WHERE owner_id = ? AND obligation_id = ? AND occurrence_date = ?
		LIMIT 1`,
		ownerID, obligationID, formatTimestamp(occurrence)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check transaction exists: %w", err)
	}
	return true, nil
}

// CreateTransaction implements services.TransactionStore. The unique index on
// (owner_id, obligation_id, occurrence_date) turns a duplicate occurrence into
// a no-op reported as created == false.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	var obligationID, occurrence any
	if tx.Metadata.ObligationID != "" {
		obligationID = tx.Metadata.ObligationID
		occurrence = formatTimestamp(tx.Metadata.OccurrenceDate)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, owner_id, description, amount_cents, category, date, ledger_id, type, status, obligation_id, occurrence_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		tx.ID, tx.OwnerID, tx.Description, tx.Amount.Cents, tx.Category,
		formatTimestamp(tx.Date), tx.LedgerID, tx.Type, tx.Status, obligationID, occurrence,
	)
	if err != nil {
		return false, fmt.Errorf("create transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create transaction rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"obligation_id", tx.Metadata.ObligationID,
		"amount_cents", tx.Amount.Cents,
		"date", tx.Date.Format(dateLayout))
	return true, nil
}

// ListTransactions returns an owner's transactions ordered by date.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, description, amount_cents, category, date, ledger_id, type, status,
		       obligation_id, occurrence_date
		FROM transactions WHERE owner_id = ?
		ORDER BY date, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                    core.Transaction
			date                  string
			obligationID, occDate sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Description, &tx.Amount.Cents, &tx.Category,
			&date, &tx.LedgerID, &tx.Type, &tx.Status, &obligationID, &occDate); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Date, err = parseTimestamp(date); err != nil {
			return nil, err
		}
		tx.Metadata.ObligationID = obligationID.String
		if tx.Metadata.OccurrenceDate, err = parseNullTimestamp(occDate); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// CreateBudget inserts a budget with its status derived from spent.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validate budget: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, owner_id, category, start_date, end_date, amount_cents, spent_cents, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Category, b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout),
		b.Amount.Cents, b.Spent.Cents, string(core.DeriveBudgetStatus(b.Spent, b.Amount)),
	)
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

const budgetColumns = `id, owner_id, category, start_date, end_date, amount_cents, spent_cents, status`

// GetBudget returns a budget by id.
func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, err)
	}
	return b, nil
}

// FindBudgetsCovering implements services.BudgetStore
func (r *SQLiteRepository) FindBudgetsCovering(ctx context.Context, ownerID, category string, date time.Time) ([]core.Budget, error) {
	day := core.Day(date).Format(dateLayout)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE owner_id = ? AND category = ? AND start_date <= ? AND end_date >= ?
		ORDER BY id`,
		ownerID, category, day, day)
	if err != nil {
		return nil, fmt.Errorf("query budgets covering %s: %w", day, err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ApplyBudgetSpend implements services.BudgetStore as a single UPDATE so the
// clamp and the status derivation see the same spent value.
func (r *SQLiteRepository) ApplyBudgetSpend(ctx context.Context, budgetID string, delta core.Money) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, `
		UPDATE budgets
		SET spent_cents = MAX(0, spent_cents + ?1),
		    status = CASE WHEN MAX(0, spent_cents + ?1) >= amount_cents THEN ?2 ELSE ?3 END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?4
		RETURNING `+budgetColumns,
		delta.Cents, string(core.BudgetExceeded), string(core.BudgetActive), budgetID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", budgetID, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("apply budget spend: %w", err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObligation(s scanner) (core.Obligation, error) {
	var (
		o                      core.Obligation
		frequency, status      string
		nextDue                string
		lastProcessed, endDate sql.NullString
	)
	err := s.Scan(&o.ID, &o.OwnerID, &o.Description, &o.Amount.Cents, &o.Category, &frequency,
		&nextDue, &status, &lastProcessed, &o.TotalOccurrences, &o.LedgerID, &endDate,
		&o.MaxOccurrences, &o.Version)
	if err != nil {
		return core.Obligation{}, err
	}
	o.Frequency = core.Frequency(frequency)
	o.Status = core.ObligationStatus(status)
	if o.NextDue, err = parseTimestamp(nextDue); err != nil {
		return core.Obligation{}, err
	}
	if o.LastProcessed, err = parseNullTimestamp(lastProcessed); err != nil {
		return core.Obligation{}, err
	}
	if o.EndDate, err = parseNullTimestamp(endDate); err != nil {
		return core.Obligation{}, err
	}
	return o, nil
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b          core.Budget
		start, end string
		status     string
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Category, &start, &end, &b.Amount.Cents, &b.Spent.Cents, &status); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = time.Parse(dateLayout, start); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget start date: %w", err)
	}
	if b.EndDate, err = time.Parse(dateLayout, end); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget end date: %w", err)
	}
	b.Status = core.BudgetStatus(status)
	return b, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTimestamp(t)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTimestamp(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(s.String)
}
