package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	ObligationActive ObligationStatus = "active"
	ObligationPaused ObligationStatus = "paused"
	ObligationEnded  ObligationStatus = "ended"
)

const (
	BudgetActive   BudgetStatus = "active"
	BudgetExceeded BudgetStatus = "exceeded"
)

const (
	TransactionTypeExpense     = "expense"
	TransactionStatusCompleted = "completed"
)

type (
	Frequency        string
	ObligationStatus string
	BudgetStatus     string

	Money struct {
		Cents int64
	}

	// Obligation is a recurring financial commitment. NextDue is always the
	// earliest occurrence that has not been materialized yet.
	Obligation struct {
		ID               string
		OwnerID          string
		Description      string
		Amount           Money // unsigned magnitude
		Category         string
		Frequency        Frequency
		NextDue          time.Time
		Status           ObligationStatus
		LastProcessed    time.Time
		TotalOccurrences int64
		LedgerID         string
		EndDate          time.Time // zero means open-ended
		MaxOccurrences   int64     // zero means unlimited
		Version          int64
	}

	// OccurrenceMetadata links a materialized transaction back to its obligation.
	OccurrenceMetadata struct {
		ObligationID   string
		OccurrenceDate time.Time
	}

	Transaction struct {
		ID          string
		OwnerID     string
		Description string
		Amount      Money // signed, negative is an outflow
		Category    string
		Date        time.Time
		LedgerID    string
		Type        string
		Status      string
		Metadata    OccurrenceMetadata
	}

	// Budget windows are closed on both ends.
	Budget struct {
		ID        string
		OwnerID   string
		Category  string
		StartDate time.Time
		EndDate   time.Time
		Amount    Money
		Spent     Money
		Status    BudgetStatus
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyOwner       = errors.New("empty owner")
	ErrInvalidWindow    = errors.New("budget end date before start date")
)

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// NewDate creates a UTC midnight timestamp from year, month, day.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func (o Obligation) IsActive() bool {
	return o.Status == ObligationActive
}

// ReachedEnd reports whether materializing the occurrence at NextDue would
// violate the obligation's end date or occurrence cap.
func (o Obligation) ReachedEnd() bool {
	if o.MaxOccurrences > 0 && o.TotalOccurrences >= o.MaxOccurrences {
		return true
	}
	if !o.EndDate.IsZero() && o.NextDue.After(o.EndDate) {
		return true
	}
	return false
}

func (o Obligation) Validate() error {
	if strings.TrimSpace(o.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if len(strings.TrimSpace(o.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(o.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := o.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(o.Category) == "" {
		return ErrEmptyCategory
	}
	if !o.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if o.NextDue.IsZero() {
		return errors.New("next due date cannot be zero")
	}
	switch o.Status {
	case ObligationActive, ObligationPaused, ObligationEnded:
	default:
		return errors.New("invalid obligation status")
	}
	if o.MaxOccurrences < 0 {
		return errors.New("max occurrences cannot be negative")
	}
	return nil
}

// Covers reports whether the day of date falls inside the budget window.
func (b Budget) Covers(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(b.StartDate)) && !d.After(Day(b.EndDate))
}

// ApplySpend adds delta to Spent, clamping at zero, and re-derives Status.
func (b Budget) ApplySpend(delta Money) Budget {
	spent := b.Spent.Cents + delta.Cents
	if spent < 0 {
		spent = 0
	}
	b.Spent = Money{Cents: spent}
	b.Status = DeriveBudgetStatus(b.Spent, b.Amount)
	return b
}

// DeriveBudgetStatus returns exceeded iff spent >= limit.
func DeriveBudgetStatus(spent, limit Money) BudgetStatus {
	if spent.Cents >= limit.Cents {
		return BudgetExceeded
	}
	return BudgetActive
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return errors.New("budget window dates cannot be zero")
	}
	if b.EndDate.Before(b.StartDate) {
		return ErrInvalidWindow
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.Spent.Cents < 0 {
		return errors.New("spent cannot be negative")
	}
	return nil
}
