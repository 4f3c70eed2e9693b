package log

import "time"

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldError          = "error"
	FieldErrorKind      = "error_kind"
	FieldOperation      = "operation"
	FieldOwnerID        = "owner_id"
	FieldObligationID   = "obligation_id"
	FieldTransactionID  = "transaction_id"
	FieldBudgetID       = "budget_id"
	FieldCategory       = "category"
	FieldFrequency      = "frequency"
	FieldOccurrenceDate = "occurrence_date"
	FieldNextDue        = "next_due"
	FieldAmountCents    = "amount_cents"
	FieldSpentCents     = "spent_cents"
	FieldBudgetStatus   = "budget_status"
	FieldRunAt          = "run_at"
	FieldDuration       = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentCatchUp  = "catchup"
	ComponentBudget   = "budget"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSweeper  = "sweeper"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpMaterialize = "materialize"
	OpAdjust      = "adjust"
	OpAdvance     = "advance"
	OpCommit      = "commit"
	OpList        = "list"
	OpSweep       = "sweep"
	OpPublish     = "publish"
	OpConsume     = "consume"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

const dateLayout = "2006-01-02"

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithOwner adds the owner id.
func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

// WithObligation adds obligation-related fields.
func (f LogFields) WithObligation(id, category, frequency string, amountCents int64) LogFields {
	f[FieldObligationID] = id
	f[FieldCategory] = category
	f[FieldFrequency] = frequency
	f[FieldAmountCents] = amountCents
	return f
}

// WithOccurrence adds the occurrence date in YYYY-MM-DD form.
func (f LogFields) WithOccurrence(date time.Time) LogFields {
	f[FieldOccurrenceDate] = date.Format(dateLayout)
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
