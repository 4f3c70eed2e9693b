package log

import (
	"context"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return Default("unknown")
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogOccurrenceMaterialized logs a transaction created for an obligation occurrence.
func (sl *StructuredLogger) LogOccurrenceMaterialized(ctx context.Context, ownerID, obligationID, transactionID string, occurrence time.Time, amountCents int64) {
	fields := NewFields().
		WithOwner(ownerID).
		WithOccurrence(occurrence).
		WithOperation(OpMaterialize).
		ToSlice()

	fields = append(fields,
		FieldObligationID, obligationID,
		FieldTransactionID, transactionID,
		FieldAmountCents, amountCents)

	sl.logger.InfoContext(ctx, "Occurrence materialized", fields...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}

// LogWarn logs a warning with structured context
func (sl *StructuredLogger) LogWarn(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.WarnContext(ctx, msg, allFields.ToSlice()...)
}
