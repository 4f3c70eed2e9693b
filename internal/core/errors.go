package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-obligation failure in a catch-up run.
type ErrorKind string

const (
	KindInvalidFrequency   ErrorKind = "invalid_frequency"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindPartialCommit      ErrorKind = "partial_commit"
)

var (
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrPartialCommit       = errors.New("partial commit")
	ErrVersionConflict     = errors.New("obligation version conflict")
	ErrDuplicateOccurrence = errors.New("occurrence already materialized")
	ErrNotFound            = errors.New("not found")
)

// ObligationError records why a single obligation could not be fully processed.
type ObligationError struct {
	ObligationID string
	Kind         ErrorKind
	Err          error
}

func (e ObligationError) Error() string {
	return fmt.Sprintf("obligation %s: %s: %v", e.ObligationID, e.Kind, e.Err)
}

func (e ObligationError) Unwrap() error {
	return e.Err
}
