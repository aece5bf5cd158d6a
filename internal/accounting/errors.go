package accounting

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every domain error matches exactly one of them via errors.Is.
var (
	// ErrValidation indicates a caller-fixable request.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("accounting: conflict")
	// ErrNotFound indicates a missing account or entry.
	ErrNotFound = errors.New("accounting: not found")
	// ErrConstraint indicates an operation blocked by dependents.
	ErrConstraint = errors.New("accounting: constraint violated")
)

// Reason is a stable machine-readable error code.
type Reason string

const (
	ReasonTooFewLines        Reason = "TOO_FEW_LINES"
	ReasonMissingSide        Reason = "MISSING_SIDE"
	ReasonInvalidSide        Reason = "INVALID_SIDE"
	ReasonUnknownAccount     Reason = "UNKNOWN_ACCOUNT"
	ReasonInactiveAccount    Reason = "INACTIVE_ACCOUNT"
	ReasonNotPostable        Reason = "NOT_POSTABLE"
	ReasonNonPositiveAmount  Reason = "NON_POSITIVE_AMOUNT"
	ReasonAmountPrecision    Reason = "AMOUNT_PRECISION"
	ReasonUnbalanced         Reason = "UNBALANCED"
	ReasonInvalidCode        Reason = "INVALID_CODE"
	ReasonCodeParentMismatch Reason = "CODE_PARENT_MISMATCH"
	ReasonLevelMismatch      Reason = "LEVEL_MISMATCH"
	ReasonInvalidAccountType Reason = "INVALID_ACCOUNT_TYPE"
	ReasonParentNotFound     Reason = "PARENT_NOT_FOUND"
	ReasonParentInactive     Reason = "PARENT_INACTIVE"
	ReasonMissingDescription Reason = "MISSING_DESCRIPTION"
	ReasonMissingDate        Reason = "MISSING_DATE"
	ReasonUnknownNarrative   Reason = "UNKNOWN_NARRATIVE"
	ReasonInactiveNarrative  Reason = "INACTIVE_NARRATIVE"
	ReasonUnknownCostCenter  Reason = "UNKNOWN_COST_CENTER"
	ReasonInactiveCostCenter Reason = "INACTIVE_COST_CENTER"
	ReasonInvalidRange       Reason = "INVALID_RANGE"
	ReasonEmptyUpdate        Reason = "EMPTY_UPDATE"
	ReasonFieldTooLong       Reason = "FIELD_TOO_LONG"
	ReasonInvalidField       Reason = "INVALID_FIELD"

	ReasonHasPostings       Reason = "HAS_POSTINGS"
	ReasonHasActiveChildren Reason = "HAS_ACTIVE_CHILDREN"
)

// ValidationError reports a request that can never succeed as submitted.
type ValidationError struct {
	Reason Reason
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("accounting: %s", e.Reason)
	}
	return fmt.Sprintf("accounting: %s: %s", e.Reason, e.Detail)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError reports a duplicate natural key.
type ConflictError struct {
	Entity string
	Key    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("accounting: %s %q already exists", e.Entity, e.Key)
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports an unknown identifier.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("accounting: %s %s not found", e.Entity, e.Key)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConstraintError reports an operation blocked by dependent records.
type ConstraintError struct {
	Reason Reason
	Detail string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("accounting: %s: %s", e.Reason, e.Detail)
}

// Is matches ErrConstraint.
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// ReasonOf extracts the reason code of a validation or constraint error.
func ReasonOf(err error) (Reason, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	var cerr *ConstraintError
	if errors.As(err, &cerr) {
		return cerr.Reason, true
	}
	return "", false
}

func invalid(reason Reason, field, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Field: field, Detail: fmt.Sprintf(format, args...)}
}

func accountNotFound(id int64) *NotFoundError {
	return &NotFoundError{Entity: "account", Key: fmt.Sprintf("%d", id)}
}

func entryNotFound(id int64) *NotFoundError {
	return &NotFoundError{Entity: "journal entry", Key: fmt.Sprintf("%d", id)}
}
