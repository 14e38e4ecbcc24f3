package core

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	ErrEmptyName            = errors.New("name cannot be empty")
	ErrNameTooLong          = errors.New("name too long (max 120 characters)")
	ErrInvalidKind          = errors.New("kind must be INCOME or EXPENSE")
	ErrInvalidColor         = errors.New("color must be a #RRGGBB value")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAmountTooSmall       = errors.New("amount must be at least 0.01")
	ErrAmountPrecision      = errors.New("amount cannot have more than 2 decimal places")
	ErrAmountTooLarge       = errors.New("amount cannot have more than 12 digits")
	ErrInvalidCurrency      = errors.New("currency must be a 3-letter code")
	ErrMissingDate          = errors.New("date is required")
	ErrCategoryNotOwned     = errors.New("category must belong to the current user")
	ErrCategoryKindMismatch = errors.New("category kind must match transaction type")
	ErrCategoryArchived     = errors.New("category is archived")
	ErrTagNotOwned          = errors.New("tags must belong to the current user")
	ErrBudgetCategoryKind   = errors.New("only expense categories can be budgeted")
	ErrInvalidPeriod        = errors.New("period must be MONTH")
	ErrStartMonthDay        = errors.New("start month must be the first day of the month")
	ErrMissingCategory      = errors.New("category is required")
)

// FieldError ties a validation failure to the payload field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationError collects every field failure found on an entity.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the field errors so errors.Is matches any sentinel inside.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields))
	for _, f := range e.Fields {
		errs = append(errs, f)
	}
	return errs
}

// Add records a failure for field.
func (e *ValidationError) Add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Err: err})
}

// Map returns field -> message, first message per field wins.
func (e *ValidationError) Map() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Err.Error()
		}
	}
	return out
}

// OrNil returns nil when nothing was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewFieldError builds a single-field validation error.
func NewFieldError(field string, err error) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Err: err}}}
}
