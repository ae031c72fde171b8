package core

import "errors"

var (
	// Validation family: bad input supplied to a strict entry path.
	ErrInvalidHandle    = errors.New("invalid profile handle")
	ErrInvalidMonthKey  = errors.New("invalid month key")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidLimitsDoc = errors.New("invalid limits document")

	// Store and lifecycle errors.
	ErrAlreadyExists  = errors.New("profile already exists")
	ErrLastProfile    = errors.New("cannot delete the only profile")
	ErrNotFound       = errors.New("not found")
	ErrSchemaMismatch = errors.New("ledger schema mismatch")
)

// IsValidation reports whether err belongs to the validation family.
// Callers use it to map bad input to a single failure class without
// enumerating every sentinel.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidHandle,
		ErrInvalidMonthKey,
		ErrInvalidDate,
		ErrInvalidAmount,
		ErrEmptyCategory,
		ErrInvalidLimitsDoc,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
