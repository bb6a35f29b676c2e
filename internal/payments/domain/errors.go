package payments

import "errors"

var (
	// ErrValidation is returned for malformed compute or transition requests.
	ErrValidation = errors.New("payments: invalid request")
	// ErrUnknownCategory is returned when no strategy is registered for a category.
	ErrUnknownCategory = errors.New("payments: unknown participant category")
	// ErrReferenceDataMissing is reported when no rate applies; callers substitute zero.
	ErrReferenceDataMissing = errors.New("payments: reference data missing")
	// ErrConversionMissing is returned when an MRF unit conversion is absent.
	ErrConversionMissing = errors.New("payments: unit conversion missing")
	// ErrSchemeMismatch is returned when data of another scheme reaches a scheme-scoped run.
	ErrSchemeMismatch = errors.New("payments: scheme mismatch")
	// ErrBatchTerminal is returned when a terminal batch is transitioned.
	ErrBatchTerminal = errors.New("payments: batch already terminal")
	// ErrInvalidTransition is returned for disallowed fact status changes.
	ErrInvalidTransition = errors.New("payments: invalid status transition")
	// ErrBatchNotFound is returned when a batch is not found.
	ErrBatchNotFound = errors.New("payments: batch not found")
	// ErrNilFact is returned when saving a nil fact.
	ErrNilFact = errors.New("payments: nil fact")
	// ErrConcurrentUpdate is returned when facts changed status under a unit of work.
	ErrConcurrentUpdate = errors.New("payments: facts changed concurrently")
	// ErrInvalidPeriod is returned for unparseable period values.
	ErrInvalidPeriod = errors.New("payments: invalid period")
)
