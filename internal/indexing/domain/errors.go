package indexing

import (
	"errors"
	"fmt"

	catalog "stats-indexer/internal/catalog/domain"
)

var (
	// ErrInvalidPartitioning is returned for an unknown partition granularity.
	ErrInvalidPartitioning = errors.New("indexing: invalid partitioning")
	// ErrEmptyIndexPrefix is returned when no index prefix is configured.
	ErrEmptyIndexPrefix = errors.New("indexing: empty index prefix")
	// ErrEmptyBaseCurrency is returned when the normalizer has no base currency.
	ErrEmptyBaseCurrency = errors.New("indexing: empty base currency")
)

// MissingProgramError reports a statistic whose program is not in the catalog.
type MissingProgramError struct {
	ProgramID catalog.ProgramID
	SDate     string
}

func (e *MissingProgramError) Error() string {
	return fmt.Sprintf("indexing: program %q not found (sdate=%s)", e.ProgramID, e.SDate)
}

// ConversionUndefinedError reports an amount that cannot be converted because
// the program currency has no rate.
type ConversionUndefinedError struct {
	ProgramID catalog.ProgramID
	Currency  string
}

func (e *ConversionUndefinedError) Error() string {
	if e.Currency == "" {
		return fmt.Sprintf("indexing: program %q has no currency", e.ProgramID)
	}
	return fmt.Sprintf("indexing: no rate for currency %q (program %q)", e.Currency, e.ProgramID)
}

// WriteError reports a bulk write the sink did not accept.
type WriteError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("indexing: bulk write failed: %v", e.Err)
	}
	return fmt.Sprintf("indexing: bulk write rejected: %s", e.Status)
}

func (e *WriteError) Unwrap() error { return e.Err }
