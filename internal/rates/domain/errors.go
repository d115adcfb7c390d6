package rates

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBaseCurrency is returned when no reporting currency is configured.
	ErrEmptyBaseCurrency = errors.New("rates: empty base currency")
	// ErrBaseCurrencyNotQuoted is returned when a quote lacks the base currency.
	ErrBaseCurrencyNotQuoted = errors.New("rates: base currency not quoted")
	// ErrNonPositiveRate is returned when the base currency rate is zero or negative.
	ErrNonPositiveRate = errors.New("rates: non-positive base rate")
	// ErrUnsuccessful is returned when the source answers with success=false.
	ErrUnsuccessful = errors.New("rates: source reported failure")
)

// RateFetchError reports that the rate table for a bucket could not be obtained.
// It is fatal for a run.
type RateFetchError struct {
	Bucket string
	Err    error
}

func (e *RateFetchError) Error() string {
	return fmt.Sprintf("rates: fetch %s: %v", e.Bucket, e.Err)
}

func (e *RateFetchError) Unwrap() error { return e.Err }
