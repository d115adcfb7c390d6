package indexing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	catalog "stats-indexer/internal/catalog/domain"
)

// Rates looks up the multiplier that converts an amount in code into the base
// currency (amount / rate).
type Rates interface {
	Rate(code string) (decimal.Decimal, bool)
}

// ProgramResolver finds a program and its effective root.
type ProgramResolver interface {
	Lookup(id catalog.ProgramID) (catalog.Program, bool)
	Resolve(id catalog.ProgramID) (catalog.Program, bool)
}

// Normalizer turns statistics into FormattedRecords in one base currency.
type Normalizer struct {
	base string
}

// NewNormalizer constructs a normalizer converting into base.
func NewNormalizer(base string) (*Normalizer, error) {
	base = normalizeCode(base)
	if base == "" {
		return nil, ErrEmptyBaseCurrency
	}
	return &Normalizer{base: base}, nil
}

// Base returns the reporting currency.
func (n *Normalizer) Base() string { return n.base }

// Normalize builds the record for stat. The amount is converted from the
// currency of the statistic's own program, or of its root program when the own
// program declares none. The record embeds a copy of the statistic's program.
func (n *Normalizer) Normalize(stat catalog.Statistic, rates Rates, programs ProgramResolver) (FormattedRecord, error) {
	program, ok := programs.Lookup(stat.ProgramID)
	if !ok {
		return FormattedRecord{}, &MissingProgramError{ProgramID: stat.ProgramID, SDate: stat.SDate}
	}
	root, _ := programs.Resolve(stat.ProgramID)

	currency := program.Currency
	if strings.TrimSpace(currency) == "" {
		currency = root.Currency
	}
	amount, err := n.Convert(stat.Amount(), currency, rates)
	if err != nil {
		var undefined *ConversionUndefinedError
		if errors.As(err, &undefined) {
			undefined.ProgramID = program.ID
		}
		return FormattedRecord{}, err
	}

	return FormattedRecord{
		ID:            Fingerprint(stat.Key(), stat.SDate),
		ProgramID:     stat.ProgramID,
		SDate:         stat.SDate,
		TotalAmount:   amount,
		Program:       program.Clone(),
		RootProgramID: root.ID,
		Attributes:    copyAttributes(stat.Attributes),
	}, nil
}

// Convert converts amount from currency into the base currency. The base
// currency passes through untouched; any other currency is divided by its rate.
func (n *Normalizer) Convert(amount decimal.Decimal, currency string, rates Rates) (decimal.Decimal, error) {
	code := normalizeCode(currency)
	if code == n.base {
		return amount, nil
	}
	if code == "" || rates == nil {
		return decimal.Decimal{}, &ConversionUndefinedError{Currency: code}
	}
	rate, ok := rates.Rate(code)
	if !ok || rate.IsZero() {
		return decimal.Decimal{}, &ConversionUndefinedError{Currency: code}
	}
	return amount.Div(rate), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func copyAttributes(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
