package rates

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is a rate table as published by a rates source, relative to the
// source's own anchor currency.
type Quote struct {
	Anchor string
	Date   string
	Rates  map[string]decimal.Decimal
}

// RateMap maps uppercase currency codes to multipliers relative to a base
// currency: amount_in_base = amount / rate. It is immutable once built and may
// be shared freely between goroutines.
type RateMap struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewRateMap copies rates into an immutable RateMap. Codes are upper-cased.
func NewRateMap(base string, rates map[string]decimal.Decimal) *RateMap {
	m := &RateMap{
		base:  NormalizeCode(base),
		rates: make(map[string]decimal.Decimal, len(rates)),
	}
	for code, rate := range rates {
		m.rates[NormalizeCode(code)] = rate
	}
	return m
}

// Rebase re-derives a source quote relative to base. Every source rate other
// than base is multiplied by anchor_to_base = 1 / quote[base], and the anchor
// currency itself is stored as anchor_to_base so amounts quoted in the anchor
// remain convertible. The base currency never gets an entry.
func Rebase(quote Quote, base string) (*RateMap, error) {
	base = NormalizeCode(base)
	if base == "" {
		return nil, ErrEmptyBaseCurrency
	}
	source := make(map[string]decimal.Decimal, len(quote.Rates))
	for code, rate := range quote.Rates {
		source[NormalizeCode(code)] = rate
	}
	baseRate, ok := source[base]
	if !ok {
		return nil, ErrBaseCurrencyNotQuoted
	}
	if !baseRate.IsPositive() {
		return nil, ErrNonPositiveRate
	}
	anchorToBase := decimal.NewFromInt(1).Div(baseRate)

	derived := make(map[string]decimal.Decimal, len(source))
	if anchor := NormalizeCode(quote.Anchor); anchor != "" && anchor != base {
		derived[anchor] = anchorToBase
	}
	for code, rate := range source {
		if code == base {
			continue
		}
		derived[code] = rate.Mul(anchorToBase)
	}
	return &RateMap{base: base, rates: derived}, nil
}

// Base returns the currency the map converts into.
func (m *RateMap) Base() string {
	if m == nil {
		return ""
	}
	return m.base
}

// Rate returns the multiplier for code. The base currency is not looked up
// here; callers short-circuit it.
func (m *RateMap) Rate(code string) (decimal.Decimal, bool) {
	if m == nil {
		return decimal.Decimal{}, false
	}
	rate, ok := m.rates[NormalizeCode(code)]
	return rate, ok
}

// Len returns the number of currencies in the map.
func (m *RateMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rates)
}

// Codes returns the currency codes in the map, sorted.
func (m *RateMap) Codes() []string {
	if m == nil {
		return nil
	}
	codes := make([]string, 0, len(m.rates))
	for code := range m.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
