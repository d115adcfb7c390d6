package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout statistics dates are rendered in.
const DateLayout = "2006-01-02"

var sdateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// Statistic is one usage-statistic row.
type Statistic struct {
	ProgramID ProgramID
	// ProgramKey is the program id text as the source returned it. Empty means
	// the canonical ProgramID is the source text.
	ProgramKey string
	// SDate is the statistic date exactly as the source renders it
	// (YYYY-MM-DD for DATE columns).
	SDate string
	// TotalAmount is null when the source column is null.
	TotalAmount decimal.NullDecimal
	// Attributes holds every other column of the statistic row.
	Attributes map[string]any
}

// Date parses SDate into a calendar date in UTC.
func (s Statistic) Date() (time.Time, error) {
	return ParseSDate(s.SDate)
}

// Key returns the program id text record ids are derived from.
func (s Statistic) Key() string {
	if s.ProgramKey != "" {
		return s.ProgramKey
	}
	return string(s.ProgramID)
}

// Amount returns the total amount, treating null as zero.
func (s Statistic) Amount() decimal.Decimal {
	if !s.TotalAmount.Valid {
		return decimal.Zero
	}
	return s.TotalAmount.Decimal
}

// ParseSDate accepts the date renderings relational drivers produce.
func ParseSDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrEmptyStatisticDate
	}
	for _, layout := range sdateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("catalog: unparseable sdate %q", raw)
}

// FormatSDate renders a raw date column value the way a date-string driver would.
func FormatSDate(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case []byte:
		return strings.TrimSpace(string(v)), nil
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(DateLayout), nil
		}
		return v.Format("2006-01-02 15:04:05"), nil
	default:
		return "", fmt.Errorf("catalog: unsupported sdate type %T", value)
	}
}

// ParseAmount converts a raw numeric column value. A nil value yields an invalid
// NullDecimal.
func ParseAmount(value any) (decimal.NullDecimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case decimal.Decimal:
		return decimal.NewNullDecimal(v), nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(v)), nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v))), nil
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(v)), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.NullDecimal{}, fmt.Errorf("catalog: invalid amount %v", v)
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(v)), nil
	case float32:
		return ParseAmount(float64(v))
	case []byte:
		return parseAmountString(string(v))
	case string:
		return parseAmountString(v)
	default:
		return decimal.NullDecimal{}, fmt.Errorf("catalog: unsupported amount type %T", value)
	}
}

func parseAmountString(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("catalog: invalid amount %q: %w", raw, err)
	}
	return decimal.NewNullDecimal(d), nil
}
