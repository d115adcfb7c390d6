package indexing

import (
	"strings"

	catalog "stats-indexer/internal/catalog/domain"
)

// Partitioning is the time granularity indices are split by.
type Partitioning string

const (
	PartitionMonthly Partitioning = "monthly"
	PartitionDaily   Partitioning = "daily"
)

// ParsePartitioning validates a configured granularity. Empty means monthly.
func ParsePartitioning(value string) (Partitioning, error) {
	switch Partitioning(strings.ToLower(strings.TrimSpace(value))) {
	case "", PartitionMonthly:
		return PartitionMonthly, nil
	case PartitionDaily:
		return PartitionDaily, nil
	default:
		return "", ErrInvalidPartitioning
	}
}

// IsValid reports whether p is a known granularity.
func (p Partitioning) IsValid() bool {
	return p == PartitionMonthly || p == PartitionDaily
}

// Suffix derives the partition suffix from a statistic date:
// YYYY-MM for monthly, YYYY-MM-DD for daily.
func (p Partitioning) Suffix(sdate string) (string, error) {
	day, err := catalog.ParseSDate(sdate)
	if err != nil {
		return "", err
	}
	switch p {
	case PartitionMonthly:
		return day.Format("2006-01"), nil
	case PartitionDaily:
		return day.Format(catalog.DateLayout), nil
	default:
		return "", ErrInvalidPartitioning
	}
}

// IndexName returns prefix + "-" + suffix for sdate.
func (p Partitioning) IndexName(prefix, sdate string) (string, error) {
	if prefix == "" {
		return "", ErrEmptyIndexPrefix
	}
	suffix, err := p.Suffix(sdate)
	if err != nil {
		return "", err
	}
	return prefix + "-" + suffix, nil
}
