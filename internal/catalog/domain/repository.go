package catalog

import (
	"context"
	"time"
)

// Repository reads the program catalog and recent statistics.
type Repository interface {
	ListPrograms(ctx context.Context) ([]Program, error)
	// ListStatisticsAfter returns statistics whose sdate is strictly after cutoff.
	ListStatisticsAfter(ctx context.Context, cutoff time.Time) ([]Statistic, error)
}
