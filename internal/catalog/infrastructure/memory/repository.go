package memory

import (
	"context"
	"sync"
	"time"

	catalog "stats-indexer/internal/catalog/domain"
)

// Repository is an in-memory catalog source for demo/testing.
type Repository struct {
	mu         sync.RWMutex
	programs   []catalog.Program
	statistics []catalog.Statistic
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{}
}

// AddPrograms appends programs to the catalog.
func (r *Repository) AddPrograms(programs ...catalog.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs = append(r.programs, programs...)
}

// AddStatistics appends statistics.
func (r *Repository) AddStatistics(stats ...catalog.Statistic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statistics = append(r.statistics, stats...)
}

// ListPrograms returns copies of all programs in insertion order.
func (r *Repository) ListPrograms(ctx context.Context) ([]catalog.Program, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Program, 0, len(r.programs))
	for _, p := range r.programs {
		out = append(out, p.Clone())
	}
	return out, nil
}

// ListStatisticsAfter returns statistics with a parseable sdate after cutoff.
func (r *Repository) ListStatisticsAfter(ctx context.Context, cutoff time.Time) ([]catalog.Statistic, error) {
	_ = ctx
	y, m, d := cutoff.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []catalog.Statistic
	for _, s := range r.statistics {
		date, err := s.Date()
		if err != nil {
			continue
		}
		if date.After(day) {
			out = append(out, s)
		}
	}
	return out, nil
}
