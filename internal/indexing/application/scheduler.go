package application

import (
	"context"
	"errors"
	"log"
	"time"
)

type runTrigger interface {
	Run(ctx context.Context, opts RunOptions) (RunResult, error)
}

// Scheduler triggers an index run once a day at daily_at (HH:MM).
type Scheduler struct {
	runner   runTrigger
	dailyAt  string
	location *time.Location
	logger   *log.Logger
	lastDay  string
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner runTrigger, dailyAt string, location *time.Location, logger *log.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		runner:   runner,
		dailyAt:  dailyAt,
		location: location,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) bool {
	now = now.In(s.location)
	if !s.shouldRun(now) {
		return false
	}
	day := now.Format("2006-01-02")
	if day == s.lastDay {
		return false
	}
	s.lastDay = day
	s.runOnce(ctx)
	return true
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.runner.Run(ctx, RunOptions{})
	if err == nil || s.logger == nil {
		return
	}
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Printf("event=index_schedule_skipped reason=run_in_progress")
		return
	}
	s.logger.Printf("event=index_schedule_error error=%v", err)
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
