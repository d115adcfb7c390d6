package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	catalog "stats-indexer/internal/catalog/domain"
	indexing "stats-indexer/internal/indexing/domain"
	"stats-indexer/internal/indexing/notify"
	"stats-indexer/internal/observability/metrics"
	rates "stats-indexer/internal/rates/domain"
)

const (
	// DefaultLookbackDays is how far back statistics are read.
	DefaultLookbackDays = 31
	defaultConcurrency  = 8
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("indexing: run already in progress")

// RateProvider supplies the rate map for a statistic date.
type RateProvider interface {
	Base() string
	Rates(ctx context.Context, date time.Time) (*rates.RateMap, error)
	Cached() int
}

// ReportExporter persists a run summary.
type ReportExporter interface {
	Export(ctx context.Context, result RunResult) error
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// RunOptions tunes a single run.
type RunOptions struct {
	// LookbackDays overrides the configured window when positive.
	LookbackDays int
	DryRun       bool
}

// Runner executes index runs: load catalog and statistics, normalize, write.
type Runner struct {
	repo         catalog.Repository
	rates        RateProvider
	normalizer   *indexing.Normalizer
	writer       *BulkBatchWriter
	indexPrefix  string
	lookbackDays int
	concurrency  int
	location     *time.Location
	clock        Clock
	notifier     notify.Notifier
	exporter     ReportExporter
	logger       *log.Logger

	mu      sync.Mutex
	running bool
	last    *RunResult
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLookbackDays sets the default lookback window.
func WithLookbackDays(days int) RunnerOption {
	return func(r *Runner) {
		if days > 0 {
			r.lookbackDays = days
		}
	}
}

// WithConcurrency bounds the number of statistics normalized at once.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRunLocation sets the time zone "today" is computed in.
func WithRunLocation(loc *time.Location) RunnerOption {
	return func(r *Runner) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithRunClock overrides the clock.
func WithRunClock(clock Clock) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithNotifier sends failure alerts.
func WithNotifier(n notify.Notifier) RunnerOption {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithReportExporter persists each run summary.
func WithReportExporter(e ReportExporter) RunnerOption {
	return func(r *Runner) {
		r.exporter = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner constructs a Runner.
func NewRunner(repo catalog.Repository, rateProvider RateProvider, writer *BulkBatchWriter, indexPrefix string, opts ...RunnerOption) (*Runner, error) {
	if repo == nil {
		return nil, errors.New("indexing runner: repository required")
	}
	if rateProvider == nil {
		return nil, errors.New("indexing runner: rate provider required")
	}
	if writer == nil {
		return nil, errors.New("indexing runner: writer required")
	}
	if indexPrefix == "" {
		return nil, indexing.ErrEmptyIndexPrefix
	}
	normalizer, err := indexing.NewNormalizer(rateProvider.Base())
	if err != nil {
		return nil, err
	}
	r := &Runner{
		repo:         repo,
		rates:        rateProvider,
		normalizer:   normalizer,
		writer:       writer,
		indexPrefix:  indexPrefix,
		lookbackDays: DefaultLookbackDays,
		concurrency:  defaultConcurrency,
		location:     time.UTC,
		clock:        SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LastResult returns the most recent finished run.
func (r *Runner) LastResult() (RunResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return RunResult{}, false
	}
	return *r.last, true
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) release(result RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.last = &result
}

// Cutoff returns the exclusive lower bound for statistic dates: today minus
// days, at midnight in the run location.
func (r *Runner) Cutoff(days int) time.Time {
	now := r.clock.Now().In(r.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.location)
	return today.AddDate(0, 0, -days)
}

// Run executes one index run. A rejected or failed bulk write is reported in
// the result, not as an error; errors are returned for failures that stop the
// run before writing.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	if r == nil {
		return RunResult{}, errors.New("indexing runner: nil")
	}
	if !r.acquire() {
		return RunResult{}, ErrRunInProgress
	}

	lookback := r.lookbackDays
	if opts.LookbackDays > 0 {
		lookback = opts.LookbackDays
	}
	started := r.clock.Now()
	cutoff := r.Cutoff(lookback)
	result := RunResult{
		RunID:        uuid.NewString(),
		DryRun:       opts.DryRun,
		StartedAt:    started.UTC(),
		Cutoff:       cutoff.Format(catalog.DateLayout),
		BaseCurrency: r.normalizer.Base(),
		IndexPrefix:  r.indexPrefix,
		Skipped:      map[string]int{},
		Partitions:   map[string]int{},
	}
	r.logf("event=index_run_start run_id=%s cutoff=%s lookback_days=%d dry_run=%t",
		result.RunID, result.Cutoff, lookback, opts.DryRun)

	err := r.execute(ctx, cutoff, opts, &result)

	result.FinishedAt = r.clock.Now().UTC()
	result.Durations.Total = result.FinishedAt.Sub(result.StartedAt)
	result.Durations.fill()
	result.RateBuckets = r.rates.Cached()

	outcome := metrics.ResultSuccess
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		outcome = metrics.ResultError
		r.logf("event=index_run_failed run_id=%s error=%v", result.RunID, err)
		r.alert(ctx, result, stageOf(err))
	} else if result.Status == StatusWriteFailed {
		outcome = metrics.ResultError
		r.alert(ctx, result, "write")
	}
	metrics.ObserveRun(outcome, result.Durations.Total)
	r.export(ctx, result)

	r.logf("event=index_run_done run_id=%s status=%s statistics=%d records=%d skipped=%d partitions=%d duration=%s",
		result.RunID, result.Status, result.Statistics, result.Records, result.SkippedTotal(), len(result.Partitions), result.Durations.Total)
	r.release(result)
	return result, err
}

func (r *Runner) execute(ctx context.Context, cutoff time.Time, opts RunOptions, result *RunResult) error {
	fetchStart := time.Now()
	programs, err := r.repo.ListPrograms(ctx)
	if err != nil {
		return &stageError{stage: "fetch", err: fmt.Errorf("list programs: %w", err)}
	}
	stats, err := r.repo.ListStatisticsAfter(ctx, cutoff)
	if err != nil {
		return &stageError{stage: "fetch", err: fmt.Errorf("list statistics: %w", err)}
	}
	index := catalog.NewProgramIndex(programs)
	result.Programs = index.Len()
	result.DuplicatePrograms = index.Duplicates()
	result.Statistics = len(stats)
	result.Durations.Fetch = time.Since(fetchStart)
	metrics.ObservePhase("fetch", result.Durations.Fetch)
	r.logf("event=index_fetch_done run_id=%s programs=%d duplicate_programs=%d statistics=%d duration=%s",
		result.RunID, result.Programs, result.DuplicatePrograms, result.Statistics, result.Durations.Fetch)

	generateStart := time.Now()
	records, err := r.normalizeAll(ctx, result, stats, index)
	result.Durations.Generate = time.Since(generateStart)
	metrics.ObservePhase("generate", result.Durations.Generate)
	if err != nil {
		return &stageError{stage: "rates", err: err}
	}
	result.Records = len(records)
	metrics.AddRecords("indexed", len(records))
	for reason, n := range result.Skipped {
		metrics.AddRecords(reason, n)
	}
	r.logf("event=index_generate_done run_id=%s records=%d skipped=%d duration=%s",
		result.RunID, result.Records, result.SkippedTotal(), result.Durations.Generate)

	indexStart := time.Now()
	defer func() {
		result.Durations.Index = time.Since(indexStart)
		metrics.ObservePhase("index", result.Durations.Index)
	}()

	if opts.DryRun {
		batch, err := r.writer.Prepare(records, r.indexPrefix)
		if err != nil {
			return &stageError{stage: "index", err: err}
		}
		result.Write = WriteResult{Actions: len(batch.Actions), Partitions: batch.Partitions, Bytes: len(batch.Body)}
		result.Partitions = batch.Partitions
		result.Status = StatusDryRun
		r.logf("event=index_dry_run run_id=%s actions=%d partitions=%d bytes=%d",
			result.RunID, len(batch.Actions), len(batch.Partitions), len(batch.Body))
		return nil
	}
	if len(records) == 0 {
		result.Status = StatusEmpty
		r.logf("event=index_write_skipped run_id=%s reason=no_records", result.RunID)
		return nil
	}

	write, err := r.writer.Write(ctx, records, r.indexPrefix)
	result.Write = write
	result.Partitions = write.Partitions
	var writeErr *indexing.WriteError
	switch {
	case errors.As(err, &writeErr):
		result.Status = StatusWriteFailed
		result.Error = err.Error()
		metrics.ObserveBulkWrite(metrics.ResultError, write.Actions, write.Duration)
		r.logf("event=index_write_failed run_id=%s actions=%d status_code=%d error=%v",
			result.RunID, write.Actions, write.StatusCode, err)
		return nil
	case err != nil:
		return &stageError{stage: "index", err: err}
	}
	metrics.ObserveBulkWrite(metrics.ResultSuccess, write.Actions, write.Duration)
	if write.ItemErrors {
		r.logf("event=index_write_item_errors run_id=%s actions=%d", result.RunID, write.Actions)
	}
	result.Status = StatusSucceeded
	r.logf("event=index_write_done run_id=%s actions=%d partitions=%d status=%q duration=%s",
		result.RunID, write.Actions, len(write.Partitions), write.Status, write.Duration)
	return nil
}

type normalized struct {
	record indexing.FormattedRecord
	ok     bool
}

// normalizeAll converts stats concurrently and returns the records in input
// order. Records that cannot be normalized are counted in result.Skipped; a
// rate fetch failure aborts.
func (r *Runner) normalizeAll(ctx context.Context, result *RunResult, stats []catalog.Statistic, index *catalog.ProgramIndex) ([]indexing.FormattedRecord, error) {
	slots := make([]normalized, len(stats))
	var skipMu sync.Mutex
	skip := func(reason string, stat catalog.Statistic, err error) {
		skipMu.Lock()
		result.Skipped[reason]++
		skipMu.Unlock()
		r.logf("event=index_record_skipped run_id=%s reason=%s program_id=%s sdate=%s error=%v",
			result.RunID, reason, stat.ProgramID, stat.SDate, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, stat := range stats {
		g.Go(func() error {
			date, err := stat.Date()
			if err != nil {
				skip(SkipInvalidDate, stat, err)
				return nil
			}
			rateMap, err := r.rates.Rates(gctx, date)
			if err != nil {
				return err
			}
			record, err := r.normalizer.Normalize(stat, rateMap, index)
			var missing *indexing.MissingProgramError
			var undefined *indexing.ConversionUndefinedError
			switch {
			case errors.As(err, &missing):
				skip(SkipMissingProgram, stat, err)
				return nil
			case errors.As(err, &undefined):
				skip(SkipConversionUndefined, stat, err)
				return nil
			case err != nil:
				return err
			}
			slots[i] = normalized{record: record, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]indexing.FormattedRecord, 0, len(stats))
	for _, slot := range slots {
		if slot.ok {
			records = append(records, slot.record)
		}
	}
	return records, nil
}

func (r *Runner) alert(ctx context.Context, result RunResult, stage string) {
	if r.notifier == nil {
		return
	}
	msg := notify.AlertMessage{
		RunID:             result.RunID,
		Stage:             stage,
		Error:             result.Error,
		Cutoff:            result.Cutoff,
		Statistics:        result.Statistics,
		Records:           result.Records,
		Skipped:           result.Skipped,
		Partitions:        result.Partitions,
		StatusCode:        result.Write.StatusCode,
		RecommendedAction: recommendedAction(stage),
	}
	if err := r.notifier.Notify(ctx, msg); err != nil {
		r.logf("event=index_alert_failed run_id=%s error=%v", result.RunID, err)
	}
}

func (r *Runner) export(ctx context.Context, result RunResult) {
	if r.exporter == nil {
		return
	}
	if err := r.exporter.Export(ctx, result); err != nil {
		r.logf("event=index_report_failed run_id=%s error=%v", result.RunID, err)
	}
}

func recommendedAction(stage string) string {
	switch stage {
	case "rates":
		return "check exchange rate API key and quota, then re-run"
	case "fetch":
		return "check database connectivity and table names"
	case "write":
		return "check search cluster health and credentials, then re-run"
	default:
		return "inspect logs for run details"
	}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

func stageOf(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return ""
}

func (r *Runner) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
