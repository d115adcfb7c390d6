package application

import "time"

// Skip reasons counted in RunResult.Skipped.
const (
	SkipMissingProgram      = "missing_program"
	SkipConversionUndefined = "conversion_undefined"
	SkipInvalidDate         = "invalid_date"
)

// Run statuses.
const (
	StatusSucceeded   = "succeeded"
	StatusWriteFailed = "write_failed"
	StatusFailed      = "failed"
	StatusDryRun      = "dry_run"
	StatusEmpty       = "empty"
)

// PhaseDurations records how long each run phase took.
type PhaseDurations struct {
	Fetch    time.Duration `json:"-"`
	Generate time.Duration `json:"-"`
	Index    time.Duration `json:"-"`
	Total    time.Duration `json:"-"`

	FetchMillis    int64 `json:"fetch_ms"`
	GenerateMillis int64 `json:"generate_ms"`
	IndexMillis    int64 `json:"index_ms"`
	TotalMillis    int64 `json:"total_ms"`
}

func (d *PhaseDurations) fill() {
	d.FetchMillis = d.Fetch.Milliseconds()
	d.GenerateMillis = d.Generate.Milliseconds()
	d.IndexMillis = d.Index.Milliseconds()
	d.TotalMillis = d.Total.Milliseconds()
}

// RunResult summarizes one index run.
type RunResult struct {
	RunID             string         `json:"run_id"`
	Status            string         `json:"status"`
	DryRun            bool           `json:"dry_run"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
	Cutoff            string         `json:"cutoff"`
	BaseCurrency      string         `json:"base_currency"`
	IndexPrefix       string         `json:"index_prefix"`
	Programs          int            `json:"programs"`
	DuplicatePrograms int            `json:"duplicate_programs"`
	Statistics        int            `json:"statistics"`
	Records           int            `json:"records"`
	Skipped           map[string]int `json:"skipped"`
	Partitions        map[string]int `json:"partitions"`
	RateBuckets       int            `json:"rate_buckets"`
	Write             WriteResult    `json:"write"`
	Error             string         `json:"error,omitempty"`
	Durations         PhaseDurations `json:"durations"`
}

// SkippedTotal returns the number of statistics that produced no record.
func (r RunResult) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}
