package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	metricPrefix = "stats_indexer_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	phaseLatency *prometheus.HistogramVec
	lastSuccess  prometheus.Gauge

	recordsTotal *prometheus.CounterVec

	rateFetchTotal   *prometheus.CounterVec
	rateFetchLatency prometheus.Histogram

	bulkWriteTotal   *prometheus.CounterVec
	bulkWriteLatency prometheus.Histogram
	bulkActions      prometheus.Counter
)

// Init registers indexer metrics and, when db is set, connection pool stats.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total index runs by result",
			},
			[]string{"result"},
		)
		runDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_duration_seconds",
				Help:    "Index run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		phaseLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "phase_duration_seconds",
				Help:    "Index run phase duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		)
		lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful index run",
		})

		recordsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "records_total",
				Help: "Statistics processed by outcome",
			},
			[]string{"outcome"},
		)

		rateFetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_fetch_total",
				Help: "Exchange rate fetches by result",
			},
			[]string{"result"},
		)
		rateFetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "rate_fetch_latency_seconds",
			Help:    "Exchange rate fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		})

		bulkWriteTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bulk_write_total",
				Help: "Bulk writes by result",
			},
			[]string{"result"},
		)
		bulkWriteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "bulk_write_latency_seconds",
			Help:    "Bulk write latency in seconds",
			Buckets: prometheus.DefBuckets,
		})
		bulkActions = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "bulk_actions_total",
			Help: "Index actions sent to the bulk sink",
		})

		prometheus.MustRegister(
			runsTotal,
			runDuration,
			phaseLatency,
			lastSuccess,
			recordsTotal,
			rateFetchTotal,
			rateFetchLatency,
			bulkWriteTotal,
			bulkWriteLatency,
			bulkActions,
		)

		if db != nil {
			prometheus.MustRegister(collectors.NewDBStatsCollector(db, "catalog"))
			if logger != nil {
				logger.Printf("metrics: db pool stats registered")
			}
		}
	})
}

// ObserveRun records a finished run.
func ObserveRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(result).Inc()
	}
	if runDuration != nil {
		runDuration.WithLabelValues(result).Observe(duration.Seconds())
	}
	if result == resultSuccess && lastSuccess != nil {
		lastSuccess.SetToCurrentTime()
	}
}

// ObservePhase records the duration of one run phase.
func ObservePhase(phase string, duration time.Duration) {
	if phase == "" {
		phase = "unknown"
	}
	if phaseLatency != nil {
		phaseLatency.WithLabelValues(phase).Observe(duration.Seconds())
	}
}

// AddRecords increments the record counter for outcome by count.
func AddRecords(outcome string, count int) {
	if count <= 0 {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if recordsTotal != nil {
		recordsTotal.WithLabelValues(outcome).Add(float64(count))
	}
}

// ObserveRateFetch records one exchange rate fetch.
func ObserveRateFetch(err error, duration time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if rateFetchTotal != nil {
		rateFetchTotal.WithLabelValues(result).Inc()
	}
	if rateFetchLatency != nil {
		rateFetchLatency.Observe(duration.Seconds())
	}
}

// ObserveBulkWrite records one bulk write.
func ObserveBulkWrite(result string, actions int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if bulkWriteTotal != nil {
		bulkWriteTotal.WithLabelValues(result).Inc()
	}
	if bulkWriteLatency != nil {
		bulkWriteLatency.Observe(duration.Seconds())
	}
	if bulkActions != nil && actions > 0 {
		bulkActions.Add(float64(actions))
	}
}

// Push sends the default registry to a Pushgateway, for one-shot runs.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return errors.New("metrics: pushgateway url required")
	}
	if job == "" {
		job = "stats_indexer"
	}
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx)
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
