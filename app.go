package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stats-indexer/internal/catalog/infrastructure/sqldb"
	indexapp "stats-indexer/internal/indexing/application"
	"stats-indexer/internal/indexing/infrastructure/elasticsearch"
	"stats-indexer/internal/indexing/interfaces/report"
	"stats-indexer/internal/indexing/notify"
	"stats-indexer/internal/observability/metrics"
	ratesapp "stats-indexer/internal/rates/application"
	"stats-indexer/internal/rates/infrastructure/exchangerates"
)

// app holds the wired pipeline for one process.
type app struct {
	db       *sql.DB
	runner   *indexapp.Runner
	location *time.Location
}

func buildApp(ctx context.Context, cfg indexapp.Config, logger *log.Logger) (*app, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	metrics.Init(db, logger)

	built, err := wirePipeline(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return built, nil
}

func wirePipeline(cfg indexapp.Config, db *sql.DB, logger *log.Logger) (*app, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repo, err := sqldb.NewRepository(db, cfg.Database.Driver,
		sqldb.WithProgramsTable(cfg.Database.ProgramsTable),
		sqldb.WithStatisticsTable(cfg.Database.StatsTable),
	)
	if err != nil {
		return nil, err
	}

	ratesClient, err := exchangerates.NewClient(cfg.Rates.BaseURL, cfg.Rates.AccessKey,
		exchangerates.WithAnchor(cfg.Rates.AnchorCurrency),
		exchangerates.WithTimeout(cfg.RatesTimeout()),
	)
	if err != nil {
		return nil, err
	}
	rateTable, err := ratesapp.NewRateTable(ratesClient, cfg.Rates.BaseCurrency,
		ratesapp.WithLocation(location),
		ratesapp.WithFetchHook(func(ev ratesapp.FetchEvent) {
			metrics.ObserveRateFetch(ev.Err, ev.Elapsed)
			if ev.Err != nil {
				logger.Printf("event=rate_fetch_failed bucket=%s duration=%s error=%v", ev.Bucket, ev.Elapsed, ev.Err)
				return
			}
			logger.Printf("event=rate_fetch_done bucket=%s quote_date=%s currencies=%s duration=%s",
				ev.Bucket, ev.QuoteDate, strings.Join(ev.Currencies, ","), ev.Elapsed)
		}),
	)
	if err != nil {
		return nil, err
	}

	sink, err := elasticsearch.NewSink(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		APIKey:    cfg.Elasticsearch.APIKey,
		Timeout:   cfg.ElasticsearchTimeout(),
	})
	if err != nil {
		return nil, err
	}
	writer, err := indexapp.NewBulkBatchWriter(sink, cfg.Partitioning())
	if err != nil {
		return nil, err
	}

	opts := []indexapp.RunnerOption{
		indexapp.WithLookbackDays(cfg.Run.LookbackDays),
		indexapp.WithConcurrency(cfg.Run.Concurrency),
		indexapp.WithRunLocation(location),
		indexapp.WithLogger(logger),
	}
	if cfg.Notify.WebhookURL != "" {
		opts = append(opts, indexapp.WithNotifier(notify.NewWebhookNotifier(cfg.Notify.WebhookURL)))
	}
	if cfg.Run.ReportDir != "" {
		exporter, err := report.NewFileExporter(cfg.Run.ReportDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, indexapp.WithReportExporter(exporter))
	}
	runner, err := indexapp.NewRunner(repo, rateTable, writer, cfg.Elasticsearch.IndexPrefix, opts...)
	if err != nil {
		return nil, err
	}
	return &app{db: db, runner: runner, location: location}, nil
}

// Close releases the database pool.
func (a *app) Close() {
	if a != nil && a.db != nil {
		_ = a.db.Close()
	}
}
