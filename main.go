package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"stats-indexer/internal/audit"
	"stats-indexer/internal/auth"
	indexapp "stats-indexer/internal/indexing/application"
	indexhttp "stats-indexer/internal/indexing/interfaces/http"
	"stats-indexer/internal/observability/metrics"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(logger).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Printf("event=command_failed error=%v", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "stats-indexer",
		Short:         "Index usage statistics into time-partitioned search indices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(logger), newServeCmd(logger), newTokenCmd())
	return root
}

type runOptions struct {
	lookbackDays int
	dryRun       bool
}

func newRunCmd(logger *log.Logger) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one index pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), logger, opts)
		},
	}
	cmd.Flags().IntVar(&opts.lookbackDays, "lookback", 0, "Days of statistics to index (default from config)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Normalize and report without writing to the search store")
	return cmd
}

func runOnce(ctx context.Context, logger *log.Logger, opts runOptions) error {
	if opts.lookbackDays < 0 {
		return errors.New("--lookback must not be negative")
	}
	cfg, err := indexapp.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	result, runErr := app.runner.Run(ctx, indexapp.RunOptions{LookbackDays: opts.lookbackDays, DryRun: opts.dryRun})

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName); err != nil {
			logger.Printf("event=metrics_push_failed error=%v", err)
		}
		cancel()
	}
	if runErr != nil {
		return runErr
	}
	// A rejected bulk write is reported and alerted on, but is not a failed run.
	if result.Status == indexapp.StatusWriteFailed {
		logger.Printf("event=index_run_write_failed run_id=%s error=%s", result.RunID, result.Error)
	}
	return nil
}

func newServeCmd(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run trigger API and metrics, and run daily on schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger)
		},
	}
}

func serve(ctx context.Context, logger *log.Logger) error {
	cfg, err := indexapp.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	indexHandler, err := indexhttp.NewHandler(app.runner, audit.NewLogLogger(logger))
	if err != nil {
		return err
	}
	if cfg.HTTP.JWTSecret == "" {
		logger.Printf("event=http_auth_unconfigured detail=%q", "api requests will be rejected until AUTH_JWT_SECRET is set")
	}
	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.HTTP.JWTSecret), policy, auth.WithDenyLogger(logger))

	mux := http.NewServeMux()
	mux.Handle(indexhttp.RunPath, indexHandler)
	mux.Handle(indexhttp.LastRunPath, indexHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.db.PingContext(pingCtx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	scheduler := indexapp.NewScheduler(app.runner, cfg.Run.DailyAt, app.location, logger)
	go scheduler.Start(ctx)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("event=http_listening addr=%s daily_at=%s", cfg.HTTP.Addr, cfg.Run.DailyAt)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Printf("event=http_shutdown")
		return server.Shutdown(shutdownCtx)
	}
}

type tokenOptions struct {
	subject string
	role    string
	ttl     time.Duration
}

func newTokenCmd() *cobra.Command {
	var opts tokenOptions

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for the run trigger API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := indexapp.LoadConfig()
			if err != nil && cfg.HTTP.JWTSecret == "" {
				return fmt.Errorf("config: %w", err)
			}
			role, ok := auth.NormalizeRole(opts.role)
			if !ok {
				return fmt.Errorf("unknown role %q", opts.role)
			}
			token, err := auth.IssueJWT([]byte(cfg.HTTP.JWTSecret), opts.subject, role, opts.ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Token subject (required)")
	cmd.Flags().StringVar(&opts.role, "role", string(auth.RoleOperator), "Role: viewer, operator or admin")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
