package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/ec2backup/internal/backup"
	"github.com/jbweber/ec2backup/internal/metrics"
	"github.com/jbweber/ec2backup/internal/schedule"
)

var (
	serveSchedule    string
	serveMetricsAddr string
	serveRunNow      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workflow on a cron schedule",
	Long: `Run the full workflow on a cron schedule until interrupted.

Prometheus metrics are served on /metrics. /healthz answers 200 while the
scheduler is running and 503 otherwise.
A run still in progress when the next activation arrives causes that
activation to be skipped.

Example:
  ec2backup serve --schedule "0 3 * * *" --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.log.Sync() }()

		if cmd.Flags().Changed("schedule") {
			a.cfg.Schedule = serveSchedule
		}
		if cmd.Flags().Changed("metrics-addr") {
			a.cfg.MetricsAddr = serveMetricsAddr
		}
		if err := a.cfg.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		return serve(cmd.Context(), a)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "Cron expression (default from config, \"0 3 * * *\")")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Listen address for /metrics and /healthz (default \":9090\")")
	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "Run once immediately after the scheduler starts")
}

func serve(ctx context.Context, a *app) error {
	recorder := metrics.New()
	runner := a.runner(backup.WithMetrics(recorder))

	// Aborted runs are already logged by the scheduler; serve mode keeps going.
	job := func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	}

	scheduler := schedule.New(a.cfg.Schedule, job, a.log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.Handle("/healthz", healthHandler(scheduler))

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("serving metrics", zap.String("addr", a.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
		}
		close(errCh)
	}()

	if err := scheduler.Start(ctx); err != nil {
		_ = srv.Close()
		return err
	}
	if next := scheduler.NextRun(); next != nil {
		a.log.Info("next run scheduled", zap.Time("at", *next))
	}
	if serveRunNow {
		scheduler.RunNow()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.log.Info("shutting down")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("metrics server shutdown failed", zap.Error(err))
	}

	return serveErr
}

// healthHandler reports 200 while the scheduler is running and 503 otherwise.
func healthHandler(s interface{ IsRunning() bool }) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !s.IsRunning() {
			http.Error(w, "scheduler not running", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
}
