// Command pizzaflow serves the pizza order workflow over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.temporal.io/sdk/client"

	"github.com/petrijr/pizzaflow/internal/classifier"
	"github.com/petrijr/pizzaflow/internal/config"
	"github.com/petrijr/pizzaflow/internal/engine"
	"github.com/petrijr/pizzaflow/internal/httpapi"
	"github.com/petrijr/pizzaflow/internal/kitchen"
	"github.com/petrijr/pizzaflow/internal/menu"
	"github.com/petrijr/pizzaflow/internal/metrics"
	"github.com/petrijr/pizzaflow/internal/temporal"
	"github.com/petrijr/pizzaflow/internal/tracing"
	"github.com/petrijr/pizzaflow/pkg/api"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pizzaflow_exit", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flavors, err := loadFlavors(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cls := classifier.New(flavors, logger)
	k := &kitchen.Kitchen{PrepareTime: cfg.PrepareTime, DeliveryTime: cfg.DeliveryTime}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promObs, err := metrics.NewPrometheusObserver(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	observers := []api.Observer{api.NewLoggingObserver(logger), promObs}
	if cfg.TraceStdout {
		tp, err := tracing.NewStdoutProvider(os.Stdout)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
		observers = append(observers, tracing.NewObserver(tp))
	}

	def := cfg.Definition
	eng, err := engine.New(engine.Config{
		Definition: &def,
		Classify:   cls.Classify,
		Kitchen:    k,
		Observer:   api.NewCompositeObserver(observers...),
	})
	if err != nil {
		return err
	}

	h := &httpapi.Handler{
		Engine:  eng,
		Metrics: metrics.Handler(reg),
		Logger:  logger,
	}

	if cfg.TemporalAddress != "" {
		c, err := temporal.Dial(cfg.TemporalAddress, logger)
		if err != nil {
			return fmt.Errorf("dial temporal: %w", err)
		}
		defer c.Close()

		acts := temporal.NewActivities(cls.Classify)
		acts.Kitchen = k
		acts.Transient = def.Retry.Transient()
		w := temporal.NewWorker(c, cfg.TaskQueue, def, acts)
		if err := w.Start(); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
		defer w.Stop()

		h.Remote = remoteSubmitter(c, cfg.TaskQueue, def)
		logger.Info("temporal_worker_started",
			slog.String("address", cfg.TemporalAddress),
			slog.String("task_queue", cfg.TaskQueue),
		)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_started", slog.String("addr", cfg.Addr), slog.Any("flavors", cls.Flavors()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// In-flight orders may run up to the workflow timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), def.Timeout)
	defer cancel()
	logger.Info("http_server_stopping")
	return srv.Shutdown(shutdownCtx)
}

// loadFlavors returns the classifier allow-set: the menu database when one
// is configured, seeded from the configured flavors on first use.
func loadFlavors(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]string, error) {
	if cfg.MenuDB == "" {
		return cfg.Flavors, nil
	}

	m, err := menu.OpenSQLite(cfg.MenuDB)
	if err != nil {
		return nil, fmt.Errorf("open menu: %w", err)
	}
	defer m.Close()

	flavors, err := m.Flavors(ctx)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	if len(flavors) > 0 {
		return flavors, nil
	}

	logger.Info("menu_seeded", slog.String("dsn", cfg.MenuDB), slog.Any("flavors", cfg.Flavors))
	if err := m.Add(ctx, cfg.Flavors...); err != nil {
		return nil, fmt.Errorf("seed menu: %w", err)
	}
	return m.Flavors(ctx)
}

func remoteSubmitter(c client.Client, taskQueue string, def api.Definition) httpapi.Submitter {
	return func(ctx context.Context, payload []byte) (api.TerminalResult, error) {
		opts := temporal.StartOptions("order-"+uuid.NewString(), taskQueue, def)
		return temporal.Submit(ctx, c, opts, payload)
	}
}
