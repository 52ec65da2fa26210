// Command monitorz serves operation statistics from a monitorz registry and
// can drive a synthetic workload through it for demonstration.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/zoobzio/monitorz"
	"github.com/zoobzio/monitorz/internal/diagnostics"
	"github.com/zoobzio/monitorz/promexport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	Addr            string        `env:"MONITORZ_ADDR" envDefault:":9102"`
	LogLevel        string        `env:"MONITORZ_LOG_LEVEL" envDefault:"info"`
	Namespace       string        `env:"MONITORZ_NAMESPACE" envDefault:"monitorz"`
	DemoWorkers     int           `env:"MONITORZ_DEMO_WORKERS" envDefault:"0"`
	ShutdownTimeout time.Duration `env:"MONITORZ_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := monitorz.New(monitorz.WithLogger(logger.Named("registry")))
	defer func() { _ = registry.Close() }()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(registry, promexport.WithNamespace(cfg.Namespace)),
	)

	latency := promexport.NewLatencyHistogram(cfg.Namespace)
	promRegistry.MustRegister(latency)
	if _, err := promexport.NewLatencyObserver(registry, latency); err != nil {
		return fmt.Errorf("register latency observer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.DemoWorkers > 0 {
		logger.Info("starting demo workload", zap.Int("workers", cfg.DemoWorkers))
		startWorkload(ctx, &wg, registry, cfg.DemoWorkers)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           diagnostics.NewRouter(registry, promRegistry, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("diagnostics listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve diagnostics: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	wg.Wait()
	logger.Info("monitorz stopped", zap.Int64("operations", registry.Metrics().Operations))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

var errDemoFailure = errors.New("demo: simulated failure")

// demoOperations are the synthetic operations the workload reports.
var demoOperations = []monitorz.Key{
	"demo.Catalog.Search(context.Context, string)",
	"demo.Orders.Create(context.Context, Order)",
	"demo.Payments.Charge(context.Context, int64)",
}

// startWorkload runs workers that call the demo operations until ctx ends.
func startWorkload(ctx context.Context, wg *sync.WaitGroup, registry *monitorz.Registry, workers int) {
	monitors := make([]*monitorz.Monitor, len(demoOperations))
	for i, name := range demoOperations {
		monitors[i] = registry.Monitor(name, monitorz.WithFailureLevel(zapcore.WarnLevel))
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				m := monitors[rand.IntN(len(monitors))]
				_ = m.Run(ctx, simulate)
			}
		}()
	}
}

// simulate sleeps for a random duration and fails about one call in twenty.
func simulate(ctx context.Context) error {
	delay := time.Duration(1+rand.IntN(50)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if rand.IntN(20) == 0 {
		return errDemoFailure
	}
	return nil
}
