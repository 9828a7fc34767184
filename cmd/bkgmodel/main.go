package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/gbm-background/internal/config"
	"github.com/signalsfoundry/gbm-background/internal/logging"
	"github.com/signalsfoundry/gbm-background/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "YAML run configuration (default $"+config.EnvPath+")")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	flag.Parse()

	envErr := godotenv.Load()
	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, runID := logging.EnsureRunID(ctx)
	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn(ctx, "error loading .env file", logging.Err(envErr))
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	modelMetrics, err := observability.NewModelCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	responseMetrics, err := observability.NewResponseCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, modelMetrics, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	cfg, path, err := config.Resolve(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.String("path", path), logging.Err(err))
		os.Exit(1)
	}
	log.Info(ctx, "starting background model run", logging.String("run_id", runID), logging.String("config", path))

	d := deps{log: log, model: modelMetrics, response: responseMetrics}
	if err := run(ctx, cfg, d, os.Stdout); err != nil {
		log.Error(ctx, "run failed", logging.Err(err))
		os.Exit(1)
	}
}

// run builds the model, predicts at the configured starting parameters and
// writes a per-component summary to w.
func run(ctx context.Context, cfg config.Config, d deps, w io.Writer) error {
	start := time.Now()
	r, err := buildRun(ctx, cfg, d)
	if err != nil {
		return err
	}
	d.log.Info(ctx, "model constructed",
		logging.Int("components", len(r.model.Components())),
		logging.Int("parameters", r.model.NumParameters()),
		logging.Duration("elapsed", time.Since(start)),
	)

	total, err := r.model.Predict(ctx, r.bins, r.params)
	if err != nil {
		return err
	}
	parts, err := r.model.Breakdown(ctx, r.bins, r.params)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	first, last := r.bins.Span()
	fmt.Fprintf(w, "Predicted %d bins [%.3f, %.3f] MET, %d detectors x %d echans\n",
		r.bins.Len(), first, last, r.model.Layout().NumDetectors(), r.model.Layout().NumEchans())
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %14.3f counts\n", name, floats.Sum(parts[name].Data))
	}
	fmt.Fprintf(w, "  %-16s %14.3f counts\n", "total", floats.Sum(total.Data))
	return nil
}

func serveMetrics(addr string, collector *observability.ModelCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
