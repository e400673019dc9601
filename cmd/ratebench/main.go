package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-isatty"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/ratebench/internal/config"
	"github.com/torosent/ratebench/internal/dashboard"
	"github.com/torosent/ratebench/internal/exporter"
	"github.com/torosent/ratebench/internal/httpclient"
	"github.com/torosent/ratebench/internal/logging"
	"github.com/torosent/ratebench/internal/metrics"
	"github.com/torosent/ratebench/internal/outcome"
	"github.com/torosent/ratebench/internal/output"
	"github.com/torosent/ratebench/internal/runner"
	"github.com/torosent/ratebench/internal/shutdown"
	"github.com/torosent/ratebench/internal/threshold"
	"github.com/torosent/ratebench/internal/tracing"
)

const (
	progressInterval = time.Second
	flushTimeout     = 5 * time.Second
)

// interruptSignals are the only external control input: the first one ends the run.
var interruptSignals = []os.Signal{os.Interrupt}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, interruptSignals...)
	defer signal.Stop(signals)

	return execute(context.Background(), args, os.Stdout, os.Stderr, signals)
}

// execute runs one load test until the first signal arrives, then prints the report.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, signals <-chan os.Signal) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(stderr, logging.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Color:  isTerminal(stderr),
	})
	if err != nil {
		return err
	}

	runID := ulid.Make().String()
	logger = log.With(logger, "run_id", runID)
	for _, w := range cfg.Warnings() {
		level.Warn(logger).Log("msg", w)
	}

	builder, err := httpclient.NewRequestBuilder(cfg.TargetURL, cfg.Headers)
	if err != nil {
		return err
	}
	client := httpclient.NewClient(cfg.Timeout)
	defer client.CloseIdleConnections()

	collector := metrics.NewCollector()
	collector.SetRunInfo(metrics.RunInfo{RunID: runID, Target: builder.Target(), Rate: cfg.Rate})

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			level.Warn(logger).Log("msg", "tracing shutdown", "err", err)
		}
	}()

	requester := &httpRequester{
		client:    client,
		builder:   builder,
		collector: collector,
		policy:    outcome.NewPolicy(cfg.IgnoredReasons()),
		tracing:   tp,
	}
	// Everything that may log while the load is running goes through runLogger.
	runLogger := duringRunLogger(logger, cfg.Dashboard)

	var wrapped runner.Requester = requester
	if cfg.LogErrors {
		wrapped = runner.WithLogging(wrapped, logging.FailureLogger{Logger: runLogger})
	}

	ctrl := shutdown.New(ctx)
	ctrl.OnTransition(func(from, to shutdown.State) {
		level.Debug(runLogger).Log("msg", "state transition", "from", from, "to", to)
	})

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go ctrl.Watch(watchCtx, signals)

	if cfg.MetricsAddr != "" {
		reg, err := exporter.NewRegistry(collector)
		if err != nil {
			return err
		}
		go func() {
			if err := exporter.Serve(watchCtx, cfg.MetricsAddr, reg, runLogger); err != nil {
				level.Error(runLogger).Log("msg", "metrics exporter stopped", "err", err)
			}
		}()
	}

	r := runner.New(runner.Options{Rate: cfg.Rate, Requester: wrapped})
	level.Info(logger).Log("msg", "starting load", "target", builder.Target(), "rate", cfg.Rate, "period", r.Period())

	if cfg.Output == config.OutputText {
		output.PrintBanner(stdout, builder.Target(), cfg.Rate)
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.RunConfig{
			TargetURL:     builder.Target(),
			Rate:          cfg.Rate,
			Timeout:       cfg.Timeout,
			IgnoreReasons: cfg.IgnoreReasons,
			ConfigFile:    cfg.ConfigFile,
			RunID:         runID,
		}, func() { ctrl.Interrupt() })
		if err != nil {
			return err
		}
		dash.Start()
		defer dash.Stop()
	}

	var progress *output.ProgressReporter
	if cfg.Progress && cfg.Output == config.OutputText && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, stdout)
		progress.Start()
		defer progress.Stop()
	}

	collector.Start()
	result := r.Run(ctrl.Context())
	// Parent cancellation ends the run without an interrupt.
	ctrl.Interrupt()

	if progress != nil {
		progress.Stop()
	}
	if dash != nil {
		dash.Stop()
	}

	stats := collector.Stats(result.Duration)
	results := threshold.NewEvaluator(thresholds).Evaluate(stats)
	level.Info(logger).Log("msg", "load stopped", "ticks", result.Ticks, "requests", stats.Requests, "errors", stats.Errors, "ignored", stats.Ignored)

	var reportErr error
	if err := ctrl.Report(func() {
		reportErr = printReport(stdout, cfg.Output, stats, results)
	}); err != nil {
		return err
	}
	if reportErr != nil {
		return reportErr
	}
	if !threshold.AllPassed(results) {
		level.Warn(logger).Log("msg", "thresholds failed", "failed", failedExprs(results))
	}

	return ctrl.Terminate()
}

func printReport(w io.Writer, format config.OutputFormat, stats metrics.Stats, results []threshold.Result) error {
	switch format {
	case config.OutputJSON:
		return output.PrintJSONReport(w, stats, results)
	case config.OutputYAML:
		return output.PrintYAMLReport(w, stats, results)
	default:
		output.PrintReport(w, stats, results)
		return nil
	}
}

func failedExprs(results []threshold.Result) string {
	var failed []string
	for _, r := range results {
		if !r.Pass {
			failed = append(failed, r.Expr)
		}
	}
	return strings.Join(failed, "; ")
}

// duringRunLogger silences logging while the dashboard owns the terminal; log lines written to
// stderr in raw mode would tear the UI.
func duringRunLogger(logger log.Logger, dashboard bool) log.Logger {
	if dashboard {
		return logging.Nop()
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
