// Package exporter publishes live run statistics in the Prometheus exposition format.
package exporter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/ratebench/internal/metrics"
)

const namespace = "ratebench"

// Source is the part of metrics.Collector read on every scrape.
type Source interface {
	Latency() metrics.LatencySnapshot
	Counters() metrics.CounterSnapshot
}

// Collector turns snapshots into Prometheus samples at scrape time.
type Collector struct {
	source Source

	requests  *prometheus.Desc
	successes *prometheus.Desc
	errors    *prometheus.Desc
	ignored   *prometheus.Desc
	byReason  *prometheus.Desc
	minMs     *prometheus.Desc
	maxMs     *prometheus.Desc
	avgMs     *prometheus.Desc
}

func New(source Source) *Collector {
	return &Collector{
		source: source,
		requests: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "requests_total"),
			"Dispatches whose latency has been recorded.", nil, nil),
		successes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "successes_total"),
			"Dispatches that returned a 2xx response.", nil, nil),
		errors: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "errors_total"),
			"Dispatches counted as errors.", nil, nil),
		ignored: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "ignored_errors_total"),
			"Transport failures classified as benign.", nil, nil),
		byReason: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "errors_by_reason_total"),
			"Failed dispatches by reason, counted and ignored alike.", []string{"reason"}, nil),
		minMs: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "latency_min_ms"),
			"Smallest observed latency in milliseconds.", nil, nil),
		maxMs: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "latency_max_ms"),
			"Largest observed latency in milliseconds.", nil, nil),
		avgMs: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "latency_average_ms"),
			"Truncated mean latency in milliseconds.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.successes
	ch <- c.errors
	ch <- c.ignored
	ch <- c.byReason
	ch <- c.minMs
	ch <- c.maxMs
	ch <- c.avgMs
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	// Counters are read before latency so errors never exceed requests.
	counters := c.source.Counters()
	latency := c.source.Latency()

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(latency.Count))
	ch <- prometheus.MustNewConstMetric(c.successes, prometheus.CounterValue, float64(counters.Successes))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(counters.Errors))
	ch <- prometheus.MustNewConstMetric(c.ignored, prometheus.CounterValue, float64(counters.Ignored))
	for reason, count := range counters.ByReason {
		ch <- prometheus.MustNewConstMetric(c.byReason, prometheus.CounterValue, float64(count), reason)
	}
	ch <- prometheus.MustNewConstMetric(c.minMs, prometheus.GaugeValue, float64(latency.Min))
	ch <- prometheus.MustNewConstMetric(c.maxMs, prometheus.GaugeValue, float64(latency.Max))
	ch <- prometheus.MustNewConstMetric(c.avgMs, prometheus.GaugeValue, float64(latency.Average))
}

// NewRegistry returns a registry holding the run collector plus Go runtime and process metrics.
func NewRegistry(source Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		New(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Handler serves the gatherer on /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, gatherer, logger)
}

func serve(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	srv := &http.Server{
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	level.Info(logger).Log("msg", "metrics exporter listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		level.Warn(logger).Log("msg", "metrics exporter shutdown", "err", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
