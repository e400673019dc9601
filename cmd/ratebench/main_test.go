package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/ratebench/internal/config"
	"github.com/torosent/ratebench/internal/httpclient"
	"github.com/torosent/ratebench/internal/logging"
	"github.com/torosent/ratebench/internal/metrics"
	"github.com/torosent/ratebench/internal/outcome"
	"github.com/torosent/ratebench/internal/output"
	"github.com/torosent/ratebench/internal/runner"
	"github.com/torosent/ratebench/internal/tracing"
)

func newTestRequester(t *testing.T, target string, client *http.Client) (*httpRequester, *metrics.Collector) {
	t.Helper()
	builder, err := httpclient.NewRequestBuilder(target, nil)
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	collector := metrics.NewCollector()
	return &httpRequester{
		client:    client,
		builder:   builder,
		collector: collector,
		policy:    outcome.NewPolicy(outcome.DefaultIgnored),
	}, collector
}

// runFor drives the requester at rate for d, then waits until every dispatch has been recorded.
func runFor(t *testing.T, req runner.Requester, collector *metrics.Collector, rate uint, d time.Duration) runner.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	collector.Start()
	result := runner.New(runner.Options{Rate: rate, Requester: req}).Run(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for collector.Latency().Count < uint64(result.Ticks) {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d dispatches recorded", collector.Latency().Count, result.Ticks)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return result
}

func TestHealthyBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, collector := newTestRequester(t, server.URL, httpclient.NewClient(0))
	result := runFor(t, req, collector, 100, time.Second)

	stats := collector.Stats(result.Duration)
	if stats.Errors != 0 || stats.Ignored != 0 {
		t.Fatalf("expected no errors, got %d counted and %d ignored", stats.Errors, stats.Ignored)
	}
	if stats.Requests < 80 || stats.Requests > 102 {
		t.Fatalf("expected about 100 requests, got %d", stats.Requests)
	}
	if stats.Successes != stats.Requests {
		t.Fatalf("successes = %d, requests = %d", stats.Successes, stats.Requests)
	}
	if !(stats.MinLatencyMs <= stats.AvgLatencyMs && stats.AvgLatencyMs <= stats.MaxLatencyMs) {
		t.Fatalf("expected min <= avg <= max, got %d/%d/%d", stats.MinLatencyMs, stats.AvgLatencyMs, stats.MaxLatencyMs)
	}
	if stats.ErrorPercent != 0 {
		t.Fatalf("error percent = %v", stats.ErrorPercent)
	}
}

func TestFailingBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	req, collector := newTestRequester(t, server.URL, httpclient.NewClient(0))
	result := runFor(t, req, collector, 50, 300*time.Millisecond)

	stats := collector.Stats(result.Duration)
	if stats.Requests == 0 {
		t.Fatal("expected some requests")
	}
	if stats.Errors != stats.Requests {
		t.Fatalf("errors = %d, requests = %d", stats.Errors, stats.Requests)
	}
	if stats.ErrorPercent != 100 {
		t.Fatalf("error percent = %v, want 100", stats.ErrorPercent)
	}
	if stats.ErrorsByReason[string(outcome.ReasonHTTPStatus)] != stats.Requests {
		t.Fatalf("unexpected breakdown %v", stats.ErrorsByReason)
	}

	var buf bytes.Buffer
	output.PrintReport(&buf, stats, nil)
	if !strings.Contains(buf.String(), "100.00%") {
		t.Fatalf("report missing 100.00%%:\n%s", buf.String())
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func resettingClient() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	})}
}

func TestBenignResetsAreIgnored(t *testing.T) {
	req, collector := newTestRequester(t, "http://ratebench.invalid", resettingClient())
	result := runFor(t, req, collector, 50, 200*time.Millisecond)

	stats := collector.Stats(result.Duration)
	if stats.Requests == 0 {
		t.Fatal("expected some requests")
	}
	if stats.Errors != 0 {
		t.Fatalf("errors = %d, want 0", stats.Errors)
	}
	if stats.Ignored != stats.Requests {
		t.Fatalf("ignored = %d, requests = %d", stats.Ignored, stats.Requests)
	}
	if stats.ErrorPercent != 0 {
		t.Fatalf("error percent = %v, want 0", stats.ErrorPercent)
	}
}

func TestResetsCountedWhenNotIgnored(t *testing.T) {
	req, collector := newTestRequester(t, "http://ratebench.invalid", resettingClient())
	req.policy = outcome.NewPolicy(nil)

	err := req.Do(context.Background())
	var te *outcome.TransportError
	if !errors.As(err, &te) || te.Reason != outcome.ReasonConnectionReset {
		t.Fatalf("expected connection_reset transport error, got %v", err)
	}
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Fatal("transport error should unwrap to the syscall error")
	}
	if got := collector.Counters(); got.Errors != 1 || got.Ignored != 0 {
		t.Fatalf("unexpected counters %+v", got)
	}
}

func TestDoReturnsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	req, collector := newTestRequester(t, server.URL, httpclient.NewClient(0))
	err := req.Do(context.Background())

	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTeapot {
		t.Fatalf("expected HTTP 418 error, got %v", err)
	}
	if collector.Latency().Count != 1 {
		t.Fatalf("expected exactly one recorded sample, got %d", collector.Latency().Count)
	}
}

func TestDoRecordsRedirectAsError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/ok", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.NewClient(0)
	defer client.CloseIdleConnections()
	req, collector := newTestRequester(t, server.URL+"/", client)

	err := req.Do(context.Background())
	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusFound {
		t.Fatalf("expected HTTP 302 error, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server saw %d requests for one dispatch, want 1", got)
	}
	counters := collector.Counters()
	if counters.Errors != 1 || counters.Successes != 0 {
		t.Fatalf("unexpected counters %+v", counters)
	}
}

func TestInterruptIsOnlySignal(t *testing.T) {
	if len(interruptSignals) != 1 || interruptSignals[0] != os.Interrupt {
		t.Fatalf("interruptSignals = %v, want [interrupt]", interruptSignals)
	}
}

func TestDuringRunLoggerQuietWithDashboard(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(&buf, logging.Options{Level: "debug"})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}

	logging.FailureLogger{Logger: duringRunLogger(base, true)}.LogFailure(errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("expected no output while the dashboard runs, got %q", buf.String())
	}

	logging.FailureLogger{Logger: duringRunLogger(base, false)}.LogFailure(errors.New("boom"))
	if !strings.Contains(buf.String(), "request failed") {
		t.Fatalf("expected failure to be logged without the dashboard, got %q", buf.String())
	}
}

func TestDispatchError(t *testing.T) {
	cause := errors.New("dial failed")
	tests := []struct {
		name string
		o    outcome.Outcome
		want string
	}{
		{"success", outcome.Outcome{Kind: outcome.KindSuccess}, ""},
		{"status", outcome.Outcome{Kind: outcome.KindHTTPError, StatusCode: 503}, "HTTP 503"},
		{"transport", outcome.Outcome{Kind: outcome.KindTransportError, Reason: outcome.ReasonOther}, "transport other: dial failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dispatchError(tt.o, cause)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Fatalf("dispatchError() = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDoPropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	seen := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("Traceparent")
	}))
	defer server.Close()

	spans := tracetest.NewInMemoryExporter()
	tp := tracing.NewProvider(spans, nil, 1.0, true)
	defer tp.Shutdown(context.Background())

	req, _ := newTestRequester(t, server.URL, httpclient.NewClient(0))
	req.tracing = tp
	if err := req.Do(context.Background()); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if header := <-seen; !strings.HasPrefix(header, "00-") {
		t.Fatalf("expected W3C traceparent header, got %q", header)
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}
	if got := len(spans.GetSpans()); got != 1 {
		t.Fatalf("expected one span, got %d", got)
	}
}

func TestExecuteUntilInterrupt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	signals := make(chan os.Signal, 2)
	go func() {
		time.Sleep(300 * time.Millisecond)
		signals <- os.Interrupt
		// A second interrupt during the report has no effect.
		signals <- os.Interrupt
	}()

	var stdout, stderr bytes.Buffer
	args := []string{"-u", server.URL, "-r", "50", "-o", "json", "--log-level", "none"}
	if err := execute(context.Background(), args, &stdout, &stderr, signals); err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	var report map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, stdout.String())
	}
	if report["errors"].(float64) != 0 {
		t.Fatalf("expected no errors, got %v", report["errors"])
	}
	if report["rate"].(float64) != 50 {
		t.Fatalf("rate = %v, want 50", report["rate"])
	}
	if id, _ := report["run_id"].(string); len(id) != 26 {
		t.Fatalf("expected a ULID run id, got %q", id)
	}
}

func TestExecuteTextReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	args := []string{"-u", server.URL, "-r", "20", "--progress=false", "--threshold", "errors:count == 0"}
	if err := execute(ctx, args, &stdout, &stderr, make(chan os.Signal)); err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	out := stdout.String()
	for _, want := range []string{server.URL + " | 20", "Percent of errors:", "errors:count == 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(stderr.String(), "starting load") {
		t.Errorf("expected startup log line, got %q", stderr.String())
	}
}

func TestExecuteConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"https rejected", []string{"-u", "https://example.com"}, config.ErrHTTPSUnsupported},
		{"scheme rejected", []string{"-u", "ftp://example.com"}, config.ErrUnsupportedScheme},
		{"relative url", []string{"-u", "/path"}, config.ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execute(context.Background(), tt.args, &bytes.Buffer{}, &bytes.Buffer{}, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("execute() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := execute(context.Background(), []string{"--rps", "abc"}, &bytes.Buffer{}, &bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected flag parse error")
	}
}

func TestExecuteHelp(t *testing.T) {
	if err := execute(context.Background(), []string{"--help"}, &bytes.Buffer{}, &bytes.Buffer{}, nil); err != nil {
		t.Fatalf("--help should not fail, got %v", err)
	}
}
