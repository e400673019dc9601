package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/ratebench/internal/httpclient"
	"github.com/torosent/ratebench/internal/metrics"
	"github.com/torosent/ratebench/internal/outcome"
	"github.com/torosent/ratebench/internal/runner"
	"github.com/torosent/ratebench/internal/tracing"
)

// httpRequester implements runner.Requester: one GET per call, recorded exactly once.
type httpRequester struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	collector *metrics.Collector
	policy    outcome.Policy
	tracing   *tracing.Provider
}

// Do times a single GET from just before the round trip until the response headers arrive or
// the transport fails. The body is drained so the connection can be reused.
func (r *httpRequester) Do(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartRequestSpan(ctx, r.tracing.Tracer(), r.builder.Target())

	req, err := r.builder.Build(ctx)
	if err != nil {
		o := r.policy.Classify(0, 0, err)
		r.collector.Record(o)
		resultErr := dispatchError(o, err)
		tracing.EndSpan(span, resultErr)
		return resultErr
	}
	if r.tracing.ShouldPropagate() {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	elapsed := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	o := r.policy.Classify(elapsed, status, err)
	r.collector.Record(o)

	resultErr := dispatchError(o, err)
	attrs := []attribute.KeyValue{
		attribute.String("ratebench.outcome", o.Kind.String()),
		attribute.Bool("ratebench.ignored", o.Ignored),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}
	tracing.EndSpan(span, resultErr, attrs...)
	return resultErr
}

// dispatchError returns nil for successes, *runner.HTTPError for non-2xx responses and
// *outcome.TransportError for transport failures, ignored or not.
func dispatchError(o outcome.Outcome, err error) error {
	switch o.Kind {
	case outcome.KindSuccess:
		return nil
	case outcome.KindHTTPError:
		return &runner.HTTPError{StatusCode: o.StatusCode}
	default:
		return &outcome.TransportError{Reason: o.Reason, Err: err}
	}
}
