// Package runner provides the fixed-rate dispatch loop for ratebench.
//
// A [Runner] ticks at a fixed period of 1_000_000/R microseconds, where R is
// the configured rate in requests per second (0 is treated as 1). Pacing is
// delegated to a golang.org/x/time/rate limiter with a burst of one, so the
// first tick is immediate and later ticks never catch up in bursts.
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Rate:      100,
//		Requester: myRequester,
//	})
//	result := r.Run(ctx)
//
// # Fire and forget
//
// Every tick starts [Requester.Do] in its own goroutine and moves on. There is
// no backpressure: if requests take longer than the period, in-flight work
// grows without bound. Cancelling ctx stops new ticks only; requests already
// started keep a detached context and are not awaited.
//
// # Middleware
//
// [WithLogging] reports failed dispatches to a [FailureLogger]. Non-2xx
// responses surface as [HTTPError].
package runner
