package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Result captures execution summary.
type Result struct {
	Ticks    int64
	Duration time.Duration
}

// Runner issues one dispatch per tick at a fixed rate until its context is cancelled.
type Runner struct {
	opt     Options
	period  time.Duration
	limiter *rate.Limiter
}

func New(opt Options) *Runner {
	opt.normalize()
	period := Period(opt.Rate)
	return &Runner{
		opt:     opt,
		period:  period,
		limiter: opt.LimiterFactory(period),
	}
}

// Period returns the interval between ticks.
func (r *Runner) Period() time.Duration {
	return r.period
}

// Run blocks until ctx is cancelled. Each tick starts the requester in its own goroutine and
// does not wait for it: there is no cap on in-flight dispatches, so when latency exceeds the
// period the number of concurrent requests grows without bound. Dispatches run on a context
// detached from ctx and are neither cancelled nor awaited when Run returns.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	detached := context.WithoutCancel(ctx)

	var ticks int64
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		ticks++
		if r.opt.Requester != nil {
			go func() {
				_ = r.opt.Requester.Do(detached)
			}()
		}
	}

	return Result{
		Ticks:    ticks,
		Duration: time.Since(start),
	}
}
