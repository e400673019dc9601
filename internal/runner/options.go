package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Requester abstracts executing a single request operation.
// Implementations should return an error for failed requests.
type Requester interface {
	Do(ctx context.Context) error
}

// Options configure the Runner.
type Options struct {
	Rate           uint                                   // requests per second; 0 is clamped to 1
	Requester      Requester                              // request executor (required)
	LimiterFactory func(period time.Duration) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Rate == 0 {
		o.Rate = 1
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(period time.Duration) *rate.Limiter {
			// Burst of one: the first tick is immediate, the rest are spaced by period.
			return rate.NewLimiter(rate.Every(period), 1)
		}
	}
}

// Period returns the tick interval for rps, 1_000_000/rps microseconds truncated and never
// shorter than one microsecond.
func Period(rps uint) time.Duration {
	if rps == 0 {
		rps = 1
	}
	micros := 1_000_000 / uint64(rps)
	if micros == 0 {
		micros = 1
	}
	return time.Duration(micros) * time.Microsecond
}
