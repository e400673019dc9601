package runner

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		wantRate uint
	}{
		{name: "zero rate clamped", input: Options{}, wantRate: 1},
		{name: "rate preserved", input: Options{Rate: 250}, wantRate: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.normalize()
			if opts.Rate != tt.wantRate {
				t.Errorf("Rate = %d, want %d", opts.Rate, tt.wantRate)
			}
			if opts.LimiterFactory == nil {
				t.Error("LimiterFactory should not be nil")
			}
		})
	}
}

func TestLimiterFactory(t *testing.T) {
	opts := Options{}
	opts.normalize()

	limiter := opts.LimiterFactory(10 * time.Millisecond)
	if limiter.Limit() != rate.Every(10*time.Millisecond) {
		t.Errorf("Limit = %v, want %v", limiter.Limit(), rate.Every(10*time.Millisecond))
	}
	if limiter.Burst() != 1 {
		t.Errorf("Burst = %d, want 1", limiter.Burst())
	}
}

func TestLimiterFactoryOverride(t *testing.T) {
	var got time.Duration
	r := New(Options{
		Rate: 4,
		LimiterFactory: func(period time.Duration) *rate.Limiter {
			got = period
			return rate.NewLimiter(rate.Inf, 1)
		},
	})
	if got != 250*time.Millisecond || r.Period() != got {
		t.Fatalf("factory saw period %s, runner period %s", got, r.Period())
	}
}
