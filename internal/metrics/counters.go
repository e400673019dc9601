package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/torosent/ratebench/internal/outcome"
)

// CounterSnapshot is a read-only copy of ErrorCounters.
type CounterSnapshot struct {
	Successes uint64            `json:"successes" yaml:"successes"`
	Errors    uint64            `json:"errors" yaml:"errors"`
	Ignored   uint64            `json:"ignored_errors" yaml:"ignored_errors"`
	ByReason  map[string]uint64 `json:"errors_by_reason,omitempty" yaml:"errors_by_reason,omitempty"`
}

// Total is the number of outcomes recorded across all three buckets.
func (s CounterSnapshot) Total() uint64 {
	return s.Successes + s.Errors + s.Ignored
}

// ErrorCounters tallies outcomes into success, counted error and ignored error buckets.
type ErrorCounters struct {
	successes atomic.Uint64
	errors    atomic.Uint64
	ignored   atomic.Uint64
	byReason  sync.Map // outcome.Reason -> *atomic.Uint64
}

func NewErrorCounters() *ErrorCounters {
	return &ErrorCounters{}
}

// Record adds o to exactly one bucket.
func (c *ErrorCounters) Record(o outcome.Outcome) {
	switch {
	case o.Kind == outcome.KindSuccess:
		c.successes.Add(1)
		return
	case o.Ignored:
		c.ignored.Add(1)
	default:
		c.errors.Add(1)
	}

	val, _ := c.byReason.LoadOrStore(o.Reason, new(atomic.Uint64))
	val.(*atomic.Uint64).Add(1)
}

// Snapshot copies the current counters.
func (c *ErrorCounters) Snapshot() CounterSnapshot {
	snap := CounterSnapshot{
		Successes: c.successes.Load(),
		Errors:    c.errors.Load(),
		Ignored:   c.ignored.Load(),
	}
	c.byReason.Range(func(key, value any) bool {
		if snap.ByReason == nil {
			snap.ByReason = make(map[string]uint64)
		}
		snap.ByReason[string(key.(outcome.Reason))] = value.(*atomic.Uint64).Load()
		return true
	})
	return snap
}
