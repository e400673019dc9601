package metrics

import (
	"math"
	"sync"
)

// minUnset marks the minimum as not yet observed.
const minUnset = math.MaxUint64

// LatencySnapshot is a consistent point-in-time view of an Aggregator.
// All values are milliseconds; they are zero while Count is zero.
type LatencySnapshot struct {
	Count   uint64 `json:"count" yaml:"count"`
	Min     uint64 `json:"min_ms" yaml:"min_ms"`
	Max     uint64 `json:"max_ms" yaml:"max_ms"`
	Average uint64 `json:"average_ms" yaml:"average_ms"`
}

// Aggregator maintains count, min, max and a running mean of latencies in O(1) per sample.
type Aggregator struct {
	mu      sync.Mutex
	count   uint64
	min     uint64
	max     uint64
	average uint64
	// remainder is the truncated part of average*count, so average*count+remainder is the exact sum.
	remainder uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{min: minUnset}
}

// Add records one latency sample in milliseconds.
func (a *Aggregator) Add(ms uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.count + 1
	total := a.average*a.count + a.remainder + ms
	a.average = total / next
	a.remainder = total % next
	a.count = next

	if ms < a.min {
		a.min = ms
	}
	if ms > a.max {
		a.max = ms
	}
}

// Snapshot returns the current aggregate. It never observes a partially applied Add.
func (a *Aggregator) Snapshot() LatencySnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:   a.count,
		Min:     a.min,
		Max:     a.max,
		Average: a.average,
	}
}
