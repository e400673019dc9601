package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/ratebench/internal/outcome"
)

// RunInfo labels the statistics of one load run.
type RunInfo struct {
	RunID  string
	Target string
	Rate   uint
}

// Collector records per-request outcomes in a thread-safe manner.
type Collector struct {
	latency  *Aggregator
	counters *ErrorCounters

	mu   sync.Mutex
	hist *hdrhistogram.Histogram

	info  RunInfo
	start time.Time
}

// Stats is the snapshot handed to reporters.
type Stats struct {
	RunID          string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Target         string            `json:"target,omitempty" yaml:"target,omitempty"`
	Rate           uint              `json:"rate" yaml:"rate"`
	Duration       time.Duration     `json:"-" yaml:"-"`
	DurationMs     float64           `json:"duration_ms" yaml:"duration_ms"`
	Requests       uint64            `json:"requests" yaml:"requests"`
	Successes      uint64            `json:"successes" yaml:"successes"`
	Errors         uint64            `json:"errors" yaml:"errors"`
	Ignored        uint64            `json:"ignored_errors" yaml:"ignored_errors"`
	ErrorPercent   float64           `json:"error_percent" yaml:"error_percent"`
	MinLatencyMs   uint64            `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs   uint64            `json:"max_latency_ms" yaml:"max_latency_ms"`
	AvgLatencyMs   uint64            `json:"average_latency_ms" yaml:"average_latency_ms"`
	P50LatencyMs   float64           `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs   float64           `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs   float64           `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	RequestsPerSec float64           `json:"requests_per_sec" yaml:"requests_per_sec"`
	ErrorsByReason map[string]uint64 `json:"errors_by_reason,omitempty" yaml:"errors_by_reason,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		latency:  NewAggregator(),
		counters: NewErrorCounters(),
		hist:     h,
		start:    time.Now(),
	}
}

// SetRunInfo attaches labels that are copied into every Stats snapshot.
func (c *Collector) SetRunInfo(info RunInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = info
}

// Start resets the reference time used for live elapsed calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Record stores one dispatch outcome. The latency sample is added before the counters so a
// snapshot that reads counters first never sees more errors than samples.
func (c *Collector) Record(o outcome.Outcome) {
	c.latency.Add(o.ElapsedMs())
	c.counters.Record(o)

	us := o.Elapsed.Microseconds()
	c.mu.Lock()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
	c.mu.Unlock()
}

// Latency returns the aggregator snapshot.
func (c *Collector) Latency() LatencySnapshot {
	return c.latency.Snapshot()
}

// Counters returns the error counter snapshot.
func (c *Collector) Counters() CounterSnapshot {
	return c.counters.Snapshot()
}

// Stats computes the aggregated statistics for a run of the given duration.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	counters := c.counters.Snapshot()
	latency := c.latency.Snapshot()

	c.mu.Lock()
	info := c.info
	var p50, p90, p99 int64
	if c.hist.TotalCount() > 0 {
		p50 = c.hist.ValueAtQuantile(50)
		p90 = c.hist.ValueAtQuantile(90)
		p99 = c.hist.ValueAtQuantile(99)
	}
	c.mu.Unlock()

	stats := Stats{
		RunID:          info.RunID,
		Target:         info.Target,
		Rate:           info.Rate,
		Duration:       elapsed,
		DurationMs:     float64(elapsed) / float64(time.Millisecond),
		Requests:       latency.Count,
		Successes:      counters.Successes,
		Errors:         counters.Errors,
		Ignored:        counters.Ignored,
		ErrorPercent:   ErrorPercent(counters.Errors, latency.Count),
		MinLatencyMs:   latency.Min,
		MaxLatencyMs:   latency.Max,
		AvgLatencyMs:   latency.Average,
		P50LatencyMs:   float64(p50) / 1000,
		P90LatencyMs:   float64(p90) / 1000,
		P99LatencyMs:   float64(p99) / 1000,
		ErrorsByReason: counters.ByReason,
	}
	if elapsed > 0 && latency.Count > 0 {
		stats.RequestsPerSec = float64(latency.Count) / elapsed.Seconds()
	}
	return stats
}

// ErrorPercent returns errors/count*100, or 0 when count is zero.
func ErrorPercent(errors, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(errors) / float64(count) * 100
}
