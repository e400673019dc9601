// Package metrics aggregates per-request outcomes for a ratebench run.
//
// # Aggregator
//
// [Aggregator] keeps count, min, max and a running mean of latencies in
// milliseconds. Each [Aggregator.Add] is one critical section, so concurrent
// callers never interleave partially and a [Aggregator.Snapshot] never sees a
// half-applied sample. The mean is maintained incrementally with the truncation
// remainder carried forward, which makes the final value equal to sum/N for any
// order of additions.
//
// # Error counters
//
// [ErrorCounters] places every outcome into exactly one of three buckets:
// successes, counted errors and ignored errors (benign transport failures
// selected by an [outcome.Policy]). Failures are also broken down by
// [outcome.Reason].
//
// # Collector
//
// [Collector] composes both with an HDR histogram for percentiles:
//
//	collector := metrics.NewCollector()
//	collector.Record(policy.Classify(elapsed, resp.StatusCode, err))
//	stats := collector.Stats(runDuration)
//
// The collector is constructed once per run and passed explicitly to the
// dispatcher and every reader.
package metrics
