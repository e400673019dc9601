package dashboard

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/ratebench/internal/metrics"
	"github.com/torosent/ratebench/internal/outcome"
)

func TestGaugePercent(t *testing.T) {
	tests := []struct {
		name     string
		achieved float64
		target   uint
		want     int
	}{
		{"half", 50, 100, 50},
		{"capped", 250, 100, 100},
		{"zero rate treated as one", 0.5, 0, 50},
		{"idle", 0, 10000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gaugePercent(tt.achieved, tt.target); got != tt.want {
				t.Errorf("gaugePercent(%v, %d) = %d, want %d", tt.achieved, tt.target, got, tt.want)
			}
		})
	}
}

func TestFormatReasonRows(t *testing.T) {
	rows := formatReasonRows(map[string]uint64{
		"http_status":      5,
		"connection_reset": 2,
		"dns":              2,
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if !strings.Contains(rows[0], "HTTP error response") || !strings.HasSuffix(rows[0], " 5") {
		t.Errorf("unexpected first row %q", rows[0])
	}
	if !strings.Contains(rows[1], "Connection reset") {
		t.Errorf("ties should sort by reason, got %q", rows[1])
	}

	empty := formatReasonRows(nil)
	if len(empty) != 1 || !strings.Contains(empty[0], "No failures") {
		t.Errorf("unexpected empty rows %v", empty)
	}
}

func TestFormatReasonRowsLimit(t *testing.T) {
	byReason := make(map[string]uint64)
	for i := 0; i < 15; i++ {
		byReason[string(rune('a'+i))] = uint64(i + 1)
	}
	if rows := formatReasonRows(byReason); len(rows) != 10 {
		t.Fatalf("expected rows capped at 10, got %d", len(rows))
	}
}

func TestFormatRunParams(t *testing.T) {
	got := formatRunParams(RunConfig{
		Rate:          500,
		Timeout:       2 * time.Second,
		IgnoreReasons: []string{"connection_reset", "timeout"},
		ConfigFile:    "bench.yaml",
		RunID:         "01ABC",
	})
	want := "Rate: 500/s | Timeout: 2s | Ignoring: connection_reset,timeout | Config: bench.yaml | Run: 01ABC"
	if got != want {
		t.Fatalf("formatRunParams() = %q, want %q", got, want)
	}

	if got := formatRunParams(RunConfig{Rate: 1}); got != "Rate: 1/s" {
		t.Fatalf("formatRunParams() minimal = %q", got)
	}
}

func TestTextPanels(t *testing.T) {
	stats := metrics.Stats{
		Duration:       3 * time.Second,
		Requests:       30,
		Successes:      27,
		Errors:         2,
		Ignored:        1,
		ErrorPercent:   6.666,
		MinLatencyMs:   1,
		MaxLatencyMs:   9,
		AvgLatencyMs:   4,
		P99LatencyMs:   8.5,
		RequestsPerSec: 10,
	}

	summary := summaryText(RunConfig{TargetURL: "http://localhost:8080", Rate: 10}, stats)
	for _, want := range []string{"Target: http://localhost:8080", "Elapsed: 3s", "Requests: 30", "Errors: 6.67%"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}

	counters := countersText(stats)
	for _, want := range []string{"Errors:          2", "Ignored errors:  1", "Requests/sec:    10.00"} {
		if !strings.Contains(counters, want) {
			t.Errorf("counters missing %q:\n%s", want, counters)
		}
	}

	latency := latencyText(stats)
	for _, want := range []string{"Min:      1ms", "Average:  4ms", "P99:      8.50ms"} {
		if !strings.Contains(latency, want) {
			t.Errorf("latency missing %q:\n%s", want, latency)
		}
	}
}

func TestUpdateReadsCollector(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	policy := outcome.NewPolicy(outcome.DefaultIgnored)
	collector.Record(policy.Classify(4*time.Millisecond, http.StatusOK, nil))
	collector.Record(policy.Classify(6*time.Millisecond, http.StatusServiceUnavailable, nil))

	d := &Dashboard{
		collector:      collector,
		latencySparkle: widgets.NewSparklineGroup(widgets.NewSparkline()),
		latencyPara:    widgets.NewParagraph(),
		rpsGauge:       widgets.NewGauge(),
		reasonList:     widgets.NewList(),
		summaryPara:    widgets.NewParagraph(),
		metricsPara:    widgets.NewParagraph(),
		cfg:            RunConfig{TargetURL: "http://localhost:8080", Rate: 100},
	}

	d.update()

	if len(d.latencyHistory) != 1 || d.latencyHistory[0] != 5 {
		t.Fatalf("expected one average sample of 5ms, got %v", d.latencyHistory)
	}
	if !strings.Contains(d.metricsPara.Text, "Requests:        2") {
		t.Errorf("unexpected counters panel:\n%s", d.metricsPara.Text)
	}
	if len(d.reasonList.Rows) != 1 || !strings.Contains(d.reasonList.Rows[0], "HTTP error response") {
		t.Errorf("unexpected reason rows %v", d.reasonList.Rows)
	}
	if !strings.HasSuffix(d.rpsGauge.Label, "/ 100 RPS") {
		t.Errorf("unexpected gauge label %q", d.rpsGauge.Label)
	}
}
