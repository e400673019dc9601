package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/torosent/ratebench/internal/metrics"
	"github.com/torosent/ratebench/internal/threshold"
)

// Report is the document written by the JSON and YAML reporters.
type Report struct {
	metrics.Stats `yaml:",inline"`
	Thresholds    []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

var (
	failColor = color.New(color.FgRed, color.Bold)
	passColor = color.New(color.FgGreen)
	dimColor  = color.New(color.Faint)
)

// PrintBanner announces the target and rate before the run starts.
func PrintBanner(w io.Writer, target string, rate uint) {
	fmt.Fprintf(w, "\n%s | %d\n", target, rate)
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats, results []threshold.Result) {
	fmt.Fprint(w, "\n\n")
	fmt.Fprintf(w, "Elapsed:             %s\n", formatElapsed(stats.Duration))
	fmt.Fprintf(w, "Requests:            %d\n", stats.Requests)
	errLine := fmt.Sprintf("Errors:              %d", stats.Errors)
	if stats.Errors > 0 {
		failColor.Fprintln(w, errLine)
	} else {
		fmt.Fprintln(w, errLine)
	}
	fmt.Fprintf(w, "Ignored errors:      %d\n", stats.Ignored)
	fmt.Fprintf(w, "Percent of errors:   %.2f%%\n", stats.ErrorPercent)
	fmt.Fprintln(w, "Response time:")
	fmt.Fprintf(w, " - Min:              %dms\n", stats.MinLatencyMs)
	fmt.Fprintf(w, " - Max:              %dms\n", stats.MaxLatencyMs)
	fmt.Fprintf(w, " - Average:          %dms\n", stats.AvgLatencyMs)
	fmt.Fprintf(w, " - P50:              %.2fms\n", stats.P50LatencyMs)
	fmt.Fprintf(w, " - P90:              %.2fms\n", stats.P90LatencyMs)
	fmt.Fprintf(w, " - P99:              %.2fms\n", stats.P99LatencyMs)
	fmt.Fprintf(w, "Requests/sec:        %.2f\n", stats.RequestsPerSec)

	if rows := metrics.FlattenReasons(stats.ErrorsByReason); len(rows) > 0 {
		fmt.Fprintln(w, "Failure breakdown:")
		for _, row := range rows {
			fmt.Fprintf(w, " - %-18s %d\n", metrics.FriendlyReason(row.Reason)+":", row.Count)
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(w, "Thresholds:")
		for _, r := range results {
			if r.Pass {
				passColor.Fprintf(w, " %s\n", r.Message)
			} else {
				failColor.Fprintf(w, " %s\n", r.Message)
			}
		}
	}

	if stats.RunID != "" {
		dimColor.Fprintf(w, "Run ID:              %s\n", stats.RunID)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{Stats: stats, Thresholds: results})
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, stats metrics.Stats, results []threshold.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Report{Stats: stats, Thresholds: results}); err != nil {
		return err
	}
	return enc.Close()
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(10 * time.Microsecond).String()
}
