package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/torosent/ratebench/internal/outcome"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ratebench",
		Short:         "Send HTTP GET requests at a fixed rate until interrupted",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	RegisterFlags(cmd)
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Load
	flags.StringP("url", "u", DefaultTargetURL, "Target URL for the benchmark (http only)")
	flags.UintP("rps", "r", DefaultRate, "Target number of requests per second (0 is treated as 1)")
	flags.StringSliceP("header", "H", nil, "Additional request header in key=value form (repeatable)")
	flags.Duration("timeout", 0, "Per-request client timeout (0 disables)")
	flags.StringSlice("ignore-reason", []string{string(outcome.ReasonConnectionReset)},
		fmt.Sprintf("Transport failure reasons counted as ignored instead of errors (%v)", outcome.TransportReasons()))

	// Output
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.Bool("progress", true, "Print a live progress line while running (text output only)")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.StringSlice("threshold", nil, "Assertion checked against the final report (repeatable, e.g. 'latency:p99 < 500')")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	// Logging
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.String("log-level", "info", "Log level: debug, info, warn, error or none")
	flags.String("log-format", "logfmt", "Log format: logfmt or json")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; enables tracing when set")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "ratebench", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of dispatches traced (0 to 1)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Bool("tracing-propagate", true, "Inject W3C trace context headers into requests")

	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEvery flag can also be set through a %s_<FLAG> environment variable.\n", EnvPrefix)
}
