package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/ratebench/internal/outcome"
	"github.com/torosent/ratebench/internal/threshold"
)

const (
	DefaultTargetURL = "http://localhost:8080"
	DefaultRate      = 10_000

	// HighRateThreshold is the rate above which a warning is logged before the run starts.
	HighRateThreshold = 10_000
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

var (
	ErrInvalidURL        = errors.New("invalid target URL")
	ErrHTTPSUnsupported  = errors.New("only http targets are supported")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

type Config struct {
	TargetURL     string            `mapstructure:"url"`
	Rate          uint              `mapstructure:"rps"`
	HeaderArgs    []string          `mapstructure:"header"`
	Headers       map[string]string `mapstructure:"-"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	IgnoreReasons []string          `mapstructure:"ignore-reason"`
	Output        OutputFormat      `mapstructure:"output"`
	Progress      bool              `mapstructure:"progress"`
	Dashboard     bool              `mapstructure:"dashboard"`
	LogErrors     bool              `mapstructure:"log-errors"`
	LogLevel      string            `mapstructure:"log-level"`
	LogFormat     string            `mapstructure:"log-format"`
	Thresholds    []string          `mapstructure:"threshold"`
	MetricsAddr   string            `mapstructure:"metrics-addr"`
	Tracing       TracingConfig     `mapstructure:",squash"`
	ConfigFile    string            `mapstructure:"config"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"tracing-endpoint"`
	Protocol    string  `mapstructure:"tracing-protocol"`
	ServiceName string  `mapstructure:"tracing-service-name"`
	SampleRate  float64 `mapstructure:"tracing-sample-rate"`
	Insecure    bool    `mapstructure:"tracing-insecure"`
	Propagate   bool    `mapstructure:"tracing-propagate"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether trace context headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() && t.Propagate
}

// IgnoredReasons returns the parsed ignore list. Invalid entries are skipped; Validate reports them.
func (c Config) IgnoredReasons() []outcome.Reason {
	reasons := make([]outcome.Reason, 0, len(c.IgnoreReasons))
	for _, raw := range c.IgnoreReasons {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if r, err := outcome.ParseReason(raw); err == nil {
			reasons = append(reasons, r)
		}
	}
	return reasons
}

// Warnings returns advisory messages that do not block the run.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Rate > HighRateThreshold {
		warnings = append(warnings, fmt.Sprintf("high request rate configured (%d RPS); ensure you are authorized to test the target system", c.Rate))
	}
	if c.Tracing.Enabled() && c.Tracing.Insecure {
		warnings = append(warnings, "tracing exporter TLS is disabled")
	}
	return warnings
}

type ValidationError struct {
	issues []string
	errs   []error
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Unwrap exposes the sentinel errors behind individual issues.
func (e ValidationError) Unwrap() []error {
	return e.errs
}

func (c Config) Validate() error {
	var issues []string
	var errs []error

	if _, err := ParseTarget(c.TargetURL); err != nil {
		issues = append(issues, err.Error())
		errs = append(errs, err)
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'text', 'json' or 'yaml', got %q", c.Output))
	}
	if c.Dashboard && c.Output != OutputText {
		issues = append(issues, "dashboard requires text output")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "none":
	default:
		issues = append(issues, fmt.Sprintf("log-level %q is not supported", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "logfmt", "json":
	default:
		issues = append(issues, fmt.Sprintf("log-format must be 'logfmt' or 'json', got %q", c.LogFormat))
	}

	for _, raw := range c.IgnoreReasons {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := outcome.ParseReason(raw); err != nil {
			issues = append(issues, fmt.Sprintf("ignore-reason: %v", err))
		}
	}

	for _, raw := range c.Thresholds {
		if _, err := threshold.Parse(raw); err != nil {
			issues = append(issues, fmt.Sprintf("threshold: %v", err))
		}
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues, errs: errs}
	}
	return nil
}

// ParseTarget checks that raw is an absolute http URL with a host.
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
	case "https":
		return nil, fmt.Errorf("%w: %s", ErrHTTPSUnsupported, raw)
	case "":
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return u, nil
}

func validateTracing(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing-protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing-sample-rate must be between 0 and 1")
	}
	return issues
}
