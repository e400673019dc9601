package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RATEBENCH_RPS or RATEBENCH_LOG_LEVEL.
const EnvPrefix = "RATEBENCH"

// Loader handles loading configuration from files, the environment and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses args and layers flags over environment variables over the optional config file
// over flag defaults.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	flagSet := cmd.Flags()
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))
	}

	v := viper.New()
	if err := v.BindPFlags(flagSet); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath := strings.TrimSpace(v.GetString("config")); configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(string(cfg.Output))))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	headers, err := parseHeaders(cfg.HeaderArgs)
	if err != nil {
		return nil, err
	}
	cfg.Headers = headers

	return cfg, nil
}

func parseHeaders(entries []string) (map[string]string, error) {
	headers := map[string]string{}
	for _, entry := range entries {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("header must be in key=value format: %s", entry)
		}
		key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
		if key == "" {
			return nil, fmt.Errorf("header key cannot be empty")
		}
		headers[key] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}
