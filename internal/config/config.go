package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	env "github.com/netflix/go-env"
)

const (
	defaultBaseURL   = "https://slack.com/api/"
	defaultStatsDir  = ".slackscan"
	defaultStatsFile = "stats.db"
	maxRatePerMinute = 600
)

// Config holds the process-wide settings read from the environment.
// The Slack token is deliberately absent: it is read lazily on the first search.
type Config struct {
	SlackAPIBaseURL     string        `json:"slack_api_base_url" env:"SLACK_API_BASE_URL,default=https://slack.com/api/"`
	Backend             string        `json:"backend" env:"SLACK_SEARCH_BACKEND,default=http"`
	Parser              string        `json:"parser" env:"SLACK_SEARCH_PARSER,default=strict"`
	SearchTimeout       time.Duration `json:"search_timeout" env:"SLACK_SEARCH_TIMEOUT,default=30s"`
	RatePerMinute       int           `json:"rate_per_minute" env:"SLACK_SEARCH_RATE_PER_MINUTE,default=20"`
	StatsEnabled        bool          `json:"stats_enabled" env:"SLACKSCAN_STATS_ENABLED,default=true"`
	StatsDBPath         string        `json:"stats_db_path" env:"SLACKSCAN_STATS_DB"`

	// OpenTelemetry
	OTelEnabled              bool    `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=slackscan"`
	OTelExporterOTLPEndpoint string  `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string  `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string  `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none are given) without
// overriding values already present in the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	config.Backend = strings.ToLower(strings.TrimSpace(config.Backend))
	switch config.Backend {
	case "":
		config.Backend = "http"
	case "http", "sdk":
	default:
		return fmt.Errorf("SLACK_SEARCH_BACKEND must be http or sdk, got %q", config.Backend)
	}

	config.Parser = strings.ToLower(strings.TrimSpace(config.Parser))
	switch config.Parser {
	case "":
		config.Parser = "strict"
	case "strict", "tolerant":
	default:
		return fmt.Errorf("SLACK_SEARCH_PARSER must be strict or tolerant, got %q", config.Parser)
	}

	if err := normalizeBaseURL(config); err != nil {
		return err
	}

	if config.SearchTimeout < 0 {
		config.SearchTimeout = 0
	}

	// Rate limiting is disabled at zero
	if config.RatePerMinute < 0 {
		config.RatePerMinute = 0
	}
	if config.RatePerMinute > maxRatePerMinute {
		config.RatePerMinute = maxRatePerMinute
	}

	if strings.TrimSpace(config.StatsDBPath) == "" {
		path, err := DefaultStatsDBPath()
		if err != nil {
			return err
		}
		config.StatsDBPath = path
	}

	return nil
}

func normalizeBaseURL(config *Config) error {
	base := strings.TrimSpace(config.SlackAPIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	parsedURL, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid SLACK_API_BASE_URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("SLACK_API_BASE_URL scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("SLACK_API_BASE_URL must include a valid host")
	}

	// Method names are appended directly
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	config.SlackAPIBaseURL = base
	return nil
}

// DefaultStatsDBPath returns ~/.slackscan/stats.db.
func DefaultStatsDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultStatsDir, defaultStatsFile), nil
}
