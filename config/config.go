package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	errors2 "github.com/xraph/conductor/internal/errors"
	"github.com/xraph/conductor/logger"
)

// DefaultSearchHorizon bounds the calendar search for the next occurrence.
const DefaultSearchHorizon = 2 * 366 * 24 * time.Hour

// Config is the root configuration of a registry and its observability wiring.
type Config struct {
	Logging   logger.LoggingConfig `json:"logging"   yaml:"logging"`
	Telemetry TelemetryConfig      `json:"telemetry" yaml:"telemetry"`
	Scheduler SchedulerConfig      `json:"scheduler" yaml:"scheduler"`
	Metrics   MetricsConfig        `json:"metrics"   yaml:"metrics"`
	Tracing   TracingConfig        `json:"tracing"   yaml:"tracing"`
}

// TelemetryConfig controls the interception pipeline.
type TelemetryConfig struct {
	// Logging forces the per-invocation log line for every intercepted method.
	Logging bool `json:"logging" yaml:"logging"`
}

// SchedulerConfig controls periodic invocation.
type SchedulerConfig struct {
	// Disabled skips arming of every declared schedule.
	Disabled      bool     `json:"disabled"       yaml:"disabled"`
	SearchHorizon Duration `json:"search_horizon" yaml:"search_horizon"`
	// Overrides replaces declared schedules, keyed by "Class.Method". Values are
	// either a duration ("250ms") or a calendar expression ("*/5 * * * *").
	Overrides map[string]string `json:"overrides" yaml:"overrides"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"   yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Subsystem string `json:"subsystem" yaml:"subsystem"`
}

// TracingConfig controls the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"      yaml:"enabled"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	Endpoint    string  `json:"endpoint"     yaml:"endpoint"`
	Insecure    bool    `json:"insecure"     yaml:"insecure"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

// Default returns the configuration used when none is supplied.
func Default() Config {
	return Config{
		Logging: logger.LoggingConfig{
			Level:       "info",
			Format:      "console",
			Environment: "development",
		},
		Scheduler: SchedulerConfig{
			SearchHorizon: Duration(DefaultSearchHorizon),
			Overrides:     map[string]string{},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "conductor",
		},
		Tracing: TracingConfig{
			ServiceName: "conductor",
			SampleRatio: 1,
		},
	}
}

// Validate checks the configuration for values the runtime cannot honour.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return errors2.ErrConfigError("unknown log level '"+c.Logging.Level+"'", nil).
			WithContext("field", "logging.level")
	}

	if c.Scheduler.SearchHorizon < 0 {
		return errors2.ErrConfigError("scheduler.search_horizon must not be negative", nil).
			WithContext("field", "scheduler.search_horizon")
	}

	for key := range c.Scheduler.Overrides {
		if class, method, ok := strings.Cut(key, "."); !ok || class == "" || method == "" {
			return errors2.ErrConfigError("schedule override key '"+key+"' must be Class.Method", nil).
				WithContext("field", "scheduler.overrides")
		}
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors2.ErrConfigError("tracing.sample_ratio must be within [0, 1]", nil).
			WithContext("field", "tracing.sample_ratio")
	}

	return nil
}

// Horizon returns the effective calendar search horizon.
func (c SchedulerConfig) Horizon() time.Duration {
	if c.SearchHorizon <= 0 {
		return DefaultSearchHorizon
	}
	return time.Duration(c.SearchHorizon)
}

// Override returns the configured replacement schedule for class.method.
func (c SchedulerConfig) Override(class, method string) (string, bool) {
	expr, ok := c.Overrides[class+"."+method]
	return expr, ok && strings.TrimSpace(expr) != ""
}

// Duration is a time.Duration that decodes from strings such as "90s" in
// both YAML and JSON documents.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	return d.parse(strings.Trim(string(data), `"`))
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
