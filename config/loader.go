package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	errors2 "github.com/xraph/conductor/internal/errors"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "CONDUCTOR_"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Load reads a YAML or JSON file on top of Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors2.ErrConfigError("failed to read config file", err).WithContext("path", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors2.ErrConfigError("failed to parse YAML", err).WithContext("path", path)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors2.ErrConfigError("failed to parse JSON", err).WithContext("path", path)
		}
	default:
		return cfg, errors2.ErrConfigError("unsupported config format '"+ext+"' (expected .yaml, .yml or .json)", nil).
			WithContext("path", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnv loads path, then overlays CONDUCTOR_* variables taken from the
// given .env files and the process environment. The process environment wins.
func LoadWithEnv(path string, envFiles ...string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}

	fileEnv := map[string]string{}
	if len(envFiles) > 0 {
		fileEnv, err = godotenv.Read(envFiles...)
		if err != nil {
			return cfg, errors2.ErrConfigError("failed to read env file", err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	cfg, err = ApplyEnv(cfg, lookup)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays CONDUCTOR_* values returned by lookup onto cfg.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	var firstErr error
	boolean := func(name string, dst *bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			if firstErr == nil {
				firstErr = errors2.ErrConfigError("invalid boolean in "+EnvPrefix+name, err)
			}
			return
		}
		*dst = b
	}

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("ENVIRONMENT", &cfg.Logging.Environment)
	boolean("TELEMETRY_LOGGING", &cfg.Telemetry.Logging)
	boolean("SCHEDULER_DISABLED", &cfg.Scheduler.Disabled)
	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_NAMESPACE", &cfg.Metrics.Namespace)
	boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
	str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	str("TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)

	if v, ok := lookup(EnvPrefix + "SCHEDULER_SEARCH_HORIZON"); ok {
		d, err := time.ParseDuration(v)
		if err != nil && firstErr == nil {
			firstErr = errors2.ErrConfigError("invalid duration in "+EnvPrefix+"SCHEDULER_SEARCH_HORIZON", err)
		} else if err == nil {
			cfg.Scheduler.SearchHorizon = Duration(d)
		}
	}

	return cfg, firstErr
}
