package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"sendgate/internal/constants"
	"sendgate/internal/models"
)

var (
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON config file, applies defaults and environment
// overrides, and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - Path supplied by operator flag
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Dispatch.IntervalMinutes == 0 {
		c.Dispatch.IntervalMinutes = constants.DefaultDispatchIntervalMin
	}
	if c.Dispatch.RetryIntervalMinutes == 0 {
		c.Dispatch.RetryIntervalMinutes = constants.DefaultRetrySweepIntervalMin
	}
	if c.Dispatch.BatchSize == 0 {
		c.Dispatch.BatchSize = constants.DefaultDispatchBatchSize
	}
	if c.Dispatch.StalenessSkipAlert == 0 {
		c.Dispatch.StalenessSkipAlert = constants.DefaultStalenessSkipAlert
	}
	if c.Retry.InitialBackoffMs == 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs == 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "sendgate"
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if path := os.Getenv("SENDGATE_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("SENDGATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p < 65536 {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("SENDGATE_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Dispatch.BatchSize < 1 {
		return models.ConfigError{Message: "dispatch batch size must be at least 1"}
	}
	if c.Dispatch.IntervalMinutes < 1 || c.Dispatch.RetryIntervalMinutes < 1 {
		return models.ConfigError{Message: "dispatch intervals must be at least 1 minute"}
	}

	seen := make(map[string]bool)
	for i, rl := range c.RateLimits {
		ch := models.Channel(rl.Channel)
		if !ch.Valid() {
			return models.ConfigError{Message: fmt.Sprintf("unknown channel in rate_limits[%d]: %q", i, rl.Channel)}
		}
		if seen[rl.Channel] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate channel in rate_limits: %q", rl.Channel)}
		}
		seen[rl.Channel] = true
		if rl.PerHour < 1 || rl.PerDay < 1 || rl.MinDelaySeconds < 0 {
			return models.ConfigError{Message: fmt.Sprintf("invalid rate limit for channel %q", rl.Channel)}
		}
	}

	seenAdapters := make(map[string]bool)
	for i, ad := range c.Adapters {
		if !models.Channel(ad.Channel).Valid() {
			return models.ConfigError{Message: fmt.Sprintf("unknown channel in adapters[%d]: %q", i, ad.Channel)}
		}
		if ad.URL == "" {
			return models.ConfigError{Message: fmt.Sprintf("missing URL for adapter channel %q", ad.Channel)}
		}
		if seenAdapters[ad.Channel] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate channel in adapters: %q", ad.Channel)}
		}
		seenAdapters[ad.Channel] = true
	}

	return nil
}
