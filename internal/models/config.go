package models

// ConfigError reports an invalid or incomplete configuration file.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

// Config is the top-level daemon configuration, loaded from JSON with
// environment overrides.
type Config struct {
	LogLevel   string            `json:"log_level"`
	Database   DatabaseConfig    `json:"database"`
	Server     ServerConfig      `json:"server"`
	Dispatch   DispatchConfig    `json:"dispatch"`
	RateLimits []ChannelRateJSON `json:"rate_limits,omitempty"`
	Adapters   []AdapterConfig   `json:"adapters,omitempty"`
	Retry      RetryConfig       `json:"retry"`
	Tracing    TracingConfig     `json:"tracing"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

// DispatchConfig tunes the router loop and the retry sweep.
type DispatchConfig struct {
	IntervalMinutes      int `json:"interval_minutes"`
	RetryIntervalMinutes int `json:"retry_interval_minutes"`
	BatchSize            int `json:"batch_size"`
	StalenessSkipAlert   int `json:"staleness_skip_alert"`
}

// ChannelRateJSON overrides the built-in rate limit for one channel.
type ChannelRateJSON struct {
	Channel         string `json:"channel"`
	PerHour         int    `json:"per_hour"`
	PerDay          int    `json:"per_day"`
	MinDelaySeconds int    `json:"min_delay_seconds"`
}

// AdapterConfig points one channel at its outbound webhook endpoint.
type AdapterConfig struct {
	Channel string `json:"channel"`
	URL     string `json:"url"`
	Secret  string `json:"secret,omitempty"`
}

// RetryConfig tunes in-process retries (database connect), not the
// wall-clock send retry ladder.
type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}
