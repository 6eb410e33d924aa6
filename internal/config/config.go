// Package config provides configuration loading and validation for scour.
// Supports YAML files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a scour scrubber instance.
type Config struct {
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore"`
	Metadata      MetadataConfig      `yaml:"metadata"`
	Scrub         ScrubConfig         `yaml:"scrub"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Report        ReportConfig        `yaml:"report"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ObjectStoreConfig struct {
	Endpoint     string `yaml:"endpoint" env:"SCOUR_S3_ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"SCOUR_S3_BUCKET"`
	Region       string `yaml:"region" env:"SCOUR_S3_REGION"`
	AccessKey    string `yaml:"accessKey" env:"SCOUR_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"SCOUR_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"SCOUR_S3_PATH_STYLE"`
}

type MetadataConfig struct {
	OxiaEndpoint string `yaml:"oxiaEndpoint" env:"SCOUR_OXIA_ENDPOINT"`
	Namespace    string `yaml:"namespace" env:"SCOUR_OXIA_NAMESPACE"`
}

type ScrubConfig struct {
	Enabled    bool  `yaml:"enabled" env:"SCOUR_SCRUB_ENABLED"`
	IntervalMs int64 `yaml:"intervalMs" env:"SCOUR_SCRUB_INTERVAL_MS"`
	JitterMs   int64 `yaml:"jitterMs" env:"SCOUR_SCRUB_JITTER_MS"`

	// RunTimeoutMs bounds one detection pass, including internal retries
	// of remote calls.
	RunTimeoutMs int64 `yaml:"runTimeoutMs" env:"SCOUR_SCRUB_RUN_TIMEOUT_MS"`

	// QuotaPerEpoch is the remote-operation budget handed to the
	// housekeeping manager per scheduling epoch.
	QuotaPerEpoch int64 `yaml:"quotaPerEpoch" env:"SCOUR_SCRUB_QUOTA"`

	// DeepScrub downloads existing segments and validates their parquet
	// structure in addition to existence checks.
	DeepScrub bool `yaml:"deepScrub" env:"SCOUR_SCRUB_DEEP"`
}

type DiscoveryConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topicPrefix" env:"SCOUR_DISCOVERY_TOPIC_PREFIX"`
}

type ReportConfig struct {
	Enabled bool     `yaml:"enabled" env:"SCOUR_REPORT_ENABLED"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" env:"SCOUR_REPORT_TOPIC"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"SCOUR_METRICS_ADDR"`
	HealthAddr  string `yaml:"healthAddr" env:"SCOUR_HEALTH_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"SCOUR_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"SCOUR_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
		},
		Metadata: MetadataConfig{
			OxiaEndpoint: "localhost:6648",
			Namespace:    "scour",
		},
		Scrub: ScrubConfig{
			Enabled:       true,
			IntervalMs:    6 * time.Hour.Milliseconds(),
			JitterMs:      10 * time.Minute.Milliseconds(),
			RunTimeoutMs:  time.Minute.Milliseconds(),
			QuotaPerEpoch: 1000,
		},
		Report: ReportConfig{
			Topic: "_scour_reports",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9464",
			HealthAddr:  ":8080",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load returns the default configuration with environment overrides applied.
func Load() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML config file, applies environment overrides and
// validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("config: objectStore.bucket is required")
	}
	if c.Scrub.IntervalMs <= 0 {
		return fmt.Errorf("config: scrub.intervalMs must be positive, got %d", c.Scrub.IntervalMs)
	}
	if c.Scrub.JitterMs < 0 {
		return fmt.Errorf("config: scrub.jitterMs must not be negative, got %d", c.Scrub.JitterMs)
	}
	if c.Scrub.QuotaPerEpoch <= 0 {
		return fmt.Errorf("config: scrub.quotaPerEpoch must be positive, got %d", c.Scrub.QuotaPerEpoch)
	}
	if c.Report.Enabled && len(c.Report.Brokers) == 0 {
		return fmt.Errorf("config: report.brokers is required when reporting is enabled")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ObjectStore.Endpoint, "SCOUR_S3_ENDPOINT")
	overrideString(&cfg.ObjectStore.Bucket, "SCOUR_S3_BUCKET")
	overrideString(&cfg.ObjectStore.Region, "SCOUR_S3_REGION")
	overrideString(&cfg.ObjectStore.AccessKey, "SCOUR_S3_ACCESS_KEY")
	overrideString(&cfg.ObjectStore.SecretKey, "SCOUR_S3_SECRET_KEY")
	overrideBool(&cfg.ObjectStore.UsePathStyle, "SCOUR_S3_PATH_STYLE")

	overrideString(&cfg.Metadata.OxiaEndpoint, "SCOUR_OXIA_ENDPOINT")
	overrideString(&cfg.Metadata.Namespace, "SCOUR_OXIA_NAMESPACE")

	overrideBool(&cfg.Scrub.Enabled, "SCOUR_SCRUB_ENABLED")
	overrideInt64(&cfg.Scrub.IntervalMs, "SCOUR_SCRUB_INTERVAL_MS")
	overrideInt64(&cfg.Scrub.JitterMs, "SCOUR_SCRUB_JITTER_MS")
	overrideInt64(&cfg.Scrub.RunTimeoutMs, "SCOUR_SCRUB_RUN_TIMEOUT_MS")
	overrideInt64(&cfg.Scrub.QuotaPerEpoch, "SCOUR_SCRUB_QUOTA")
	overrideBool(&cfg.Scrub.DeepScrub, "SCOUR_SCRUB_DEEP")

	overrideString(&cfg.Discovery.TopicPrefix, "SCOUR_DISCOVERY_TOPIC_PREFIX")

	overrideBool(&cfg.Report.Enabled, "SCOUR_REPORT_ENABLED")
	overrideString(&cfg.Report.Topic, "SCOUR_REPORT_TOPIC")

	overrideString(&cfg.Observability.MetricsAddr, "SCOUR_METRICS_ADDR")
	overrideString(&cfg.Observability.HealthAddr, "SCOUR_HEALTH_ADDR")
	overrideString(&cfg.Observability.LogLevel, "SCOUR_LOG_LEVEL")
	overrideString(&cfg.Observability.LogFormat, "SCOUR_LOG_FORMAT")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func overrideInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}
