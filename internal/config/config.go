// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HarvestConfig governs shard discovery and the fetch pipeline.
type HarvestConfig struct {
	// OutputDir is the root directory for the sitemap cache, the per-shard
	// records and the merged catalog file.
	OutputDir string `mapstructure:"output_dir"`
	// Task names one harvest; the record dir and output file derive from it.
	Task          string `mapstructure:"task"`
	Concurrency   int    `mapstructure:"concurrency"`
	RobotsURL     string `mapstructure:"robots_url"`
	ProductPrefix string `mapstructure:"product_prefix"`
}

// HTTPConfig configures outbound HTTP behavior.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// MetadataConfig controls the optional run-summary recorder.
type MetadataConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PublishConfig controls the optional artifact upload.
type PublishConfig struct {
	// BucketURL selects the blob driver by scheme, e.g. file:///var/out
	// or gs://my-bucket. Empty disables publishing.
	BucketURL string `mapstructure:"bucket_url"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.output_dir", "catalog")
	v.SetDefault("harvest.task", "main")
	v.SetDefault("harvest.concurrency", 10)
	v.SetDefault("harvest.robots_url", "https://play.google.com/robots.txt")
	v.SetDefault("harvest.product_prefix", "https://play.google.com/store/apps")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "playcatalog-harvester/0.1")
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Harvest.OutputDir == "" {
		return fmt.Errorf("harvest.output_dir must be set")
	}
	if c.Harvest.Task == "" {
		return fmt.Errorf("harvest.task must be set")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.RobotsURL == "" {
		return fmt.Errorf("harvest.robots_url must be set")
	}
	if c.Harvest.ProductPrefix == "" {
		return fmt.Errorf("harvest.product_prefix must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// SitemapCachePath is the newline-delimited shard URL list trusted as-is
// when it exists.
func (c Config) SitemapCachePath() string {
	return filepath.Join(c.Harvest.OutputDir, "sitemaps.txt")
}

// RecordDir holds one record file per completed shard.
func (c Config) RecordDir() string {
	return filepath.Join(c.Harvest.OutputDir, fmt.Sprintf("app_ids_%s", c.Harvest.Task))
}

// OutputPath is the merged catalog file for the task.
func (c Config) OutputPath() string {
	return filepath.Join(c.Harvest.OutputDir, fmt.Sprintf("app_ids_%s.txt", c.Harvest.Task))
}

// HTTPTimeout converts the timeout config into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
