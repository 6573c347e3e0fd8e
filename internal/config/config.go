// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Target   TargetConfig   `mapstructure:"target"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Driver   DriverConfig   `mapstructure:"driver"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// TargetConfig names the page the harvester scrapes.
type TargetConfig struct {
	URL string `mapstructure:"url"`
}

// HarvestConfig governs the scroll-and-extract loop.
type HarvestConfig struct {
	InitialSettleSeconds int `mapstructure:"initial_settle_seconds"`
	ScrollAdvances       int `mapstructure:"scroll_advances"`
	ScrollSettleSeconds  int `mapstructure:"scroll_settle_seconds"`
	BottomSettleSeconds  int `mapstructure:"bottom_settle_seconds"`
	WaitRowsSeconds      int `mapstructure:"wait_rows_seconds"`
	IterationPauseMs     int `mapstructure:"iteration_pause_ms"`
	SnapshotEvery        int `mapstructure:"snapshot_every"`
	NoNewRecordLimit     int `mapstructure:"no_new_record_limit"`
	StableHeightLimit    int `mapstructure:"stable_height_limit"`
	MaxIterations        int `mapstructure:"max_iterations"`
}

// DriverConfig configures the headless browser sessions.
type DriverConfig struct {
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	RowSelector       string `mapstructure:"row_selector"`
	UserAgent         string `mapstructure:"user_agent"`
	WindowWidth       int    `mapstructure:"window_width"`
	WindowHeight      int    `mapstructure:"window_height"`
}

// ProbeConfig controls the pre-run reachability check.
type ProbeConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
}

// SinkConfig sets the persistence target for harvested records.
type SinkConfig struct {
	Path string `mapstructure:"path"`
}

// SnapshotConfig sets where progress screenshots land.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// SMTPConfig holds outbound mail settings. Credentials are deliberately
// not validated at startup so the service can run without delivery
// configured; a run that reaches the notify stage without them fails
// that run only.
type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Sender     string `mapstructure:"sender"`
	Password   string `mapstructure:"password"`
	Recipient  string `mapstructure:"recipient"`
	Attachment string `mapstructure:"attachment"`
}

// RunnerConfig governs worker pool and queue behavior.
type RunnerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("target.url", "https://dhan.co/all-stocks-list/")
	v.SetDefault("harvest.initial_settle_seconds", 10)
	v.SetDefault("harvest.scroll_advances", 3)
	v.SetDefault("harvest.scroll_settle_seconds", 8)
	v.SetDefault("harvest.bottom_settle_seconds", 3)
	v.SetDefault("harvest.wait_rows_seconds", 20)
	v.SetDefault("harvest.iteration_pause_ms", 2000)
	v.SetDefault("harvest.snapshot_every", 50)
	v.SetDefault("harvest.no_new_record_limit", 5)
	v.SetDefault("harvest.stable_height_limit", 3)
	v.SetDefault("harvest.max_iterations", 50)
	v.SetDefault("driver.nav_timeout_seconds", 45)
	v.SetDefault("driver.row_selector", "table tbody tr")
	v.SetDefault("driver.window_width", 1920)
	v.SetDefault("driver.window_height", 1080)
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.timeout_seconds", 15)
	v.SetDefault("sink.path", "data/stocks.csv")
	v.SetDefault("snapshot.dir", "data/snapshots")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.attachment", "stocks.csv")
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("runner.queue_depth", 16)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Target.URL == "" {
		return fmt.Errorf("target.url must be set")
	}
	if c.Harvest.NoNewRecordLimit <= 0 {
		return fmt.Errorf("harvest.no_new_record_limit must be > 0")
	}
	if c.Harvest.StableHeightLimit <= 0 {
		return fmt.Errorf("harvest.stable_height_limit must be > 0")
	}
	if c.Harvest.MaxIterations <= 0 {
		return fmt.Errorf("harvest.max_iterations must be > 0")
	}
	if c.Driver.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("driver.nav_timeout_seconds must be > 0")
	}
	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be > 0")
	}
	if c.Sink.Path == "" {
		return fmt.Errorf("sink.path must be set")
	}
	return nil
}

// NavTimeout converts the driver navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Driver.NavTimeoutSeconds) * time.Second
}
