// Package config loads application configuration from config.yaml,
// LOFSYNC_* environment variables, and defaults, and owns global logger
// setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Feed   FeedConfig   `yaml:"feed" mapstructure:"feed"`
	Sync   SyncConfig   `yaml:"sync" mapstructure:"sync"`
	RunLog RunLogConfig `yaml:"runlog" mapstructure:"runlog"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the on-disk data.
type DataConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	InstrumentsFile string `yaml:"instruments_file" mapstructure:"instruments_file"`
}

// FeedConfig configures the upstream feed client.
type FeedConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	WindowSize  int     `yaml:"window_size" mapstructure:"window_size"`
}

// Timeout returns the per-request fetch timeout.
func (c FeedConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SyncConfig configures batch behavior.
type SyncConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// Holidays lists exchange holidays ("2006-01-02") on which the daily
	// sync is skipped.
	Holidays []string `yaml:"holidays" mapstructure:"holidays"`
}

// RunLogConfig selects and configures the run log backend.
type RunLogConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres | off
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig controls the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json | console
}

// Load reads configuration from config.yaml (optional), environment, and
// defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOFSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.instruments_file", "all_LOF.txt")
	v.SetDefault("feed.base_url", "https://www.jisilu.cn")
	v.SetDefault("feed.timeout_secs", 30)
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("feed.rate_per_sec", 2)
	v.SetDefault("feed.burst", 2)
	v.SetDefault("feed.window_size", 50)
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("runlog.driver", "sqlite")
	v.SetDefault("runlog.path", "data/runlog.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger builds the global zap logger from config.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
