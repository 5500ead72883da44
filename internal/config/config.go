package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Stockbit StockbitConfig `mapstructure:"stockbit"`
	Market   MarketConfig   `mapstructure:"market"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StockbitConfig holds Stockbit API configuration
type StockbitConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Token           string        `mapstructure:"token"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelayBase  time.Duration `mapstructure:"retry_delay_base"`
	TransactionType string        `mapstructure:"transaction_type"`
	MarketBoard     string        `mapstructure:"market_board"`
	InvestorType    string        `mapstructure:"investor_type"`
	Limit           int           `mapstructure:"limit"`
	SummarySize     int           `mapstructure:"summary_size"` // brokers per side in the summary table
}

// MarketConfig holds exchange calendar configuration
type MarketConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone.
func (m MarketConfig) Location() (*time.Location, error) {
	return time.LoadLocation(m.Timezone)
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	MaxRecords  int    `mapstructure:"max_records"`
	RotateEvery int    `mapstructure:"rotate_every"`
}

// JobsConfig holds the write-behind queue configuration
type JobsConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// BANDARSCOPE_STOCKBIT_TOKEN overrides stockbit.token, and so on
	v.SetEnvPrefix("BANDARSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("stockbit.base_url", "https://exodus.stockbit.com")
	v.SetDefault("stockbit.token", "")
	v.SetDefault("stockbit.timeout", "20s")
	v.SetDefault("stockbit.max_retries", 3)
	v.SetDefault("stockbit.retry_delay_base", "1s")
	v.SetDefault("stockbit.transaction_type", "TRANSACTION_TYPE_NET")
	v.SetDefault("stockbit.market_board", "MARKET_BOARD_REGULER")
	v.SetDefault("stockbit.investor_type", "INVESTOR_TYPE_ALL")
	v.SetDefault("stockbit.limit", 25)
	v.SetDefault("stockbit.summary_size", 5)

	// "today" is the UTC calendar date unless overridden
	v.SetDefault("market.timezone", "UTC")

	v.SetDefault("storage.db_path", "./data/bandarscope.db")
	v.SetDefault("storage.max_records", 50000)
	v.SetDefault("storage.rotate_every", 20)

	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 256)
	v.SetDefault("jobs.timeout", "10s")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}

	if c.Stockbit.BaseURL == "" {
		return fmt.Errorf("stockbit.base_url is required")
	}
	if c.Stockbit.Timeout < 1*time.Second {
		return fmt.Errorf("stockbit.timeout must be at least 1 second")
	}
	if c.Stockbit.MaxRetries < 1 {
		return fmt.Errorf("stockbit.max_retries must be at least 1")
	}
	if c.Stockbit.Limit < 1 || c.Stockbit.Limit > 100 {
		return fmt.Errorf("stockbit.limit must be between 1 and 100")
	}
	if c.Stockbit.SummarySize < 1 {
		return fmt.Errorf("stockbit.summary_size must be at least 1")
	}

	if _, err := c.Market.Location(); err != nil {
		return fmt.Errorf("market.timezone is invalid: %w", err)
	}

	if c.Storage.MaxRecords < 1 {
		return fmt.Errorf("storage.max_records must be at least 1")
	}
	if c.Storage.RotateEvery < 1 {
		return fmt.Errorf("storage.rotate_every must be at least 1")
	}

	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1")
	}
	if c.Jobs.QueueSize < 1 {
		return fmt.Errorf("jobs.queue_size must be at least 1")
	}
	if c.Jobs.Timeout < 1*time.Second {
		return fmt.Errorf("jobs.timeout must be at least 1 second")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
