package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config holds all configuration for the client engine
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Push    PushConfig    `mapstructure:"push"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Keyring KeyringConfig `mapstructure:"keyring"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig holds the remote service endpoint and request policy
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url" envconfig:"API_BASE_URL" default:"https://api.zonebook.app"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" envconfig:"API_REQUEST_TIMEOUT" default:"15s"`
	MaxAttempts    int           `mapstructure:"max_attempts" envconfig:"API_MAX_ATTEMPTS" default:"3"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" envconfig:"API_RETRY_DELAY" default:"1s"`
	MaxRetryDelay  time.Duration `mapstructure:"max_retry_delay" envconfig:"API_MAX_RETRY_DELAY" default:"10s"`
}

// PushConfig holds the push stream configuration
type PushConfig struct {
	Enabled        bool          `mapstructure:"enabled" envconfig:"PUSH_ENABLED" default:"true"`
	URL            string        `mapstructure:"url" envconfig:"PUSH_URL" default:"wss://api.zonebook.app/ws/notifications"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" envconfig:"PUSH_RECONNECT_DELAY" default:"2s"`
	PingInterval   time.Duration `mapstructure:"ping_interval" envconfig:"PUSH_PING_INTERVAL" default:"30s"`
}

// SyncConfig holds notification synchronization configuration
type SyncConfig struct {
	PageSize        int    `mapstructure:"page_size" envconfig:"SYNC_PAGE_SIZE" default:"50"`
	RefreshSchedule string `mapstructure:"refresh_schedule" envconfig:"SYNC_REFRESH_SCHEDULE" default:"@every 1m"`
}

// KeyringConfig holds credential persistence configuration
type KeyringConfig struct {
	ServiceName string `mapstructure:"service_name" envconfig:"KEYRING_SERVICE_NAME" default:"zonebook"`
	FileDir     string `mapstructure:"file_dir" envconfig:"KEYRING_FILE_DIR" default:"~/.config/zonebook/credentials"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format     string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
	OutputPath string `mapstructure:"output_path" envconfig:"LOG_OUTPUT_PATH" default:"stdout"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" envconfig:"METRICS_ENABLED" default:"true"`
	Namespace string `mapstructure:"namespace" envconfig:"METRICS_NAMESPACE" default:"zonebook"`
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	var cfg Config

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; continue with env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("ZONEBOOK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration bounds
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("api.max_attempts must be at least 1")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	return nil
}
