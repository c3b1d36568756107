package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// NOTIFY_API_BASE_URL overrides api.base_url.
const EnvPrefix = "NOTIFY"

// APIConfig holds the connection settings for the childcare REST API.
type APIConfig struct {
	// BaseURL is the root URL of the REST API (e.g., https://daycare.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Token is the bearer token. When empty, notifybell looks it up in
	// the system keyring.
	Token string `mapstructure:"token" yaml:"token"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is the number of attempts for retryable failures.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// RecipientConfig identifies who the terminal client polls for.
type RecipientConfig struct {
	Role   string `mapstructure:"role" yaml:"role"`
	UserID string `mapstructure:"user_id" yaml:"user_id"`
}

// PollConfig controls the refresh schedule.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// StorageConfig selects the backend for persisted read state.
type StorageConfig struct {
	// Driver is one of "sqlite", "file", "gcs", or "memory".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// Path is the SQLite database or JSON file location.
	Path string `mapstructure:"path" yaml:"path"`

	// Bucket and Prefix locate objects for the gcs driver.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// CredentialsFile is an optional service account key for gcs.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// ServerConfig holds HTTP server settings for notifyd.
type ServerConfig struct {
	Port      string `mapstructure:"port" yaml:"port"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Recipient RecipientConfig `mapstructure:"recipient" yaml:"recipient"`
	Poll      PollConfig      `mapstructure:"poll" yaml:"poll"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/daycare-notify/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "daycare-notify")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:5000/api",
			TimeoutSec: 15,
			MaxRetries: 3,
		},
		Poll: PollConfig{
			IntervalSec: 30,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(defaultConfigDir(), "readstate.db"),
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// then applies NOTIFY_* environment overrides. A .env file in the working
// directory is loaded first when present. If the config file does not exist,
// defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv can see every key.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.max_retries", def.API.MaxRetries)
	v.SetDefault("recipient.role", "")
	v.SetDefault("recipient.user_id", "")
	v.SetDefault("poll.interval_sec", def.Poll.IntervalSec)
	v.SetDefault("storage.driver", def.Storage.Driver)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Poll.IntervalSec <= 0 {
		cfg.Poll.IntervalSec = def.Poll.IntervalSec
	}
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = def.API.TimeoutSec
	}
	if cfg.API.MaxRetries <= 0 {
		cfg.API.MaxRetries = 1
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("recipient", cfg.Recipient)
	v.Set("poll", cfg.Poll)
	v.Set("storage", cfg.Storage)
	v.Set("server", cfg.Server)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
