package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile        = "config.yaml"
	DefaultDBPath      = "bot.db"
	DefaultTimezone    = "UTC"
	DefaultLogLevel    = "info"
	DefaultLogFile     = "bot.log"
	DefaultPollTimeout = 60
)

// secretPath is the Docker secret consulted when no token is configured.
var secretPath = "/run/secrets/telegram_bot_token"

type Config struct {
	Token       string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	DBPath      string `yaml:"db_path" envconfig:"DB_PATH"`
	Timezone    string `yaml:"timezone" envconfig:"TIMEZONE"`
	LogLevel    string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFile     string `yaml:"log_file" envconfig:"LOG_FILE"`
	HealthAddr  string `yaml:"health_addr" envconfig:"HEALTH_ADDR"`
	PollTimeout int    `yaml:"poll_timeout" envconfig:"POLL_TIMEOUT"`
	Debug       bool   `yaml:"debug" envconfig:"BOT_DEBUG"`
}

// Load reads .env, then the YAML file named by CONFIG_FILE, then the
// environment. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultFile
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit YAML path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if strings.TrimSpace(cfg.Token) == "" {
		cfg.Token = readSecret()
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readSecret() string {
	data, err := os.ReadFile(secretPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// Normalize validates required fields and fills in defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return fmt.Errorf("telegram token is required: set TELEGRAM_BOT_TOKEN or %s", secretPath)
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = DefaultDBPath
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile
	}

	switch {
	case cfg.PollTimeout == 0:
		cfg.PollTimeout = DefaultPollTimeout
	case cfg.PollTimeout < 0:
		return fmt.Errorf("poll_timeout must be >= 0")
	}
	return nil
}

// Location is the time zone notifications and "today" are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
