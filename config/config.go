package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CLIConfig holds all configuration values for the lmo CLI
type CLIConfig struct {
	ServerURL         string        `mapstructure:"server_url"`          // lmo server base URL
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`     // Bound for unary API calls
	StreamWaitTimeout time.Duration `mapstructure:"stream_wait_timeout"` // Bounded wait for each progress event
	MaxStreamTimeouts int           `mapstructure:"max_stream_timeouts"` // Consecutive silent waits before giving up
	LogLevel          string        `mapstructure:"log_level"`           // Logging level (DEBUG, INFO, WARN, ERROR, FATAL)
	NoColor           bool          `mapstructure:"no_color"`            // Disable styled output
}

// Defaults
const (
	DefaultServerURL         = "http://127.0.0.1:8080"
	DefaultRequestTimeout    = 30 * time.Second
	DefaultStreamWaitTimeout = 30 * time.Second
	DefaultMaxStreamTimeouts = 3
	DefaultLogLevel          = "WARN"
)

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"server":    "server_url",
	"timeout":   "request_timeout",
	"log-level": "log_level",
	"no-color":  "no_color",
}

// LoadConfig loads the CLI configuration. Sources, lowest precedence
// first: defaults, config file, .env file, environment, flags.
// configFile may be empty, in which case $XDG_CONFIG_HOME/lmo/config.*
// is used when present. flags may be nil.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*CLIConfig, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	validator := NewEnvValidator()
	if err := validator.ValidateFormats(); err != nil {
		return nil, fmt.Errorf("environment validation failed: %w", err)
	}

	v := viper.New()
	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("stream_wait_timeout", DefaultStreamWaitTimeout)
	v.SetDefault("max_stream_timeouts", DefaultMaxStreamTimeouts)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("no_color", false)

	v.SetEnvPrefix("LMO")
	v.AutomaticEnv()
	if err := v.BindEnv("log_level", "LMO_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind LOG_LEVEL: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
				}
			}
		}
	}

	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	cfg := &CLIConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")

	return cfg, nil
}

func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file at %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "lmo"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file at %s: %w", v.ConfigFileUsed(), err)
	}
	return nil
}

// Validate performs additional validation on the loaded configuration
func (c *CLIConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server URL must be an http(s) URL, got: %s", c.ServerURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got: %s", c.RequestTimeout)
	}

	if c.StreamWaitTimeout <= 0 {
		return fmt.Errorf("stream wait timeout must be positive, got: %s", c.StreamWaitTimeout)
	}

	if c.MaxStreamTimeouts < 1 {
		return fmt.Errorf("max stream timeouts must be at least 1, got: %d", c.MaxStreamTimeouts)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
		"FATAL": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s. Valid levels are: DEBUG, INFO, WARN, ERROR, FATAL", c.LogLevel)
	}

	return nil
}
