package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/mstlink"
	"github.com/srg/mstlink/internal/adapter"
	"github.com/srg/mstlink/scanner"
	"github.com/srg/mstlink/session"
	"github.com/srg/mstlink/telemetry"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"table"` // table, json

	// ScanWindow of zero uses the platform default.
	ScanWindow   time.Duration `yaml:"scan_window"`
	ReadyTimeout time.Duration `yaml:"ready_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`

	ConnectTimeout   time.Duration `yaml:"connect_timeout" default:"10s"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" default:"10s"`
	AuthRoundTimeout time.Duration `yaml:"auth_round_timeout" default:"2s"`
	AuthKeys         []string      `yaml:"auth_keys"`
	RequireAuth      bool          `yaml:"require_auth"`
	// AuthService and AuthCharacteristic name where keys are written. Unset keeps the settle exchange.
	AuthService        string `yaml:"auth_service"`
	AuthCharacteristic string `yaml:"auth_characteristic"`

	RetainRadio bool `yaml:"retain_radio"`

	HistorySteps     int           `yaml:"history_steps" default:"100"`
	HistoryStepDelay time.Duration `yaml:"history_step_delay" default:"50ms"`

	AllowList []string `yaml:"allow_list"`
	BlockList []string `yaml:"block_list"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.RetainRadio = adapter.DefaultRetain()
	cfg.AuthKeys = append([]string(nil), session.DefaultKeys...)
	return cfg
}

// Load reads a YAML config file on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the YAML decoder cannot.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("unsupported output format %q", c.OutputFormat)
	}
	if c.HistorySteps <= 0 {
		return fmt.Errorf("history_steps must be positive, got %d", c.HistorySteps)
	}
	if len(c.AuthKeys) == 0 {
		return fmt.Errorf("auth_keys must not be empty")
	}
	if (c.AuthService == "") != (c.AuthCharacteristic == "") {
		return fmt.Errorf("auth_service and auth_characteristic must be set together")
	}
	return nil
}

// Level returns the parsed log level, InfoLevel when unparsable.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// ClientOptions maps the configuration onto client options.
func (c *Config) ClientOptions() mstlink.Options {
	scanOpts := scanner.DefaultOptions()
	if c.ScanWindow > 0 {
		scanOpts.Window = c.ScanWindow
	}
	scanOpts.ReadyTimeout = c.ReadyTimeout
	scanOpts.AllowList = c.AllowList
	scanOpts.BlockList = c.BlockList

	sessionOpts := session.DefaultOptions()
	sessionOpts.ConnectTimeout = c.ConnectTimeout
	sessionOpts.DiscoveryTimeout = c.DiscoveryTimeout
	sessionOpts.AuthRoundTimeout = c.AuthRoundTimeout
	sessionOpts.Keys = append([]string(nil), c.AuthKeys...)
	sessionOpts.RequireAuthentication = c.RequireAuth

	opts := mstlink.Options{
		RetainRadio:  c.RetainRadio,
		ReadyTimeout: c.ReadyTimeout,
		ReadTimeout:  c.ReadTimeout,
		Scan:         scanOpts,
		Session:      sessionOpts,
		History: &telemetry.HistoryOptions{
			Steps:     c.HistorySteps,
			StepDelay: c.HistoryStepDelay,
		},
	}
	if c.AuthCharacteristic != "" {
		opts.Exchanger = session.CharacteristicExchanger{
			Service:        c.AuthService,
			Characteristic: c.AuthCharacteristic,
			WithResponse:   true,
		}
	}
	return opts
}
