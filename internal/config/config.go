// Package config loads and validates the relay configuration from YAML
// or JSON5 files, with $include composition and environment variable
// expansion.
package config

import (
	"fmt"

	"github.com/haasonsaas/relay/internal/audit"
	"github.com/haasonsaas/relay/pkg/models"
)

// Config is the main configuration structure for relay.
type Config struct {
	Gateway  GatewayConfig   `yaml:"gateway"`
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	Tracing  TracingConfig   `yaml:"tracing"`
	Audit    audit.Config    `yaml:"audit"`
	Workers  WorkersConfig   `yaml:"workers"`
	History  HistoryConfig   `yaml:"history"`
	Channels ChannelsConfig  `yaml:"channels"`
	Commands []CommandConfig `yaml:"commands"`
}

// GatewayConfig configures message routing.
type GatewayConfig struct {
	// Prefix is the command prefix (e.g. "!"). A null prefix disables
	// prefix matching entirely; an empty string matches every message.
	Prefix *string `yaml:"prefix"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	MetricsPort int    `yaml:"metrics_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
	Insecure   bool    `yaml:"insecure"`
}

type WorkersConfig struct {
	PoolSize   int `yaml:"pool_size"`
	QueueDepth int `yaml:"queue_depth"`
}

type HistoryConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the database file, required for the sqlite backend.
	Path string `yaml:"path"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Slack    SlackConfig    `yaml:"slack"`
}

type TelegramConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BotToken  string  `yaml:"bot_token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type DiscordConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BotToken  string  `yaml:"bot_token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type SlackConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BotToken  string  `yaml:"bot_token"`
	AppToken  string  `yaml:"app_token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// CommandConfig declares a command in the configuration file. The
// response text may reference parsed parameters as {name}.
type CommandConfig struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Description string   `yaml:"description"`
	Usage       string   `yaml:"usage"`
	Response    string   `yaml:"response"`
	Async       bool     `yaml:"async"`
	Hidden      bool     `yaml:"hidden"`

	// Channels limits the command to the named channel types.
	Channels []string `yaml:"channels"`

	// Users limits the command to the listed sender IDs.
	Users []string `yaml:"users"`
}

// Load reads, merges, and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := loadTree(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeStrict(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}
	if cfg.Workers.PoolSize == 0 {
		cfg.Workers.PoolSize = 4
	}
	if cfg.Workers.QueueDepth == 0 {
		cfg.Workers.QueueDepth = 64
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = "memory"
	}
	def := audit.DefaultConfig()
	if cfg.Audit.Level == "" {
		cfg.Audit.Level = def.Level
	}
	if cfg.Audit.Format == "" {
		cfg.Audit.Format = def.Format
	}
	if cfg.Audit.Output == "" {
		cfg.Audit.Output = def.Output
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.BufferSize
	}
	if cfg.Audit.MaxFieldSize == 0 {
		cfg.Audit.MaxFieldSize = def.MaxFieldSize
	}
	if cfg.Audit.FlushInterval == 0 {
		cfg.Audit.FlushInterval = def.FlushInterval
	}
}

// Validate checks the configuration for structural errors. Usage
// strings are not compiled here; command registration does that.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate)
	}

	switch c.History.Backend {
	case "memory":
	case "sqlite":
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("history.backend must be memory or sqlite, got %q", c.History.Backend)
	}

	if c.Channels.Telegram.Enabled && c.Channels.Telegram.BotToken == "" {
		return fmt.Errorf("channels.telegram.bot_token is required when telegram is enabled")
	}
	if c.Channels.Discord.Enabled && c.Channels.Discord.BotToken == "" {
		return fmt.Errorf("channels.discord.bot_token is required when discord is enabled")
	}
	if c.Channels.Slack.Enabled {
		if c.Channels.Slack.BotToken == "" {
			return fmt.Errorf("channels.slack.bot_token is required when slack is enabled")
		}
		if c.Channels.Slack.AppToken == "" {
			return fmt.Errorf("channels.slack.app_token is required when slack is enabled")
		}
	}

	seen := map[string]bool{}
	for i, cmd := range c.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("commands[%d]: name is required", i)
		}
		if seen[cmd.Name] {
			return fmt.Errorf("commands[%d]: duplicate command name %q", i, cmd.Name)
		}
		seen[cmd.Name] = true
		if cmd.Response == "" {
			return fmt.Errorf("commands[%d] %q: response is required", i, cmd.Name)
		}
		for _, ch := range cmd.Channels {
			if _, ok := models.ParseChannelType(ch); !ok {
				return fmt.Errorf("commands[%d] %q: unknown channel type %q", i, cmd.Name, ch)
			}
		}
	}
	return nil
}
