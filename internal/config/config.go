package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"telegram-bot-engine/internal/domain"
	"telegram-bot-engine/internal/infra/logging"
)

type RuntimeConfig struct {
	Dev bool
}

// BotConfig describes one bot identity.
type BotConfig struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	// WebhookURL is the public URL Telegram pushes to in webhook mode.
	WebhookURL string `yaml:"webhook_url"`
}

// PollConfig tunes the long-poll loop.
type PollConfig struct {
	Timeout int           `yaml:"timeout"` // long-poll seconds
	Sleep   time.Duration `yaml:"sleep"`   // pause between cycles
	Once    bool          `yaml:"once"`    // single fetch/dispatch cycle
	Offset  int64         `yaml:"offset"`  // initial update offset
}

// WebhookConfig tunes the push endpoint.
type WebhookConfig struct {
	Port int `yaml:"port"`
}

// StoreConfig selects the conversation state backend.
type StoreConfig struct {
	Backend string        `yaml:"backend"` // memory | redis | postgres
	TTL     time.Duration `yaml:"ttl"`     // redis only
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type Config struct {
	Mode       string               `yaml:"mode"` // polling | webhook
	DefaultBot string               `yaml:"default_bot"`
	Bots       map[string]BotConfig `yaml:"bots"`
	Poll       PollConfig           `yaml:"poll"`
	Webhook    WebhookConfig        `yaml:"webhook"`
	Store      StoreConfig          `yaml:"store"`
	Redis      RedisConfig          `yaml:"redis"`
	Postgres   PostgresConfig       `yaml:"postgres"`
	Log        logging.Config       `yaml:"log"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads, defaults and validates the YAML config. Configuration
// failures are rejected here, before anything is wired.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Mode == "" {
		cfg.Mode = "polling"
	}
	if cfg.Poll.Timeout <= 0 {
		cfg.Poll.Timeout = 25
	}
	if cfg.Poll.Sleep <= 0 {
		cfg.Poll.Sleep = time.Second
	}
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 8080
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.TTL <= 0 {
		cfg.Store.TTL = 15 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	// validation
	if cfg.Mode != "polling" && cfg.Mode != "webhook" {
		return nil, fmt.Errorf("%w: mode must be polling or webhook, got %q", domain.ErrInvalidArgument, cfg.Mode)
	}
	if len(cfg.Bots) == 0 {
		return nil, fmt.Errorf("%w: at least one bot", domain.ErrMissingSetting)
	}
	for name, bc := range cfg.Bots {
		if bc.Token == "" {
			return nil, fmt.Errorf("%w: bots.%s.token", domain.ErrMissingSetting, name)
		}
	}
	if cfg.DefaultBot == "" {
		if len(cfg.Bots) == 1 {
			for name := range cfg.Bots {
				cfg.DefaultBot = name
			}
		} else {
			return nil, fmt.Errorf("%w: default_bot (multiple bots configured)", domain.ErrMissingSetting)
		}
	}
	if _, ok := cfg.Bots[cfg.DefaultBot]; !ok {
		return nil, fmt.Errorf("%w: default_bot %q", domain.ErrBotNotFound, cfg.DefaultBot)
	}
	switch cfg.Store.Backend {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("%w: redis.addr", domain.ErrMissingSetting)
		}
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("%w: postgres.url", domain.ErrMissingSetting)
		}
	default:
		return nil, fmt.Errorf("%w: store.backend must be memory, redis or postgres, got %q", domain.ErrInvalidArgument, cfg.Store.Backend)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
