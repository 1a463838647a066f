// Package config loads and validates the placement engine configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeout is the default HTTP server read timeout
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default HTTP server write timeout
	DefaultWriteTimeout = 30 * time.Second
	// DefaultExternalTimeout bounds each outbound call to a third-party site
	DefaultExternalTimeout = 15 * time.Second
	// DefaultProbeTimeout bounds the platform detection probe
	DefaultProbeTimeout = 8 * time.Second
	// DefaultSettleDelay is the wait before the post-update verification fetch,
	// allowing upstream caching on the target site to settle
	DefaultSettleDelay = 2 * time.Second
	// DefaultDomainCooldown is the courtesy delay between consecutive
	// external fetches against distinct target domains in one batch run
	DefaultDomainCooldown = 1500 * time.Millisecond
	// DefaultRecentPosts is how many recent published items the content-API
	// strategy scans for an insertion point
	DefaultRecentPosts = 10
	// DefaultMaxLiveInstructions caps pending injection instructions per
	// target content item
	DefaultMaxLiveInstructions = 3
	// DefaultMaxSentenceChars caps generated sentence length
	DefaultMaxSentenceChars = 300
)

// Config is the root configuration for the placement engine
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Placement PlacementConfig `yaml:"placement"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig configures the HTTP API surface
type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8091"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
	CORSOrigins  []string      `yaml:"cors_origins"`
	AdminSecret  string        `yaml:"admin_secret"` // Shared secret for manual_override
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis settings for metrics counters and the per-domain
// courtesy limiter
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AIConfig configures the text-completion service used by the sentence
// generator. Credentials are injected here, never read from the environment
// inside leaf functions.
type AIConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// PlacementConfig tunes the strategies and detector
type PlacementConfig struct {
	ExternalTimeout     time.Duration `yaml:"external_timeout"`      // Per outbound call
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`         // Platform detection probe
	SettleDelay         time.Duration `yaml:"settle_delay"`          // Before verification fetch
	DomainCooldown      time.Duration `yaml:"domain_cooldown"`       // Courtesy delay between domains
	RecentPosts         int           `yaml:"recent_posts"`          // Items scanned per content API
	MaxLiveInstructions int           `yaml:"max_live_instructions"` // Ceiling per target content item
	MaxSentenceChars    int           `yaml:"max_sentence_chars"`
	LinkRel             string        `yaml:"link_rel"` // rel attribute for placed anchors
}

// SchedulerConfig configures the optional cron-driven batch runs
type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CronSpec string `yaml:"cron_spec"` // e.g., "0 */6 * * *"
}

// Validate checks the configuration and returns an error when a required
// field is missing.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Server.AdminSecret == "" {
		return errors.New("server.admin_secret is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.CronSpec == "" {
		return errors.New("scheduler.cron_spec is required when scheduler.enabled is true")
	}
	if c.Placement.MaxLiveInstructions < 1 {
		return fmt.Errorf("placement.max_live_instructions must be positive, got %d",
			c.Placement.MaxLiveInstructions)
	}
	return nil
}

// setDefaults fills zero-valued fields with defaults
func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8091"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = DefaultExternalTimeout
	}
	if cfg.Placement.ExternalTimeout == 0 {
		cfg.Placement.ExternalTimeout = DefaultExternalTimeout
	}
	if cfg.Placement.ProbeTimeout == 0 {
		cfg.Placement.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Placement.SettleDelay == 0 {
		cfg.Placement.SettleDelay = DefaultSettleDelay
	}
	if cfg.Placement.DomainCooldown == 0 {
		cfg.Placement.DomainCooldown = DefaultDomainCooldown
	}
	if cfg.Placement.RecentPosts == 0 {
		cfg.Placement.RecentPosts = DefaultRecentPosts
	}
	if cfg.Placement.MaxLiveInstructions == 0 {
		cfg.Placement.MaxLiveInstructions = DefaultMaxLiveInstructions
	}
	if cfg.Placement.MaxSentenceChars == 0 {
		cfg.Placement.MaxSentenceChars = DefaultMaxSentenceChars
	}
	if cfg.Placement.LinkRel == "" {
		cfg.Placement.LinkRel = "nofollow"
	}
}

// overrideWithEnvVars overrides configuration with environment variables
func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		cfg.Server.AdminSecret = v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("ENGINE_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
}

// Load reads, defaults, env-overrides and validates the configuration file
// at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool parses a string value as a boolean.
// Returns true for "true", "1", "yes" (case-insensitive), false otherwise.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
