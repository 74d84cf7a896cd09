package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nidhogg/crew/internal/roster"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig       `json:"server"`
	Providers []ProviderConfig   `json:"providers"`
	Agents    []roster.AgentSpec `json:"agents"`
	Dispatch  DispatchConfig     `json:"dispatch"`
	Artifact  ArtifactConfig     `json:"artifact"`
	Cache     CacheConfig        `json:"cache"`
	Database  DatabaseConfig     `json:"database"`
	Events    EventsConfig       `json:"events"`
	Schedules []ScheduleConfig   `json:"schedules,omitempty"`
}

type ServerConfig struct {
	Addr     string `json:"addr"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  Duration          `json:"timeout,omitempty"`
}

type DispatchConfig struct {
	Workers int      `json:"workers"`
	Timeout Duration `json:"timeout"`
}

type ArtifactConfig struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Title  string `json:"title"`
}

// CacheConfig selects the document cache. An empty backend disables it.
type CacheConfig struct {
	Backend string   `json:"backend"`
	Path    string   `json:"path"`
	TTL     Duration `json:"ttl"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type EventsConfig struct {
	History int           `json:"history"`
	Redis   StreamConfig  `json:"redis"`
	Slack   WebhookConfig `json:"slack"`
	Discord WebhookConfig `json:"discord"`
}

type StreamConfig struct {
	Enabled bool   `json:"enabled"`
	Stream  string `json:"stream"`
}

type WebhookConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
	Username   string `json:"username"`
}

type ScheduleConfig struct {
	Name   string `json:"name"`
	Cron   string `json:"cron"`
	Prompt string `json:"prompt"`
}

const (
	DefaultAddr         = ":8080"
	DefaultArtifactPath = "results/final.html"
	DefaultCachePath    = "results/crew.db"
	DefaultStream       = "crew:events"
)

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

func substituteEnv(data []byte) []byte {
	return envVarRe.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envVarRe.FindSubmatch(match)
		if v := os.Getenv(string(parts[1])); v != "" {
			return []byte(v)
		}
		return parts[2]
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON or YAML config file, substitutes environment variable
// references, validates it against the embedded schema and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(substituteEnv(data), formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes an already-substituted document. format is "json" or "yaml".
func Parse(data []byte, format string) (*Config, error) {
	doc := data
	if format == "yaml" {
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if tree == nil {
			tree = map[string]any{}
		}
		var err error
		if doc, err = json.Marshal(tree); err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if _, err := cfg.Roster(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if len(c.Providers) == 0 {
		c.Providers = []ProviderConfig{{ID: "ollama", Type: "ollama", Name: "Ollama"}}
	}
	if len(c.Agents) == 0 {
		c.Agents = roster.DefaultAgents()
	}
	if c.Dispatch.Workers == 0 {
		c.Dispatch.Workers = 5
	}
	if c.Dispatch.Timeout == 0 {
		c.Dispatch.Timeout = Duration(120 * time.Second)
	}
	if c.Artifact.Path == "" {
		c.Artifact.Path = DefaultArtifactPath
	}
	if c.Artifact.Format == "" {
		c.Artifact.Format = "html"
	}
	if c.Cache.Backend == "sqlite" && c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}
	if c.Events.History == 0 {
		c.Events.History = 256
	}
	if c.Events.Redis.Stream == "" {
		c.Events.Redis.Stream = DefaultStream
	}
}

// Roster builds the agent registry from the configured agents.
func (c *Config) Roster() (*roster.Registry, error) {
	return roster.New(c.Agents)
}
