package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all viewer configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Database DatabaseConfig `yaml:"database"`
	List     ListConfig     `yaml:"list"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ListConfig struct {
	DefaultPerPage int           `yaml:"default_per_page"`
	PerPageOptions []int         `yaml:"per_page_options"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
	MaxSessions    int           `yaml:"max_sessions"`
}

type SessionConfig struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
}

// DefaultSessionSecret signs session cookies when nothing else is set.
// It is public, so any deployment should override it.
const DefaultSessionSecret = "change-me-viewer-secret"

// Default returns a Config with the built-in defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8090"},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Path: "viewer.db"},
		List: ListConfig{
			DefaultPerPage: 10,
			PerPageOptions: []int{10, 20, 50},
			SearchDebounce: 250 * time.Millisecond,
			MaxSessions:    1024,
		},
		Session: SessionConfig{
			Name:   "viewer",
			Secret: DefaultSessionSecret,
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if url := os.Getenv("VIEWER_UPSTREAM_URL"); url != "" {
		cfg.Upstream.BaseURL = url
	}
	if secret := os.Getenv("VIEWER_SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that the viewer cannot run without
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required")
	}
	if len(c.List.PerPageOptions) == 0 {
		return errors.New("list.per_page_options must not be empty")
	}
	for _, n := range c.List.PerPageOptions {
		if n <= 0 {
			return fmt.Errorf("list.per_page_options: %d is not a positive page size", n)
		}
	}
	if c.List.DefaultPerPage <= 0 {
		return fmt.Errorf("list.default_per_page: %d is not a positive page size", c.List.DefaultPerPage)
	}
	if !c.AllowsPerPage(c.List.DefaultPerPage) {
		return fmt.Errorf("list.default_per_page: %d is not one of list.per_page_options %v",
			c.List.DefaultPerPage, c.List.PerPageOptions)
	}
	if c.List.MaxSessions <= 0 {
		return fmt.Errorf("list.max_sessions: %d must be positive", c.List.MaxSessions)
	}
	if c.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	return nil
}

// UsesDefaultSecret reports whether session cookies are signed with the
// built-in secret
func (c *Config) UsesDefaultSecret() bool {
	return c.Session.Secret == DefaultSessionSecret
}

// AllowsPerPage reports whether n is one of the configured page sizes
func (c *Config) AllowsPerPage(n int) bool {
	for _, opt := range c.List.PerPageOptions {
		if opt == n {
			return true
		}
	}
	return false
}
