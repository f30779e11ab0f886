// Package config loads pagetree.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = "pagetree.yaml"

// Backend names a remote store implementation.
type Backend string

const (
	// BackendMemory keeps everything in process memory.
	BackendMemory Backend = "memory"
	// BackendFile stores JSONL tables and markdown in a git repository.
	BackendFile Backend = "file"
	// BackendSQLite stores everything in a SQLite database.
	BackendSQLite Backend = "sqlite"
	// BackendHTTP talks to a pagetree server.
	BackendHTTP Backend = "http"
)

// Validate checks that b is a known backend.
func (b Backend) Validate() error {
	switch b {
	case BackendMemory, BackendFile, BackendSQLite, BackendHTTP:
		return nil
	}
	return fmt.Errorf("unknown backend %q", string(b))
}

// Config is the content of pagetree.yaml.
type Config struct {
	Backend       Backend       `yaml:"backend"`
	DataDir       string        `yaml:"data_dir"`
	AutosaveDelay time.Duration `yaml:"autosave_delay"`
	Server        Server        `yaml:"server"`
	Client        Client        `yaml:"client"`
}

// Server configures `pagetree serve`.
type Server struct {
	Addr string `yaml:"addr"`
	// JWTSecret enables bearer authentication when set.
	JWTSecret  string     `yaml:"jwt_secret,omitempty"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

// RateLimits defines per client limits in requests per minute. 0 means
// unlimited.
type RateLimits struct {
	ReadPerMin  int `yaml:"read_per_min"`
	WritePerMin int `yaml:"write_per_min"`
	Burst       int `yaml:"burst"`
}

// Client configures the http backend.
type Client struct {
	URL               string  `yaml:"url,omitempty"`
	Token             string  `yaml:"token,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend:       BackendFile,
		DataDir:       "./data",
		AutosaveDelay: time.Second,
		Server: Server{
			Addr: "localhost:8080",
			RateLimits: RateLimits{
				ReadPerMin:  6000,
				WritePerMin: 600,
				Burst:       50,
			},
		},
		Client: Client{RequestsPerSecond: 20},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if (c.Backend == BackendFile || c.Backend == BackendSQLite) && c.DataDir == "" {
		return fmt.Errorf("data_dir is required by the %s backend", c.Backend)
	}
	if c.Backend == BackendHTTP && c.Client.URL == "" {
		return errors.New("client.url is required by the http backend")
	}
	if c.AutosaveDelay < 0 {
		return errors.New("autosave_delay must be non-negative")
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if c.Client.RequestsPerSecond < 0 {
		return errors.New("client.requests_per_second must be non-negative")
	}
	return nil
}

// Validate checks the server settings.
func (s *Server) Validate() error {
	if s.JWTSecret != "" && len(s.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	return s.RateLimits.Validate()
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.ReadPerMin < 0 {
		return errors.New("read_per_min must be non-negative")
	}
	if r.WritePerMin < 0 {
		return errors.New("write_per_min must be non-negative")
	}
	if r.Burst < 0 {
		return errors.New("burst must be non-negative")
	}
	return nil
}

// Load reads path over the defaults. A missing file yields the defaults and
// is written out when create is true.
func Load(path string, create bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the user.
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if create {
			if err := cfg.Save(path); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: configuration directory.
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
