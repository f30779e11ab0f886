package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", DefaultPath)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendFile || cfg.AutosaveDelay != time.Second {
		t.Errorf("Load(missing) = %+v", cfg)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file created without create: %v", err)
	}

	if _, err := Load(path, true); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s := string(data); !strings.Contains(s, "autosave_delay: 1s") || !strings.Contains(s, "write_per_min: 600") {
		t.Errorf("saved config:\n%s", s)
	}

	content := "backend: sqlite\ndata_dir: /tmp/x\nautosave_delay: 250ms\nserver:\n  rate_limits:\n    write_per_min: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendSQLite || cfg.DataDir != "/tmp/x" || cfg.AutosaveDelay != 250*time.Millisecond {
		t.Errorf("Load() = %+v", cfg)
	}
	// Unset keys keep their default.
	if cfg.Server.RateLimits.WritePerMin != 5 || cfg.Server.RateLimits.ReadPerMin != 6000 || cfg.Server.Addr != "localhost:8080" {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Backend = "ftp" }, "unknown backend"},
		{"data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"http url", func(c *Config) { c.Backend = BackendHTTP }, "client.url"},
		{"autosave", func(c *Config) { c.AutosaveDelay = -1 }, "autosave_delay"},
		{"secret", func(c *Config) { c.Server.JWTSecret = "short" }, "jwt_secret"},
		{"rate", func(c *Config) { c.Server.RateLimits.Burst = -1 }, "burst"},
		{"rps", func(c *Config) { c.Client.RequestsPerSecond = -1 }, "requests_per_second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
	c := Default()
	c.Backend = BackendMemory
	c.DataDir = ""
	if err := c.Validate(); err != nil {
		t.Errorf("memory without data_dir: %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte("backend: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, false); err == nil {
		t.Error("Load(bad yaml) succeeded")
	}
	if err := os.WriteFile(path, []byte("backend: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, false); err == nil {
		t.Error("Load(bad backend) succeeded")
	}
}
