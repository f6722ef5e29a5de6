package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[cache]
backend = "redis"
redis_addr = "localhost:6379"
ttl = "72h"
namespace = "team:"

[render]
formats = ["svg", "png"]
embed = false

[server]
addr = "127.0.0.1:9000"

[watch]
interval = "2s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Cache.TTL != 72*time.Hour {
		t.Errorf("Cache.TTL = %v", cfg.Cache.TTL)
	}
	if strings.Join(cfg.Render.Formats, ",") != "svg,png" || cfg.Render.Embed {
		t.Errorf("Render = %+v", cfg.Render)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxBodyBytes != Default().Server.MaxBodyBytes {
		t.Errorf("unset MaxBodyBytes lost its default: %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Watch.Interval != 2*time.Second {
		t.Errorf("Watch.Interval = %v", cfg.Watch.Interval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"syntax", "[cache\n", "parse"},
		{"unknown key", "[cache]\nbackend = \"file\"\ncolour = 1\n", "unknown key"},
		{"backend", "[cache]\nbackend = \"memcached\"\n", "Backend"},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n", "RedisAddr"},
		{"format", "[render]\nformats = [\"pdf\"]\n", "Formats"},
		{"no formats", "[render]\nformats = []\n", "Formats"},
		{"interval", "[watch]\ninterval = \"1ms\"\n", "Interval"},
		{"addr", "[server]\naddr = \"nope\"\n", "Addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") without a file error: %v", err)
	}
	if cfg.Cache.Backend != BackendFile {
		t.Errorf("defaults not applied: %+v", cfg.Cache)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load() of an explicit missing file succeeded")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	p, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join("/tmp/xdg", "deciduous", "config.toml") {
		t.Errorf("DefaultPath() = %s", p)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	p, err = DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(p, filepath.Join(".config", "deciduous", "config.toml")) {
		t.Errorf("DefaultPath() = %s", p)
	}
}
