package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestYAML(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test yaml: %v", err)
	}
	return path
}

// --- Load tests ---

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_RR_TOKEN", "tok-abc")
	t.Setenv("TEST_RR_SECRET", "s3cret")

	writeTestYAML(t, dir, DefaultConfigFile, `
feed:
  base_url: https://old.reddit.com
  user_agent: "test-agent/1.0"
  timeout: 5s
  page_size: 50
  default_sort: top
  default_time: week
saved:
  path: custom.db
  scope: alice
  remote_url: https://saved.example.com
  token_env: TEST_RR_TOKEN
  remote_delete: true
server:
  addr: 127.0.0.1:9090
  path: server.db
  jwt_secret_env: TEST_RR_SECRET
  enable_delete: true
  upstream: https://www.reddit.com
log:
  level: debug
  format: json
privacy:
  redact:
    enabled: true
    patterns:
      - "(?i)session=[a-z0-9]+"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Feed
	if cfg.Feed.BaseURL != "https://old.reddit.com" {
		t.Errorf("base_url = %q", cfg.Feed.BaseURL)
	}
	if cfg.Feed.UserAgent != "test-agent/1.0" {
		t.Errorf("user_agent = %q", cfg.Feed.UserAgent)
	}
	if cfg.Feed.Timeout.Duration != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Feed.Timeout.Duration)
	}
	if cfg.Feed.PageSize != 50 {
		t.Errorf("page_size = %d, want 50", cfg.Feed.PageSize)
	}
	if cfg.Feed.DefaultSort != "top" || cfg.Feed.DefaultTime != "week" {
		t.Errorf("default sort/time = %q/%q", cfg.Feed.DefaultSort, cfg.Feed.DefaultTime)
	}

	// Saved
	if cfg.Saved.Path != "custom.db" {
		t.Errorf("saved.path = %q, want custom.db", cfg.Saved.Path)
	}
	if cfg.Saved.Scope != "alice" {
		t.Errorf("saved.scope = %q, want alice", cfg.Saved.Scope)
	}
	if cfg.Saved.RemoteURL != "https://saved.example.com" {
		t.Errorf("saved.remote_url = %q", cfg.Saved.RemoteURL)
	}
	if cfg.Saved.Token != "tok-abc" {
		t.Errorf("saved token = %q, want tok-abc", cfg.Saved.Token)
	}
	if !cfg.Saved.RemoteDelete {
		t.Error("remote_delete = false, want true")
	}

	// Server
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q, want s3cret", cfg.Server.JWTSecret)
	}
	if !cfg.Server.EnableDelete {
		t.Error("enable_delete = false, want true")
	}

	// Log
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}

	// Privacy
	if !cfg.Privacy.Redact.Enabled {
		t.Error("redact.enabled = false, want true")
	}
	if len(cfg.Privacy.Redact.Patterns) != 1 {
		t.Errorf("redact patterns = %v", cfg.Privacy.Redact.Patterns)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, "feed: {}\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Feed.BaseURL != DefaultBaseURL {
		t.Errorf("base_url = %q, want %q", cfg.Feed.BaseURL, DefaultBaseURL)
	}
	if cfg.Feed.UserAgent != DefaultUserAgent {
		t.Errorf("user_agent = %q, want %q", cfg.Feed.UserAgent, DefaultUserAgent)
	}
	if cfg.Feed.Timeout.Duration != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Feed.Timeout.Duration, DefaultTimeout)
	}
	if cfg.Feed.PageSize != DefaultPageSize {
		t.Errorf("page_size = %d, want %d", cfg.Feed.PageSize, DefaultPageSize)
	}
	if cfg.Feed.DefaultSort != DefaultSort {
		t.Errorf("default_sort = %q, want %q", cfg.Feed.DefaultSort, DefaultSort)
	}
	if cfg.Saved.Path != DefaultSavedPath {
		t.Errorf("saved.path = %q, want %q", cfg.Saved.Path, DefaultSavedPath)
	}
	if cfg.Saved.Scope != DefaultSavedScope {
		t.Errorf("saved.scope = %q, want %q", cfg.Saved.Scope, DefaultSavedScope)
	}
	if cfg.Saved.TokenEnv != DefaultTokenEnv {
		t.Errorf("token_env = %q, want %q", cfg.Saved.TokenEnv, DefaultTokenEnv)
	}
	if cfg.Saved.RemoteDelete {
		t.Error("remote_delete should default to false")
	}
	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("server.addr = %q, want %q", cfg.Server.Addr, DefaultServerAddr)
	}
	if cfg.Server.EnableDelete {
		t.Error("enable_delete should default to false")
	}
	if cfg.Server.Upstream != DefaultBaseURL {
		t.Errorf("upstream = %q, want feed base url", cfg.Server.Upstream)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := validate(cfg); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	if cfg.Feed.PageSize != DefaultPageSize {
		t.Errorf("page_size = %d, want %d", cfg.Feed.PageSize, DefaultPageSize)
	}
}

func TestLoad_UpstreamFollowsBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
feed:
  base_url: http://127.0.0.1:8081
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Upstream != "http://127.0.0.1:8081" {
		t.Errorf("upstream = %q", cfg.Server.Upstream)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad base url scheme", "feed:\n  base_url: ftp://x\n", "feed.base_url"},
		{"base url without host", "feed:\n  base_url: https://\n", "feed.base_url"},
		{"bad remote url", "saved:\n  remote_url: not a url\n", "saved.remote_url"},
		{"page size too big", "feed:\n  page_size: 500\n", "feed.page_size"},
		{"negative page size", "feed:\n  page_size: -1\n", "feed.page_size"},
		{"negative timeout", "feed:\n  timeout: -5s\n", "feed.timeout"},
		{"unknown sort", "feed:\n  default_sort: rising\n", "feed.default_sort"},
		{"unknown time", "feed:\n  default_time: decade\n", "feed.default_time"},
		{"unknown log level", "log:\n  level: loud\n", "log.level"},
		{"unknown log format", "log:\n  format: xml\n", "unknown format"},
		{"bad redact pattern", "privacy:\n  redact:\n    patterns: ['(unclosed']\n", "privacy.redact.patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTestYAML(t, dir, DefaultConfigFile, tt.yaml)

			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_DurationParsing(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
feed:
  timeout: 1m30s
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.Timeout.Duration != 90*time.Second {
		t.Errorf("timeout = %v, want 1m30s", cfg.Feed.Timeout.Duration)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
feed:
  timeout: soon
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if want := "parse duration"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if want := "read config"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `{{{invalid`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
	if want := "parse config"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for empty dir")
	}
	if want := "config dir is required"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_EnvVarMissing(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
saved:
  token_env: NONEXISTENT_VAR_12345
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Saved.Token != "" {
		t.Errorf("token = %q, want empty", cfg.Saved.Token)
	}
}
