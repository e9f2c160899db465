package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/redreader/internal/source"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile   = "config.yaml"
	DefaultBaseURL      = "https://www.reddit.com"
	DefaultUserAgent    = "web:redreader:v1.0.0 (by /u/redreader_dev)"
	DefaultTimeout      = 30 * time.Second
	DefaultPageSize     = 25
	DefaultSort         = "hot"
	DefaultSavedPath    = ".redreader/redreader.db"
	DefaultTokenEnv     = "REDREADER_TOKEN"
	DefaultServerAddr   = ":8080"
	DefaultServerPath   = ".redreader/server.db"
	DefaultJWTSecretEnv = "JWT_SECRET"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultSavedScope   = "anonymous"
	maxPageSize         = 100
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Feed    FeedConfig    `yaml:"feed"`
	Saved   SavedConfig   `yaml:"saved"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Privacy PrivacyConfig `yaml:"privacy"`
}

type FeedConfig struct {
	BaseURL     string   `yaml:"base_url"`
	UserAgent   string   `yaml:"user_agent"`
	Timeout     Duration `yaml:"timeout"`
	PageSize    int      `yaml:"page_size"`
	DefaultSort string   `yaml:"default_sort"`
	DefaultTime string   `yaml:"default_time"`
}

type SavedConfig struct {
	Path         string `yaml:"path"`
	Scope        string `yaml:"scope"`
	RemoteURL    string `yaml:"remote_url"`
	TokenEnv     string `yaml:"token_env"`
	RemoteDelete bool   `yaml:"remote_delete"`

	// Resolved from env var at load time.
	Token string `yaml:"-"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	Path         string `yaml:"path"`
	JWTSecretEnv string `yaml:"jwt_secret_env"`
	EnableDelete bool   `yaml:"enable_delete"`
	Upstream     string `yaml:"upstream"`

	// Resolved from env var at load time.
	JWTSecret string `yaml:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with every default applied, used when
// no config file exists.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	resolveEnv(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Feed.BaseURL == "" {
		cfg.Feed.BaseURL = DefaultBaseURL
	}
	if cfg.Feed.UserAgent == "" {
		cfg.Feed.UserAgent = DefaultUserAgent
	}
	if cfg.Feed.Timeout.Duration == 0 {
		cfg.Feed.Timeout.Duration = DefaultTimeout
	}
	if cfg.Feed.PageSize == 0 {
		cfg.Feed.PageSize = DefaultPageSize
	}
	if cfg.Feed.DefaultSort == "" {
		cfg.Feed.DefaultSort = DefaultSort
	}
	if cfg.Saved.Path == "" {
		cfg.Saved.Path = DefaultSavedPath
	}
	if cfg.Saved.Scope == "" {
		cfg.Saved.Scope = DefaultSavedScope
	}
	if cfg.Saved.TokenEnv == "" {
		cfg.Saved.TokenEnv = DefaultTokenEnv
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = DefaultServerPath
	}
	if cfg.Server.JWTSecretEnv == "" {
		cfg.Server.JWTSecretEnv = DefaultJWTSecretEnv
	}
	if cfg.Server.Upstream == "" {
		cfg.Server.Upstream = cfg.Feed.BaseURL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Saved.TokenEnv != "" {
		cfg.Saved.Token = os.Getenv(cfg.Saved.TokenEnv)
	}
	if cfg.Server.JWTSecretEnv != "" {
		cfg.Server.JWTSecret = os.Getenv(cfg.Server.JWTSecretEnv)
	}
}

func validate(cfg *Config) error {
	if err := validateURL(cfg.Feed.BaseURL); err != nil {
		return fmt.Errorf("feed.base_url: %w", err)
	}
	if err := validateURL(cfg.Server.Upstream); err != nil {
		return fmt.Errorf("server.upstream: %w", err)
	}
	if cfg.Saved.RemoteURL != "" {
		if err := validateURL(cfg.Saved.RemoteURL); err != nil {
			return fmt.Errorf("saved.remote_url: %w", err)
		}
	}

	if cfg.Feed.Timeout.Duration < 0 {
		return fmt.Errorf("feed.timeout: must be positive, got %s", cfg.Feed.Timeout.Duration)
	}
	if cfg.Feed.PageSize < 1 || cfg.Feed.PageSize > maxPageSize {
		return fmt.Errorf("feed.page_size: must be between 1 and %d, got %d", maxPageSize, cfg.Feed.PageSize)
	}
	if _, err := source.ParseSort(cfg.Feed.DefaultSort); err != nil {
		return fmt.Errorf("feed.default_sort: %w", err)
	}
	if _, err := source.ParseTimeRange(cfg.Feed.DefaultTime); err != nil {
		return fmt.Errorf("feed.default_time: %w", err)
	}

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", cfg.Log.Format)
	}

	for _, p := range cfg.Privacy.Redact.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("privacy.redact.patterns: %w", err)
		}
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q (want http or https)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
