package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvGitHubToken supplies a personal access token when no GitHub App is configured.
	EnvGitHubToken = "GITHUB_TOKEN"
	// EnvCacheDisabled turns off cache reads when set to a true value.
	EnvCacheDisabled = "DASHBOARD_CACHE_DISABLED"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validCacheBackends = []string{"memory", "redis"}
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Cache     CacheConfig
	Refresh   RefreshConfig
	Window    WindowConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// GitHubConfig configures the GitHub data source for one organization.
type GitHubConfig struct {
	APIBaseURL        string
	WebBaseURL        string
	RequestTimeout    time.Duration
	Org               string
	AppID             int64
	InstallationID    int64
	PrivateKeyPath    string
	Token             string
	RepoAllowlist     []string
	PerOrgConcurrency int
	Lookback          time.Duration
	// ResolveMergers fetches each merged pull request to credit its merger.
	ResolveMergers bool
}

// UsesApp reports whether GitHub App installation auth is configured.
func (c GitHubConfig) UsesApp() bool {
	return c.AppID > 0 || c.InstallationID > 0 || c.PrivateKeyPath != ""
}

// RateLimitConfig configures rate-limit controls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
	// RequestsPerSecond paces outgoing GitHub requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// RetryConfig configures retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// CacheConfig configures the cache collaborator.
type CacheConfig struct {
	Backend            string
	Disabled           bool
	MaxAge             time.Duration
	MemoTTL            time.Duration
	Retention          time.Duration
	RedisMode          string
	RedisAddr          string
	RedisMasterSet     string
	RedisSentinelAddrs []string
	RedisPassword      string
	RedisDB            int
	Namespace          string
}

// RefreshConfig configures the background refresh loop.
type RefreshConfig struct {
	Interval time.Duration
}

// WindowConfig configures date-window parsing.
type WindowConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves the configured timezone, falling back to time.Local.
func (c WindowConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML, applies defaults and environment overrides,
// and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)
	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	if strings.TrimSpace(c.GitHub.Org) == "" {
		errs = append(errs, "github.org is required")
	}
	if c.GitHub.UsesApp() {
		if c.GitHub.AppID <= 0 {
			errs = append(errs, "github.app_id must be > 0")
		}
		if c.GitHub.InstallationID <= 0 {
			errs = append(errs, "github.installation_id must be > 0")
		}
		if c.GitHub.PrivateKeyPath == "" {
			errs = append(errs, "github.private_key_path is required")
		}
	}
	if c.GitHub.PerOrgConcurrency <= 0 {
		errs = append(errs, "github.per_org_concurrency must be > 0")
	}
	if c.GitHub.Lookback < 0 {
		errs = append(errs, "github.lookback must be >= 0")
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, "rate_limit.requests_per_second must be >= 0")
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, "rate_limit.burst must be >= 0")
	}

	if !slices.Contains(validCacheBackends, c.Cache.Backend) {
		errs = append(errs, "cache.backend must be memory or redis")
	}
	if c.Cache.RedisMode != "standalone" && c.Cache.RedisMode != "sentinel" {
		errs = append(errs, "cache.redis_mode must be standalone or sentinel")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisMode == "standalone" && c.Cache.RedisAddr == "" {
		errs = append(errs, "cache.redis_addr is required when cache.backend=redis")
	}
	if c.Cache.RedisMode == "sentinel" && len(c.Cache.RedisSentinelAddrs) == 0 {
		errs = append(errs, "cache.redis_sentinel_addrs is required when cache.redis_mode=sentinel")
	}
	if c.Cache.MaxAge <= 0 {
		errs = append(errs, "cache.max_age must be > 0")
	}
	if c.Cache.MemoTTL <= 0 {
		errs = append(errs, "cache.memo_ttl must be > 0")
	}
	if c.Cache.Retention < c.Cache.MaxAge {
		errs = append(errs, "cache.retention must be >= cache.max_age")
	}

	if c.Refresh.Interval < 0 {
		errs = append(errs, "refresh.interval must be >= 0")
	}

	if _, err := c.Window.Location(); err != nil {
		errs = append(errs, "window.timezone must be a valid IANA timezone")
	}

	if c.Telemetry.OTELTraceSampleRatio < 0 || c.Telemetry.OTELTraceSampleRatio > 1 {
		errs = append(errs, "telemetry.otel_trace_sample_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.GitHub.WebBaseURL == "" {
		cfg.GitHub.WebBaseURL = "https://github.com"
	}
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 20 * time.Second
	}
	if cfg.GitHub.PerOrgConcurrency == 0 {
		cfg.GitHub.PerOrgConcurrency = 4
	}
	if cfg.RateLimit.MinRemainingThreshold == 0 {
		cfg.RateLimit.MinRemainingThreshold = 100
	}
	if cfg.RateLimit.SecondaryLimitBackoff == 0 {
		cfg.RateLimit.SecondaryLimitBackoff = time.Minute
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = time.Second
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 30 * time.Second
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.RedisMode == "" {
		cfg.Cache.RedisMode = "standalone"
	}
	if cfg.Cache.MaxAge == 0 {
		cfg.Cache.MaxAge = 5 * time.Minute
	}
	if cfg.Cache.MemoTTL == 0 {
		cfg.Cache.MemoTTL = time.Minute
	}
	if cfg.Cache.Retention == 0 {
		cfg.Cache.Retention = 24 * time.Hour
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = "org-dashboard"
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = 15 * time.Minute
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if token, ok := lookup(EnvGitHubToken); ok && strings.TrimSpace(token) != "" && cfg.GitHub.Token == "" {
		cfg.GitHub.Token = strings.TrimSpace(token)
	}
	if raw, ok := lookup(EnvCacheDisabled); ok {
		if disabled, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			cfg.Cache.Disabled = disabled
		}
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	GitHub    rawGitHub    `yaml:"github"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Retry     rawRetry     `yaml:"retry"`
	Cache     rawCache     `yaml:"cache"`
	Refresh   rawRefresh   `yaml:"refresh"`
	Window    WindowConfig `yaml:"window"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL        string   `yaml:"api_base_url"`
	WebBaseURL        string   `yaml:"web_base_url"`
	RequestTimeout    duration `yaml:"request_timeout"`
	Org               string   `yaml:"org"`
	AppID             int64    `yaml:"app_id"`
	InstallationID    int64    `yaml:"installation_id"`
	PrivateKeyPath    string   `yaml:"private_key_path"`
	Token             string   `yaml:"token"`
	RepoAllowlist     []string `yaml:"repo_allowlist"`
	PerOrgConcurrency int      `yaml:"per_org_concurrency"`
	Lookback          duration `yaml:"lookback"`
	ResolveMergers    bool     `yaml:"resolve_mergers"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
	RequestsPerSecond     float64  `yaml:"requests_per_second"`
	Burst                 int      `yaml:"burst"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawCache struct {
	Backend            string   `yaml:"backend"`
	Disabled           bool     `yaml:"disabled"`
	MaxAge             duration `yaml:"max_age"`
	MemoTTL            duration `yaml:"memo_ttl"`
	Retention          duration `yaml:"retention"`
	RedisMode          string   `yaml:"redis_mode"`
	RedisAddr          string   `yaml:"redis_addr"`
	RedisMasterSet     string   `yaml:"redis_master_set"`
	RedisSentinelAddrs []string `yaml:"redis_sentinel_addrs"`
	RedisPassword      string   `yaml:"redis_password"`
	RedisDB            int      `yaml:"redis_db"`
	Namespace          string   `yaml:"namespace"`
}

type rawRefresh struct {
	Interval duration `yaml:"interval"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		GitHub: GitHubConfig{
			APIBaseURL:        r.GitHub.APIBaseURL,
			WebBaseURL:        r.GitHub.WebBaseURL,
			RequestTimeout:    r.GitHub.RequestTimeout.Duration,
			Org:               r.GitHub.Org,
			AppID:             r.GitHub.AppID,
			InstallationID:    r.GitHub.InstallationID,
			PrivateKeyPath:    r.GitHub.PrivateKeyPath,
			Token:             r.GitHub.Token,
			RepoAllowlist:     r.GitHub.RepoAllowlist,
			PerOrgConcurrency: r.GitHub.PerOrgConcurrency,
			Lookback:          r.GitHub.Lookback.Duration,
			ResolveMergers:    r.GitHub.ResolveMergers,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
			RequestsPerSecond:     r.RateLimit.RequestsPerSecond,
			Burst:                 r.RateLimit.Burst,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		Cache: CacheConfig{
			Backend:            r.Cache.Backend,
			Disabled:           r.Cache.Disabled,
			MaxAge:             r.Cache.MaxAge.Duration,
			MemoTTL:            r.Cache.MemoTTL.Duration,
			Retention:          r.Cache.Retention.Duration,
			RedisMode:          r.Cache.RedisMode,
			RedisAddr:          r.Cache.RedisAddr,
			RedisMasterSet:     r.Cache.RedisMasterSet,
			RedisSentinelAddrs: r.Cache.RedisSentinelAddrs,
			RedisPassword:      r.Cache.RedisPassword,
			RedisDB:            r.Cache.RedisDB,
			Namespace:          r.Cache.Namespace,
		},
		Refresh: RefreshConfig{
			Interval: r.Refresh.Interval.Duration,
		},
		Window: r.Window,
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
