package config

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		yaml       string
		wantErr    bool
		errSubstrs []string
	}{
		{
			name: "valid_full_configuration",
			yaml: `
server:
  listen_addr: ":9090"
  log_level: "debug"
github:
  api_base_url: "https://ghe.example.com/api/v3"
  web_base_url: "https://ghe.example.com"
  request_timeout: "15s"
  org: "acme"
  app_id: 111111
  installation_id: 222222
  private_key_path: "/etc/org-dashboard/keys/acme.pem"
  repo_allowlist: ["core", "docs"]
  per_org_concurrency: 8
  lookback: "52w"
  resolve_mergers: true
rate_limit:
  min_remaining_threshold: 200
  min_reset_buffer: "10s"
  secondary_limit_backoff: "60s"
  requests_per_second: 5
  burst: 10
retry:
  max_attempts: 5
  initial_backoff: "2s"
  max_backoff: "2m"
cache:
  backend: "redis"
  max_age: "10m"
  memo_ttl: "30s"
  retention: "7d"
  redis_mode: "sentinel"
  redis_master_set: "mymaster"
  redis_sentinel_addrs: ["sentinel-0:26379"]
  namespace: "dash"
refresh:
  interval: "15m"
window:
  timezone: "UTC"
telemetry:
  otel_enabled: true
  otel_trace_mode: "sampled"
  otel_trace_sample_ratio: 0.05
`,
		},
		{
			name: "valid_minimal_token_configuration",
			yaml: `
github:
  org: "acme"
  token: "ghp_example"
`,
		},
		{
			name: "invalid_log_level",
			yaml: `
server:
  log_level: "verbose"
github:
  org: "acme"
`,
			wantErr:    true,
			errSubstrs: []string{"server.log_level", "debug|info|warn|error"},
		},
		{
			name: "missing_org_and_partial_app",
			yaml: `
github:
  app_id: 1
`,
			wantErr: true,
			errSubstrs: []string{
				"github.org is required",
				"github.installation_id must be > 0",
				"github.private_key_path is required",
			},
		},
		{
			name: "redis_without_address",
			yaml: `
github:
  org: "acme"
cache:
  backend: "redis"
`,
			wantErr:    true,
			errSubstrs: []string{"cache.redis_addr is required"},
		},
		{
			name: "unknown_backend_and_timezone",
			yaml: `
github:
  org: "acme"
cache:
  backend: "sqlite"
window:
  timezone: "Mars/Olympus_Mons"
`,
			wantErr:    true,
			errSubstrs: []string{"cache.backend must be memory or redis", "window.timezone"},
		},
		{
			name: "negative_request_pacing",
			yaml: `
github:
  org: "acme"
rate_limit:
  requests_per_second: -1
  burst: -2
`,
			wantErr:    true,
			errSubstrs: []string{"rate_limit.requests_per_second must be >= 0", "rate_limit.burst must be >= 0"},
		},
		{
			name: "unknown_field_rejected",
			yaml: `
github:
  org: "acme"
  orgs: []
`,
			wantErr:    true,
			errSubstrs: []string{"unmarshal yaml"},
		},
		{
			name: "invalid_duration",
			yaml: `
github:
  org: "acme"
cache:
  max_age: "soon"
`,
			wantErr:    true,
			errSubstrs: []string{"invalid unit"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Load(strings.NewReader(tc.yaml))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Load() expected error")
				}
				for _, substr := range tc.errSubstrs {
					if !strings.Contains(err.Error(), substr) {
						t.Fatalf("error %q missing %q", err.Error(), substr)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if cfg.GitHub.Org != "acme" {
				t.Fatalf("github.org = %q, want acme", cfg.GitHub.Org)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader("github:\n  org: acme\n"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != "info" {
		t.Fatalf("server defaults = %+v", cfg.Server)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.MaxAge != 5*time.Minute || cfg.Cache.MemoTTL != time.Minute || cfg.Cache.Retention != 24*time.Hour || cfg.Refresh.Interval != 15*time.Minute {
		t.Fatalf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.GitHub.WebBaseURL != "https://github.com" || cfg.GitHub.PerOrgConcurrency != 4 {
		t.Fatalf("github defaults = %+v", cfg.GitHub)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.RateLimit.RequestsPerSecond != 0 || cfg.RateLimit.Burst != 0 {
		t.Fatalf("request pacing should be off by default: %+v", cfg.RateLimit)
	}
	if cfg.GitHub.UsesApp() {
		t.Fatalf("UsesApp() = true without app settings")
	}
}

func TestLoadNilReader(t *testing.T) {
	t.Parallel()

	var reader io.Reader
	if _, err := Load(reader); err == nil {
		t.Fatalf("Load(nil) expected error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvGitHubToken:   " ghp_from_env ",
		EnvCacheDisabled: "true",
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	cfg := &Config{}
	applyEnv(cfg, lookup)
	if cfg.GitHub.Token != "ghp_from_env" {
		t.Fatalf("token = %q, want ghp_from_env", cfg.GitHub.Token)
	}
	if !cfg.Cache.Disabled {
		t.Fatalf("cache.disabled = false, want true from env")
	}

	explicit := &Config{GitHub: GitHubConfig{Token: "from-yaml"}}
	applyEnv(explicit, lookup)
	if explicit.GitHub.Token != "from-yaml" {
		t.Fatalf("token = %q, want yaml value to win", explicit.GitHub.Token)
	}

	env[EnvCacheDisabled] = "not-a-bool"
	untouched := &Config{}
	applyEnv(untouched, lookup)
	if untouched.Cache.Disabled {
		t.Fatalf("invalid boolean must not disable the cache")
	}
}

func TestParseFlexibleDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "90s", want: 90 * time.Second},
		{raw: "7d", want: 7 * 24 * time.Hour},
		{raw: "2w", want: 14 * 24 * time.Hour},
		{raw: "1.5d", want: 36 * time.Hour},
		{raw: "", want: 0},
		{raw: "3y", wantErr: true},
		{raw: "xd", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			got, err := parseFlexibleDuration(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseFlexibleDuration(%q) expected error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlexibleDuration(%q) error = %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("parseFlexibleDuration(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
