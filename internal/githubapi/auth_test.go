package githubapi

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writePrivateKeyPEM(t *testing.T, dir string) string {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() unexpected error: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	path := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("os.WriteFile() unexpected error: %v", err)
	}
	return path
}

func TestNewHTTPClientAppAuth(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	validKeyPath := writePrivateKeyPEM(t, tempDir)
	invalidKeyPath := filepath.Join(tempDir, "invalid.pem")
	if err := os.WriteFile(invalidKeyPath, []byte("not-a-key"), 0o600); err != nil {
		t.Fatalf("os.WriteFile(invalid) unexpected error: %v", err)
	}

	testCases := []struct {
		name        string
		config      AuthConfig
		errContains string
	}{
		{
			name:        "missing_app_id",
			config:      AuthConfig{InstallationID: 1, PrivateKeyPath: validKeyPath},
			errContains: "app id",
		},
		{
			name:        "missing_installation_id",
			config:      AuthConfig{AppID: 1, PrivateKeyPath: validKeyPath},
			errContains: "installation id",
		},
		{
			name:        "missing_private_key_path",
			config:      AuthConfig{AppID: 1, InstallationID: 1},
			errContains: "private key path",
		},
		{
			name:        "unreadable_private_key",
			config:      AuthConfig{AppID: 1, InstallationID: 1, PrivateKeyPath: invalidKeyPath},
			errContains: "create github app transport",
		},
		{
			name:   "valid_app_config",
			config: AuthConfig{AppID: 1, InstallationID: 2, PrivateKeyPath: validKeyPath, Timeout: 5 * time.Second},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client, err := NewHTTPClient(tc.config)
			if tc.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("NewHTTPClient() error = %v, want substring %q", err, tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHTTPClient() unexpected error: %v", err)
			}
			if client.Timeout != tc.config.Timeout {
				t.Fatalf("Timeout = %v, want %v", client.Timeout, tc.config.Timeout)
			}
		})
	}
}

func TestNewHTTPClientTokenAuth(t *testing.T) {
	t.Parallel()

	authHeaders := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewHTTPClient(AuthConfig{Token: " ghp_secret "})
	if err != nil {
		t.Fatalf("NewHTTPClient() unexpected error: %v", err)
	}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	_ = resp.Body.Close()

	if gotAuth := <-authHeaders; gotAuth != "Bearer ghp_secret" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestNewHTTPClientAnonymous(t *testing.T) {
	t.Parallel()

	client, err := NewHTTPClient(AuthConfig{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPClient() unexpected error: %v", err)
	}
	if client.Transport != http.DefaultTransport {
		t.Fatalf("anonymous client should use the base transport")
	}
}

func TestNewGitHubRESTClient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		baseURL  string
		wantURL  string
		wantFail bool
	}{
		{name: "default", baseURL: "", wantURL: "https://api.github.com/"},
		{name: "enterprise_adds_slash", baseURL: "https://ghe.example.com/api/v3", wantURL: "https://ghe.example.com/api/v3/"},
		{name: "missing_scheme", baseURL: "ghe.example.com", wantFail: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client, err := NewGitHubRESTClient(nil, tc.baseURL)
			if tc.wantFail {
				if err == nil {
					t.Fatalf("NewGitHubRESTClient(%q) expected error", tc.baseURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGitHubRESTClient(%q) error = %v", tc.baseURL, err)
			}
			if got := client.Client.BaseURL.String(); got != tc.wantURL {
				t.Fatalf("BaseURL = %q, want %q", got, tc.wantURL)
			}
		})
	}
}
