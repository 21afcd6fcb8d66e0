package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scholarly-tools/doideposit/internal/deposit/client"
	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/tracing"
)

func validTenant() TenantConfig {
	return TenantConfig{
		Username:       "account",
		Password:       "secret",
		DOIPrefix:      "10.1234",
		JournalPath:    "jot",
		JournalTitle:   "Journal of Testing",
		DepositorName:  "Jane Editor",
		DepositorEmail: "editor@example.org",
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, 5*time.Minute, cfg.StatusCacheTTL)
	require.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, "127.0.0.1:8080", cfg.Serve.Addr)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
	require.NotNil(t, cfg.Tenants)
	require.NoError(t, Validate(cfg), "defaults must validate")
}

func TestValidateTenant(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TenantConfig)
		wantErr string
	}{
		{"valid", func(*TenantConfig) {}, ""},
		{"missing username", func(c *TenantConfig) { c.Username = "" }, "username is required"},
		{"missing prefix", func(c *TenantConfig) { c.DOIPrefix = "" }, "doi_prefix is required"},
		{"prefix without 10.", func(c *TenantConfig) { c.DOIPrefix = "1234" }, "must look like"},
		{"prefix with suffix", func(c *TenantConfig) { c.DOIPrefix = "10.1234/jot" }, "must look like"},
		{"missing title", func(c *TenantConfig) { c.JournalTitle = "" }, "journal_title is required"},
		{"bad email", func(c *TenantConfig) { c.DepositorEmail = "nobody" }, "not an email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := validTenant()
			tt.mutate(&tenant)
			err := ValidateTenant("jot", tenant)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
			require.Contains(t, err.Error(), "tenants.jot.")
		})
	}
}

func TestValidate_DefaultContextMustExist(t *testing.T) {
	cfg := Defaults()
	cfg.DefaultContext = "jot"

	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "default_context")

	cfg.Tenants["jot"] = validTenant()
	require.NoError(t, Validate(cfg))
}

func TestValidate_NegativeTTL(t *testing.T) {
	cfg := Defaults()
	cfg.StatusCacheTTL = -time.Second
	require.Error(t, Validate(cfg))
}

func TestValidateHTTP(t *testing.T) {
	require.NoError(t, ValidateHTTP(HTTPConfig{}))
	require.Error(t, ValidateHTTP(HTTPConfig{Timeout: -1}))
	require.Error(t, ValidateHTTP(HTTPConfig{Timeout: time.Second, ResponseHeaderTimeout: time.Minute}))
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     tracing.Config
		wantErr bool
	}{
		{"defaults", tracing.DefaultConfig(), false},
		{"sample rate too high", tracing.Config{SampleRate: 1.5}, true},
		{"sample rate negative", tracing.Config{SampleRate: -0.1}, true},
		{"unknown exporter", tracing.Config{Exporter: "zipkin"}, true},
		{"file without path", tracing.Config{Enabled: true, Exporter: "file"}, true},
		{"file without path but disabled", tracing.Config{Exporter: "file"}, false},
		{"otlp without endpoint", tracing.Config{Enabled: true, Exporter: "otlp"}, true},
		{"stdout", tracing.Config{Enabled: true, Exporter: "stdout", SampleRate: 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestResolveContext(t *testing.T) {
	single := Defaults()
	single.Tenants["jot"] = validTenant()

	id, err := single.ResolveContext("")
	require.NoError(t, err)
	require.Equal(t, "jot", id, "the only tenant is picked")

	_, err = single.ResolveContext("other")
	require.Error(t, err)

	multi := Defaults()
	multi.Tenants["jot"] = validTenant()
	multi.Tenants["abc"] = validTenant()

	_, err = multi.ResolveContext("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "abc, jot")

	multi.DefaultContext = "abc"
	id, err = multi.ResolveContext("")
	require.NoError(t, err)
	require.Equal(t, "abc", id)

	id, err = multi.ResolveContext("jot")
	require.NoError(t, err)
	require.Equal(t, "jot", id)
}

func TestTenantConfig_Endpoints(t *testing.T) {
	tenant := validTenant()
	require.Equal(t, client.EndpointsFor(false), tenant.Endpoints())

	tenant.TestMode = true
	require.Equal(t, client.EndpointsFor(true), tenant.Endpoints())
	require.Equal(t, domain.Credentials{Username: "account", Password: "secret", TestMode: true}, tenant.Credentials())

	tenant.DepositURL = "http://localhost:9999/deposit"
	ep := tenant.Endpoints()
	require.Equal(t, "http://localhost:9999/deposit", ep.Deposit)
	require.Equal(t, client.StatusTestURL, ep.Status)
}

func TestTenantConfig_Deployment(t *testing.T) {
	tenant := validTenant()
	dep := tenant.Deployment(nil)
	require.Equal(t, "Journal of Testing", dep.JournalTitle)
	require.Equal(t, "Jane Editor", dep.Registrant, "registrant defaults to the depositor")

	tenant.Registrant = "Example Press"
	require.Equal(t, "Example Press", tenant.Deployment(nil).Registrant)
}

func TestHTTPConfig_ClientConfig(t *testing.T) {
	defaults := client.DefaultConfig()
	require.Equal(t, defaults, HTTPConfig{}.ClientConfig())

	cfg := HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test"}.ClientConfig()
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, "test", cfg.UserAgent)
	require.Equal(t, defaults.DialTimeout, cfg.DialTimeout)
}

func TestIdentifiers(t *testing.T) {
	cfg := Defaults()
	cfg.Tenants["jot"] = validTenant()

	ids := cfg.Identifiers()
	require.Len(t, ids, 1)
	require.Equal(t, "10.1234", ids["jot"].Prefix)
	require.Equal(t, "jot", ids["jot"].JournalPath)
}

func TestWriteDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
