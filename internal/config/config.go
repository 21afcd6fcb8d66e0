// Package config provides configuration types and defaults for doideposit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/client"
	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/deposit/xmlexport"
	"github.com/scholarly-tools/doideposit/internal/identifier"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/templates"
	"github.com/scholarly-tools/doideposit/internal/tracing"
)

// Config holds all configuration options for doideposit.
type Config struct {
	DatabasePath string `mapstructure:"database_path"`

	// ExportDir holds deposit payload files. Empty means the system temp dir.
	ExportDir string `mapstructure:"export_dir"`

	// DefaultContext is the tenant used when --context is omitted.
	DefaultContext string `mapstructure:"default_context"`

	StatusCacheTTL time.Duration           `mapstructure:"status_cache_ttl"`
	HTTP           HTTPConfig              `mapstructure:"http"`
	Tenants        map[string]TenantConfig `mapstructure:"tenants"`
	Serve          ServeConfig             `mapstructure:"serve"`
	Tracing        tracing.Config          `mapstructure:"tracing"`
	Flags          map[string]bool         `mapstructure:"flags"`
}

// HTTPConfig holds the CrossRef transport timeouts.
type HTTPConfig struct {
	Timeout               time.Duration `mapstructure:"timeout"`
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	UserAgent             string        `mapstructure:"user_agent"`
}

// ClientConfig converts the HTTP settings into a client.Config, keeping client
// defaults for anything left unset.
func (h HTTPConfig) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	if h.Timeout > 0 {
		cfg.Timeout = h.Timeout
	}
	if h.DialTimeout > 0 {
		cfg.DialTimeout = h.DialTimeout
	}
	if h.ResponseHeaderTimeout > 0 {
		cfg.ResponseHeaderTimeout = h.ResponseHeaderTimeout
	}
	if h.UserAgent != "" {
		cfg.UserAgent = h.UserAgent
	}
	return cfg
}

// TenantConfig holds the CrossRef account and journal settings of one context.
type TenantConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TestMode bool   `mapstructure:"test_mode" yaml:"test_mode"`

	DOIPrefix     string `mapstructure:"doi_prefix" yaml:"doi_prefix"`
	JournalPath   string `mapstructure:"journal_path" yaml:"journal_path"`
	SuffixPattern string `mapstructure:"suffix_pattern" yaml:"suffix_pattern,omitempty"`

	JournalTitle   string `mapstructure:"journal_title" yaml:"journal_title"`
	JournalAbbrev  string `mapstructure:"journal_abbrev" yaml:"journal_abbrev,omitempty"`
	ISSN           string `mapstructure:"issn" yaml:"issn,omitempty"`
	DepositorName  string `mapstructure:"depositor_name" yaml:"depositor_name"`
	DepositorEmail string `mapstructure:"depositor_email" yaml:"depositor_email"`
	Registrant     string `mapstructure:"registrant" yaml:"registrant,omitempty"`

	// DepositURL and StatusURL override the CrossRef endpoints (for proxies and tests).
	DepositURL string `mapstructure:"deposit_url" yaml:"deposit_url,omitempty"`
	StatusURL  string `mapstructure:"status_url" yaml:"status_url,omitempty"`
}

// Credentials returns the account settings passed to every client call.
func (t TenantConfig) Credentials() domain.Credentials {
	return domain.Credentials{Username: t.Username, Password: t.Password, TestMode: t.TestMode}
}

// Endpoints returns the CrossRef URLs for the tenant's mode, with overrides applied.
func (t TenantConfig) Endpoints() client.Endpoints {
	ep := client.EndpointsFor(t.TestMode)
	if t.DepositURL != "" {
		ep.Deposit = t.DepositURL
	}
	if t.StatusURL != "" {
		ep.Status = t.StatusURL
	}
	return ep
}

// Identifier returns the DOI settings for the identifier generator.
func (t TenantConfig) Identifier() identifier.Tenant {
	return identifier.Tenant{Prefix: t.DOIPrefix, JournalPath: t.JournalPath, SuffixPattern: t.SuffixPattern}
}

// Deployment returns the journal settings for the XML filters. The registrant
// defaults to the depositor name.
func (t TenantConfig) Deployment(doi func(*domain.Object) string) xmlexport.Deployment {
	registrant := t.Registrant
	if registrant == "" {
		registrant = t.DepositorName
	}
	return xmlexport.Deployment{
		JournalTitle:   t.JournalTitle,
		JournalAbbrev:  t.JournalAbbrev,
		ISSN:           t.ISSN,
		DepositorName:  t.DepositorName,
		DepositorEmail: t.DepositorEmail,
		Registrant:     registrant,
		DOI:            doi,
	}
}

// ServeConfig holds the interactive HTTP surface settings.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Identifiers returns the DOI settings of every tenant keyed by context id.
func (c Config) Identifiers() map[string]identifier.Tenant {
	out := make(map[string]identifier.Tenant, len(c.Tenants))
	for id, t := range c.Tenants {
		out[id] = t.Identifier()
	}
	return out
}

// Tenant returns the settings for a context.
func (c Config) Tenant(contextID string) (TenantConfig, bool) {
	t, ok := c.Tenants[contextID]
	return t, ok
}

// ContextIDs returns the configured context ids, sorted.
func (c Config) ContextIDs() []string {
	ids := make([]string, 0, len(c.Tenants))
	for id := range c.Tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveContext picks the context for a run: the explicit one, then the configured
// default, then the only tenant if exactly one is configured.
func (c Config) ResolveContext(explicit string) (string, error) {
	switch {
	case explicit != "":
		if _, ok := c.Tenants[explicit]; !ok {
			return "", fmt.Errorf("unknown context %q", explicit)
		}
		return explicit, nil
	case c.DefaultContext != "":
		return c.DefaultContext, nil
	case len(c.Tenants) == 1:
		return c.ContextIDs()[0], nil
	default:
		return "", fmt.Errorf("no context given and no default_context configured (have: %s)",
			strings.Join(c.ContextIDs(), ", "))
	}
}

// DefaultDataDir returns ~/.local/share/doideposit or empty string if home dir unavailable.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "doideposit")
}

// DefaultDatabasePath returns the default SQLite database location.
func DefaultDatabasePath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return "doideposit.db"
	}
	return filepath.Join(dir, "doideposit.db")
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/doideposit/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "doideposit", "traces", "traces.jsonl")
}

// Validate checks the whole configuration.
func Validate(c Config) error {
	if c.StatusCacheTTL < 0 {
		return fmt.Errorf("status_cache_ttl must not be negative, got %s", c.StatusCacheTTL)
	}
	if c.DefaultContext != "" {
		if _, ok := c.Tenants[c.DefaultContext]; !ok {
			return fmt.Errorf("default_context %q has no tenants entry", c.DefaultContext)
		}
	}
	if err := ValidateHTTP(c.HTTP); err != nil {
		return err
	}
	for _, id := range c.ContextIDs() {
		if err := ValidateTenant(id, c.Tenants[id]); err != nil {
			return err
		}
	}
	return ValidateTracing(c.Tracing)
}

// ValidateHTTP checks the transport timeouts. Zero values use client defaults.
func ValidateHTTP(h HTTPConfig) error {
	if h.Timeout < 0 || h.DialTimeout < 0 || h.ResponseHeaderTimeout < 0 {
		return fmt.Errorf("http timeouts must not be negative")
	}
	if h.Timeout > 0 && h.ResponseHeaderTimeout > h.Timeout {
		return fmt.Errorf("http.response_header_timeout (%s) exceeds http.timeout (%s)", h.ResponseHeaderTimeout, h.Timeout)
	}
	return nil
}

// ValidateTenant checks one tenant's settings.
func ValidateTenant(contextID string, t TenantConfig) error {
	if t.Username == "" {
		return fmt.Errorf("tenants.%s.username is required", contextID)
	}
	if t.DOIPrefix == "" {
		return fmt.Errorf("tenants.%s.doi_prefix is required", contextID)
	}
	if !strings.HasPrefix(t.DOIPrefix, "10.") || strings.Contains(t.DOIPrefix, "/") {
		return fmt.Errorf("tenants.%s.doi_prefix must look like \"10.1234\", got %q", contextID, t.DOIPrefix)
	}
	if t.JournalTitle == "" {
		return fmt.Errorf("tenants.%s.journal_title is required", contextID)
	}
	if t.DepositorEmail != "" && !strings.Contains(t.DepositorEmail, "@") {
		return fmt.Errorf("tenants.%s.depositor_email is not an email address: %q", contextID, t.DepositorEmail)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing tracing.Config) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()
	return Config{
		DatabasePath:   DefaultDatabasePath(),
		ExportDir:      "", // system temp dir
		StatusCacheTTL: 5 * time.Minute,
		HTTP: HTTPConfig{
			Timeout:               60 * time.Second,
			DialTimeout:           10 * time.Second,
			ResponseHeaderTimeout: 45 * time.Second,
		},
		Tenants: map[string]TenantConfig{},
		Serve:   ServeConfig{Addr: "127.0.0.1:8080"},
		Tracing: tr,
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return templates.ConfigYAML()
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
