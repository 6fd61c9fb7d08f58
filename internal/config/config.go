// Package config provides configuration types and defaults for the platform
// service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bookverse/platform/internal/auth"
	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/tracing"
)

// RegistryConfig holds the Trust Registry connection settings.
type RegistryConfig struct {
	// BaseURL is the registry API root, e.g.
	// https://company.jfrog.io/apptrust/api/v1. When empty it is derived
	// from the JFROG_URL environment variable.
	BaseURL string `mapstructure:"base_url"`

	// Token is the bearer credential. When empty it is read from
	// APPTRUST_ACCESS_TOKEN, then JF_OIDC_TOKEN.
	Token string `mapstructure:"token"`

	// TimeoutSeconds bounds each registry request.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (r RegistryConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ServerConfig holds the webhook server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// AggregationConfig holds the platform aggregation settings.
type AggregationConfig struct {
	// ServicesPath is the services.yaml listing aggregated services.
	ServicesPath string `mapstructure:"services_path"`

	// OutputDir receives generated platform-<version>.yaml manifests.
	OutputDir string `mapstructure:"output_dir"`

	// SourceStage is the stage versions are aggregated from.
	SourceStage string `mapstructure:"source_stage"`

	// PlatformApp is the aggregate application key in the registry.
	PlatformApp string `mapstructure:"platform_app"`

	// VersionMapPath seeds the first platform version when the registry
	// has none.
	VersionMapPath string `mapstructure:"version_map_path"`
}

// Config holds all configuration options for the platform service.
type Config struct {
	Debug       bool              `mapstructure:"debug"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Auth        auth.Config       `mapstructure:"auth"`
	Tracing     tracing.Config    `mapstructure:"tracing"`
	Server      ServerConfig      `mapstructure:"server"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Registry: RegistryConfig{
			TimeoutSeconds: 30,
		},
		Auth: auth.Config{
			Enabled:   true,
			Authority: "https://dev-auth.bookverse.com",
			Audience:  "bookverse:api",
			Algorithm: "RS256",
		},
		Tracing: tracing.DefaultConfig(),
		Server: ServerConfig{
			Addr: "localhost:8080",
		},
		Aggregation: AggregationConfig{
			ServicesPath: "config/services.yaml",
			OutputDir:    "manifests",
			SourceStage:  "PROD",
			PlatformApp:  "bookverse-platform",
		},
	}
}

// ResolveRegistry fills registry settings from the environment where the
// config file left them empty, matching the CI conventions: base URL from
// APPTRUST_BASE_URL or JFROG_URL, token from APPTRUST_ACCESS_TOKEN or
// JF_OIDC_TOKEN.
func (c *Config) ResolveRegistry() {
	if c.Registry.BaseURL == "" {
		c.Registry.BaseURL = strings.TrimSpace(os.Getenv("APPTRUST_BASE_URL"))
	}
	if c.Registry.BaseURL == "" {
		if jfrogURL := strings.TrimSpace(os.Getenv("JFROG_URL")); jfrogURL != "" {
			c.Registry.BaseURL = strings.TrimRight(jfrogURL, "/") + "/apptrust/api/v1"
		}
	}
	if c.Registry.Token == "" {
		c.Registry.Token = strings.TrimSpace(os.Getenv("APPTRUST_ACCESS_TOKEN"))
	}
	if c.Registry.Token == "" {
		c.Registry.Token = strings.TrimSpace(os.Getenv("JF_OIDC_TOKEN"))
	}
}

// ValidateRegistry checks that registry operations can be attempted.
func ValidateRegistry(r RegistryConfig) error {
	if r.BaseURL == "" {
		return fmt.Errorf("registry.base_url is required (or set JFROG_URL)")
	}
	if r.Token == "" {
		return fmt.Errorf("registry.token is required (or set APPTRUST_ACCESS_TOKEN)")
	}
	if r.TimeoutSeconds < 0 {
		return fmt.Errorf("registry.timeout_seconds must not be negative")
	}
	return nil
}

// ValidateTracing checks the tracing configuration.
func ValidateTracing(t tracing.Config) error {
	switch t.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be one of none, file, stdout, otlp")
	}
	if t.Exporter == "file" && t.Enabled && t.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required for the file exporter")
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}
	return nil
}

// Validate checks the full configuration, registry settings excluded; those
// are validated by the commands that talk to the registry.
func Validate(c Config) error {
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Aggregation.SourceStage == "" {
		return fmt.Errorf("aggregation.source_stage is required")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with
// comments.
func DefaultConfigTemplate() string {
	return `# BookVerse Platform Configuration

# Trust Registry connection.
# base_url and token may also come from the environment:
#   APPTRUST_BASE_URL (or JFROG_URL, from which the API root is derived)
#   APPTRUST_ACCESS_TOKEN (or JF_OIDC_TOKEN)
registry:
  # base_url: https://company.jfrog.io/apptrust/api/v1
  # token: ""
  timeout_seconds: 30

# Authentication for the webhook server.
auth:
  enabled: true
  development_mode: false   # true bypasses token validation (demo user)
  authority: https://dev-auth.bookverse.com
  audience: bookverse:api
  algorithm: RS256

# Webhook server.
server:
  addr: localhost:8080

# Platform aggregation.
aggregation:
  services_path: config/services.yaml
  output_dir: manifests
  source_stage: PROD
  platform_app: bookverse-platform
  # version_map_path: config/version-map.yaml

# Distributed tracing (OpenTelemetry).
tracing:
  enabled: false
  exporter: stdout          # none, file, stdout, otlp
  # file_path: traces/traces.jsonl
  # otlp_endpoint: jaeger.internal:4317
  sample_rate: 1.0
  service_name: bookverse-platform
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
