package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookverse/platform/internal/tracing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, 30, cfg.Registry.TimeoutSeconds)
	require.Equal(t, "bookverse:api", cfg.Auth.Audience)
	require.Equal(t, "PROD", cfg.Aggregation.SourceStage)
	require.NoError(t, Validate(cfg))
}

func TestResolveRegistry(t *testing.T) {
	t.Run("explicit config wins", func(t *testing.T) {
		t.Setenv("JFROG_URL", "https://env.jfrog.io")
		t.Setenv("APPTRUST_ACCESS_TOKEN", "env-token")

		cfg := Defaults()
		cfg.Registry.BaseURL = "https://explicit.example.com/api/v1"
		cfg.Registry.Token = "explicit-token"
		cfg.ResolveRegistry()

		require.Equal(t, "https://explicit.example.com/api/v1", cfg.Registry.BaseURL)
		require.Equal(t, "explicit-token", cfg.Registry.Token)
	})

	t.Run("derives base URL from JFROG_URL", func(t *testing.T) {
		t.Setenv("APPTRUST_BASE_URL", "")
		t.Setenv("JFROG_URL", "https://company.jfrog.io/")
		t.Setenv("APPTRUST_ACCESS_TOKEN", "")
		t.Setenv("JF_OIDC_TOKEN", "oidc-token")

		cfg := Defaults()
		cfg.ResolveRegistry()

		require.Equal(t, "https://company.jfrog.io/apptrust/api/v1", cfg.Registry.BaseURL)
		require.Equal(t, "oidc-token", cfg.Registry.Token)
	})
}

func TestValidateRegistry(t *testing.T) {
	require.Error(t, ValidateRegistry(RegistryConfig{}))
	require.Error(t, ValidateRegistry(RegistryConfig{BaseURL: "https://x"}))
	require.NoError(t, ValidateRegistry(RegistryConfig{BaseURL: "https://x", Token: "t", TimeoutSeconds: 30}))
}

func TestValidateTracing(t *testing.T) {
	require.NoError(t, ValidateTracing(tracing.DefaultConfig()))
	require.Error(t, ValidateTracing(tracing.Config{Exporter: "carrier-pigeon"}))
	require.Error(t, ValidateTracing(tracing.Config{Enabled: true, Exporter: "file"}))
	require.Error(t, ValidateTracing(tracing.Config{Exporter: "stdout", SampleRate: 2}))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".platform", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "registry:")
	require.Contains(t, string(raw), "aggregation:")
}
