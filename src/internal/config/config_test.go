package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "tracker.yaml", `
database_url: postgres://localhost/readtrack
port: "9000"
log_level: debug
seed_file: seed.yaml
oidc:
  provider_url: https://id.example.com
  client_id: readtrack
`)
	var cfg TrackerConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "postgres://localhost/readtrack", cfg.DatabaseURL)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "seed.yaml", cfg.SeedFile)
	assert.Equal(t, "https://id.example.com", cfg.OIDC.ProviderURL)
	assert.Equal(t, "readtrack", cfg.OIDC.ClientID)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "tracker.json", `{"port": "8100", "oidc": {"client_id": "abc"}}`)
	var cfg TrackerConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "8100", cfg.Port)
	assert.Equal(t, "abc", cfg.OIDC.ClientID)
}

func TestLoad_Errors(t *testing.T) {
	var cfg TrackerConfig
	err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	assert.ErrorContains(t, err, "failed to open config file")

	path := writeFile(t, "broken.yml", "port: [unclosed")
	err = Load(path, &cfg)
	assert.ErrorContains(t, err, "failed to decode YAML")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := TrackerConfig{DatabaseURL: "postgres://file/db", LogLevel: "info"}
	cfg.ApplyEnv()

	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}
