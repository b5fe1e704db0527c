package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPort = "8097"

// TrackerConfig holds configuration for the Tracker API service
type TrackerConfig struct {
	DatabaseURL string     `json:"database_url" yaml:"database_url"` // empty runs the in-memory adapters
	Port        string     `json:"port" yaml:"port"`
	LogLevel    string     `json:"log_level" yaml:"log_level"`
	SeedFile    string     `json:"seed_file" yaml:"seed_file"`
	OIDC        OIDCConfig `json:"oidc" yaml:"oidc"`
}

type OIDCConfig struct {
	ProviderURL  string `json:"provider_url" yaml:"provider_url"`
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	RedirectURL  string `json:"redirect_url" yaml:"redirect_url"`
}

// ApplyEnv overrides file values with DATABASE_URL, PORT and LOG_LEVEL when set,
// then fills defaults.
func (c *TrackerConfig) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if c.Port == "" {
		c.Port = DefaultPort
	}
}

// Load loads the configuration from a file (YAML or JSON)
func Load(path string, cfg interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config file %s: %w", path, err)
		}
	} else {
		// Default to JSON for compatibility or other extensions
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config file %s: %w", path, err)
		}
	}

	return nil
}
