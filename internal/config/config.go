// Package config provides configuration loading and structs for the CaseFlow server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	OCR      OCRConfig      `yaml:"ocr"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Download DownloadConfig `yaml:"download"`
	Watch    WatchConfig    `yaml:"watch"`
	Auth     AuthConfig     `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, case data, and the search index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	DataDir         string `yaml:"data_dir"`
	SearchIndexPath string `yaml:"search_index_path"`
}

// OCRConfig holds settings for the external text-extraction service.
// With an empty APIKey, parsing falls back to local extraction of
// embedded-text PDFs.
type OCRConfig struct {
	APIKey         string `yaml:"api_key"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PipelineConfig holds generation settings for the document pipeline.
type PipelineConfig struct {
	PageCharLimit int    `yaml:"page_char_limit"`
	RulesPath     string `yaml:"rules_path"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
}

// DownloadConfig holds settings for signed direct-download links.
type DownloadConfig struct {
	Secret         string `yaml:"secret"`
	LinkTTLSeconds int    `yaml:"link_ttl_seconds"`
}

// WatchConfig holds uploads-directory watch settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AuthConfig maps bearer tokens to officers. Tokens are request-scoped
// credentials; there is no session state.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig binds one bearer token to one officer.
type TokenConfig struct {
	Token     string `yaml:"token"`
	OfficerID string `yaml:"officer_id"`
	Name      string `yaml:"name"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.SearchIndexPath = expandPath(cfg.Storage.SearchIndexPath, configDir)
	if cfg.Pipeline.RulesPath != "" {
		cfg.Pipeline.RulesPath = expandPath(cfg.Pipeline.RulesPath, configDir)
	}

	return &cfg, nil
}

// OfficerForToken returns the officer bound to the given bearer token,
// or ok=false when the token is unknown.
func (c *Config) OfficerForToken(token string) (TokenConfig, bool) {
	if token == "" {
		return TokenConfig{}, false
	}
	for _, t := range c.Auth.Tokens {
		if t.Token == token {
			return t, true
		}
	}
	return TokenConfig{}, false
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
