package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: ./caseflow.db
  data_dir: ./cases
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults = %s:%d, want localhost:8080", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.OCR.Endpoint == "" {
		t.Error("expected default OCR endpoint")
	}
	if cfg.Pipeline.PageCharLimit != 2000 {
		t.Errorf("PageCharLimit = %d, want 2000", cfg.Pipeline.PageCharLimit)
	}
	if cfg.Pipeline.MaxUploadMB != 20 {
		t.Errorf("MaxUploadMB = %d, want 20", cfg.Pipeline.MaxUploadMB)
	}
	if cfg.Download.LinkTTLSeconds != 600 {
		t.Errorf("LinkTTLSeconds = %d, want 600", cfg.Download.LinkTTLSeconds)
	}
}

func TestLoadExpandsRelativePaths(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: ./caseflow.db
  data_dir: ./cases
  search_index_path: ./index.bleve
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dir := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("DatabasePath not absolute: %s", cfg.Storage.DatabasePath)
	}
	if filepath.Dir(cfg.Storage.DatabasePath) != dir {
		t.Errorf("DatabasePath = %s, want under %s", cfg.Storage.DatabasePath, dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestOfficerForToken(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Tokens: []TokenConfig{
		{Token: "tok-1", OfficerID: "off-1", Name: "Inspector A"},
		{Token: "tok-2", OfficerID: "off-2", Name: "Inspector B"},
	}}}

	officer, ok := cfg.OfficerForToken("tok-2")
	if !ok || officer.OfficerID != "off-2" {
		t.Errorf("OfficerForToken(tok-2) = %v, %v", officer, ok)
	}
	if _, ok := cfg.OfficerForToken("unknown"); ok {
		t.Error("unknown token should not resolve")
	}
	if _, ok := cfg.OfficerForToken(""); ok {
		t.Error("empty token should not resolve")
	}
}
