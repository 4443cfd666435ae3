// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kktp.yaml")
	contents := `
environment: staging
transport:
  kind: wsrelay
  listen_addr: "0.0.0.0:7600"
lobby:
  max_members: 10
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want staging", cfg.Environment)
	}
	if cfg.Transport.Kind != "wsrelay" || cfg.Transport.ListenAddr != "0.0.0.0:7600" {
		t.Errorf("Transport = %+v, want kind=wsrelay listen_addr=0.0.0.0:7600", cfg.Transport)
	}
	if cfg.Lobby.MaxMembers != 10 {
		t.Errorf("Lobby.MaxMembers = %d, want 10", cfg.Lobby.MaxMembers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// setDefaults should fill Logging.Format even though the fixture
	// never sets it.
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json (default)", cfg.Logging.Format)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kktp.json")
	contents := `{"environment":"production","metrics":{"enabled":true}}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.Metrics == nil || !cfg.Metrics.Enabled {
		t.Fatalf("Metrics = %+v, want enabled=true", cfg.Metrics)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("Metrics.Addr = %q, want :9090 (default)", cfg.Metrics.Addr)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/kktp.yaml"); err == nil {
		t.Error("LoadFromFile() error = nil, want error for missing file")
	}
}

func TestSetDefaultsLeavesAbsentSectionsNil(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.Transport != nil || cfg.Lobby != nil || cfg.Metrics != nil {
		t.Error("setDefaults populated an absent section; sections opt in by being present")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.yaml")

	original := &Config{
		Environment: "staging",
		Lobby:       &LobbyConfig{MaxMembers: 5},
	}
	if err := SaveToFile(original, path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Lobby.MaxMembers != 5 {
		t.Errorf("Lobby.MaxMembers = %d, want 5", loaded.Lobby.MaxMembers)
	}
}
