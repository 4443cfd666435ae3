// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads and validates KKTP node configuration from a
// YAML or JSON file, layered with environment variable substitution and
// overrides, grounded on the teacher's config package (config.go,
// env.go, loader.go).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kktp-network/kktp/handover"
	"github.com/kktp-network/kktp/lobby"
)

// Config is the top-level KKTP node configuration.
type Config struct {
	Environment string             `yaml:"environment" json:"environment"`
	Identity    *IdentityConfig    `yaml:"identity" json:"identity"`
	Transport   *TransportConfig   `yaml:"transport" json:"transport"`
	Handshake   *HandshakeConfig   `yaml:"handshake" json:"handshake"`
	Handover    *HandoverConfig    `yaml:"handover" json:"handover"`
	Lobby       *LobbyConfig       `yaml:"lobby" json:"lobby"`
	Persistence *PersistenceConfig `yaml:"persistence" json:"persistence"`
	Logging     *LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig     `yaml:"metrics" json:"metrics"`
}

// IdentityConfig locates the node's secp256k1 signing/ECDH identity.
type IdentityConfig struct {
	// KeystoreDir holds the encrypted identity blob (persistence.FileVault
	// layout). It is used whether or not SeedEnv is set.
	KeystoreDir   string `yaml:"keystore_dir" json:"keystore_dir"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
	// SeedEnv names an environment variable holding a hex seed. It is
	// loaded with the rest of the configuration, but no code in this
	// module reads it or derives an identity from it.
	SeedEnv string `yaml:"seed_env" json:"seed_env"`
}

// TransportConfig selects and configures the carrier network.
type TransportConfig struct {
	// Kind is "memdag" (in-process, single binary, tests/demos) or
	// "wsrelay" (transport/wsrelay, real peer-to-peer over a relay).
	Kind       string `yaml:"kind" json:"kind"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	DialURL    string `yaml:"dial_url" json:"dial_url"`
}

// HandshakeConfig toggles optional handshake bindings.
type HandshakeConfig struct {
	// VRFEnabled is loaded with the rest of the configuration, but no code
	// in this module reads it; callers of handshake.NewEngine pass a
	// VRFVerifier (or nil) themselves.
	VRFEnabled bool `yaml:"vrf_enabled" json:"vrf_enabled"`
}

// HandoverConfig configures the sovereign-resume scan.
type HandoverConfig struct {
	ScanBudgetSeconds float64 `yaml:"scan_budget_seconds" json:"scan_budget_seconds"`
}

// LobbyConfig configures group-chat hosting.
type LobbyConfig struct {
	RotationInterval time.Duration `yaml:"rotation_interval" json:"rotation_interval"`
	MaxMembers       int           `yaml:"max_members" json:"max_members"`
}

// PersistenceConfig selects and configures the resume-record store.
type PersistenceConfig struct {
	// Backend is "file" (persistence.FileVault) or "postgres"
	// (persistence/postgres.Store).
	Backend  string          `yaml:"backend" json:"backend"`
	FileDir  string          `yaml:"file_dir" json:"file_dir"`
	Postgres *PostgresConfig `yaml:"postgres" json:"postgres"`
}

// PostgresConfig mirrors persistence/postgres.Config for file-based
// loading; the loader copies it into that package's own type rather
// than importing it back, keeping config free of a driver dependency
// on the pgx-backed store it merely describes.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the internal/metrics HTTP exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile reads a config file, trying YAML then JSON, and applies
// defaults to whatever sections are present.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg as YAML, or JSON if path ends in ".json".
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// setDefaults fills zero-valued fields of sections that are present.
// A nil section stays nil; callers that require a section should check
// for it explicitly (mirrors the teacher's config.go, where an absent
// section opts out of the subsystem rather than getting a silent
// default one).
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Identity and Persistence are never truly optional (every node needs
	// an identity and somewhere to put resume records), unlike Lobby or
	// Metrics, so they default into existence instead of staying nil.
	if cfg.Identity == nil {
		cfg.Identity = &IdentityConfig{}
	}
	if cfg.Identity.KeystoreDir == "" {
		cfg.Identity.KeystoreDir = ".kktp/identity"
	}
	if cfg.Identity.PassphraseEnv == "" {
		cfg.Identity.PassphraseEnv = "KKTP_IDENTITY_PASSPHRASE"
	}

	if cfg.Transport != nil {
		if cfg.Transport.Kind == "" {
			cfg.Transport.Kind = "memdag"
		}
	}

	if cfg.Handover != nil {
		if cfg.Handover.ScanBudgetSeconds == 0 {
			cfg.Handover.ScanBudgetSeconds = handover.DefaultMaxSeconds
		}
	}

	if cfg.Lobby != nil {
		if cfg.Lobby.RotationInterval == 0 {
			cfg.Lobby.RotationInterval = lobby.DefaultRotationInterval
		}
		if cfg.Lobby.MaxMembers == 0 {
			cfg.Lobby.MaxMembers = 64
		}
	}

	if cfg.Persistence == nil {
		cfg.Persistence = &PersistenceConfig{}
	}
	if cfg.Persistence.Backend == "" {
		cfg.Persistence.Backend = "file"
	}
	if cfg.Persistence.FileDir == "" {
		cfg.Persistence.FileDir = ".kktp/sessions"
	}
	if cfg.Persistence.Postgres != nil && cfg.Persistence.Postgres.SSLMode == "" {
		cfg.Persistence.Postgres.SSLMode = "disable"
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}

	if cfg.Metrics != nil {
		if cfg.Metrics.Addr == "" {
			cfg.Metrics.Addr = ":9090"
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}
}
