// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoaderOptions configures Load.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default "config").
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// EnvFile is a dotenv file to load before reading any environment
	// variable (default ".env"; missing file is not an error).
	EnvFile string
	// SkipEnvSubstitution disables ${VAR} substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables ValidateConfiguration.
	SkipValidation bool
}

// DefaultLoaderOptions returns the defaults Load uses absent an override.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir: "config",
		EnvFile:   ".env",
	}
}

// Load loads configuration for the current (or specified) environment,
// layering a file, ${VAR} substitution, and environment variable
// overrides, in that priority order (later layers win).
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.EnvFile != "" {
		// A missing .env is the common case outside local dev; only a
		// malformed one is worth surfacing, and godotenv.Load already
		// treats both as the same error, so it is ignored here too.
		_ = godotenv.Load(options.EnvFile)
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		for _, e := range ValidateConfiguration(cfg) {
			if e.Level == "error" {
				return nil, fmt.Errorf("config: validation failed: %s: %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides applies the highest-priority layer: direct
// environment variables, following the KKTP_ prefix internal/logger
// already established for KKTP_LOG_LEVEL.
func applyEnvironmentOverrides(cfg *Config) {
	if addr := os.Getenv("KKTP_TRANSPORT_LISTEN_ADDR"); addr != "" && cfg.Transport != nil {
		cfg.Transport.ListenAddr = addr
	}
	if url := os.Getenv("KKTP_TRANSPORT_DIAL_URL"); url != "" && cfg.Transport != nil {
		cfg.Transport.DialURL = url
	}

	if dir := os.Getenv("KKTP_IDENTITY_KEYSTORE_DIR"); dir != "" && cfg.Identity != nil {
		cfg.Identity.KeystoreDir = dir
	}

	if dsn := os.Getenv("KKTP_PERSISTENCE_BACKEND"); dsn != "" && cfg.Persistence != nil {
		cfg.Persistence.Backend = dsn
	}

	if level := os.Getenv("KKTP_LOG_LEVEL"); level != "" && cfg.Logging != nil {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("KKTP_LOG_FORMAT"); format != "" && cfg.Logging != nil {
		cfg.Logging.Format = format
	}

	if cfg.Metrics != nil {
		switch os.Getenv("KKTP_METRICS_ENABLED") {
		case "true":
			cfg.Metrics.Enabled = true
		case "false":
			cfg.Metrics.Enabled = false
		}
		if addr := os.Getenv("KKTP_METRICS_ADDR"); addr != "" {
			cfg.Metrics.Addr = addr
		}
	}
}

// LoadForEnvironment loads configuration for a named environment,
// bypassing automatic detection.
func LoadForEnvironment(environment string) (*Config, error) {
	opts := DefaultLoaderOptions()
	opts.Environment = environment
	return Load(opts)
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}
