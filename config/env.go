// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values, leaving unmatched variables as their default (or
// empty if none was given).
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SubstituteEnvVarsInConfig walks every string field that plausibly
// carries a ${VAR} placeholder (addresses, directories, DSNs) and
// substitutes it in place.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Identity != nil {
		cfg.Identity.KeystoreDir = SubstituteEnvVars(cfg.Identity.KeystoreDir)
	}

	if cfg.Transport != nil {
		cfg.Transport.ListenAddr = SubstituteEnvVars(cfg.Transport.ListenAddr)
		cfg.Transport.DialURL = SubstituteEnvVars(cfg.Transport.DialURL)
	}

	if cfg.Persistence != nil {
		cfg.Persistence.FileDir = SubstituteEnvVars(cfg.Persistence.FileDir)
		if pg := cfg.Persistence.Postgres; pg != nil {
			pg.Host = SubstituteEnvVars(pg.Host)
			pg.User = SubstituteEnvVars(pg.User)
			pg.Password = SubstituteEnvVars(pg.Password)
			pg.Database = SubstituteEnvVars(pg.Database)
		}
	}

	if cfg.Logging != nil {
		cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
		cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
		cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)
	}

	if cfg.Metrics != nil {
		cfg.Metrics.Addr = SubstituteEnvVars(cfg.Metrics.Addr)
		cfg.Metrics.Path = SubstituteEnvVars(cfg.Metrics.Path)
	}
}

// GetEnvironment returns the deployment environment from KKTP_ENV, then
// ENVIRONMENT, defaulting to "development".
func GetEnvironment() string {
	env := os.Getenv("KKTP_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether GetEnvironment is "production".
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment reports whether GetEnvironment is "development" or "local".
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
