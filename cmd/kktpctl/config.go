// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/kktp-network/kktp/config"
)

// loadConfig loads node configuration from --config if given, or via
// config.Load's normal environment-specific lookup otherwise.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Load()
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", configPath, err)
	}
	config.SubstituteEnvVarsInConfig(cfg)
	return cfg, nil
}
