// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kktp-network/kktp/config"
	"github.com/kktp-network/kktp/persistence"
	"github.com/kktp-network/kktp/persistence/postgres"
)

var dumpResumeCmd = &cobra.Command{
	Use:   "dump-resume [sid]",
	Short: "Print a persisted resume record as JSON",
	Long: `Opens the configured persistence backend (file vault or Postgres)
and prints the decrypted resume record for sid, or the most recently
written record if sid is omitted or "latest".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDumpResume,
}

func init() {
	rootCmd.AddCommand(dumpResumeCmd)
}

func runDumpResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sid := "latest"
	if len(args) == 1 {
		sid = args[0]
	}

	store, closeFn, err := openStore(cfg.Persistence)
	if err != nil {
		return err
	}
	defer closeFn()

	mgr := persistence.NewManager(store, "")
	ctx := context.Background()

	var rec *persistence.Record
	if sid == "latest" {
		rec, err = mgr.LoadLatest(ctx)
	} else {
		rec, err = mgr.Load(ctx, sid)
	}
	if err != nil {
		return fmt.Errorf("load resume record: %w", err)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// openStore builds a persistence.Store from the configured backend and
// returns a no-op closer for backends (file vault) that hold nothing to
// release.
func openStore(cfg *config.PersistenceConfig) (persistence.Store, func(), error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.Postgres == nil {
			return nil, nil, fmt.Errorf("persistence.backend is postgres but persistence.postgres is unset")
		}
		pgCfg := &postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}
		store, err := postgres.NewStore(context.Background(), pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, store.Close, nil
	default:
		passphrase := os.Getenv("KKTP_PERSISTENCE_PASSPHRASE")
		vault, err := persistence.NewFileVault(cfg.FileDir, passphrase)
		if err != nil {
			return nil, nil, fmt.Errorf("open file vault: %w", err)
		}
		return vault, func() {}, nil
	}
}
