// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/persistence"
)

var (
	genKeyID string
	genForce bool
)

var generateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a new secp256k1 identity key pair",
	Long: `Generate a new secp256k1 signing/ECDH identity key pair and store it,
AES-256-GCM-encrypted, under the configured identity keystore directory.

The passphrase is read from the environment variable named by
identity.passphrase_env (default KKTP_IDENTITY_PASSPHRASE).`,
	Example: `  # Generate the default "default" identity
  KKTP_IDENTITY_PASSPHRASE=hunter2 kktpctl generate-key

  # Generate a named identity, refusing to overwrite an existing one
  KKTP_IDENTITY_PASSPHRASE=hunter2 kktpctl generate-key --id alice`,
	RunE: runGenerateKey,
}

func init() {
	rootCmd.AddCommand(generateKeyCmd)
	generateKeyCmd.Flags().StringVar(&genKeyID, "id", "default", "identity key id")
	generateKeyCmd.Flags().BoolVar(&genForce, "force", false, "overwrite an existing identity with the same id")
}

func runGenerateKey(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	passphrase := os.Getenv(cfg.Identity.PassphraseEnv)
	if passphrase == "" {
		return fmt.Errorf("environment variable %s is unset or empty", cfg.Identity.PassphraseEnv)
	}

	vault, err := persistence.NewFileVault(cfg.Identity.KeystoreDir, passphrase)
	if err != nil {
		return fmt.Errorf("open keystore: %w", err)
	}

	ctx := context.Background()
	if !genForce {
		if _, err := vault.Get(ctx, genKeyID); err == nil {
			return fmt.Errorf("identity %q already exists in %s (use --force to overwrite)", genKeyID, cfg.Identity.KeystoreDir)
		} else if err != persistence.ErrNotFound {
			return fmt.Errorf("check existing identity: %w", err)
		}
	}

	kp, err := keys.Generate()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	if err := vault.Put(ctx, genKeyID, kp.Private.Serialize()); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}

	fmt.Printf("Identity generated:\n")
	fmt.Printf("  ID:         %s\n", genKeyID)
	fmt.Printf("  Public key: %s\n", kp.PublicHex())
	fmt.Printf("  Keystore:   %s\n", cfg.Identity.KeystoreDir)
	return nil
}
