// SPDX-License-Identifier: LGPL-3.0-or-later

// Command kktpctl is the KKTP operator CLI: identity management, anchor
// and resume-record inspection, and a local handshake simulator,
// grounded on the teacher's cmd/sage-crypto root-command-plus-per-
// subcommand-file layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kktpctl",
	Short: "KKTP operator CLI",
	Long: `kktpctl manages KKTP node identities and inspects protocol state.

This tool supports:
- Identity key pair generation and encrypted storage
- Canonical-JSON validation and inspection of wire anchors
- Dumping persisted resume records
- Simulating a full discovery/response/handshake exchange locally`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: layered config.Load lookup)")

	// Commands are registered in their respective files:
	// - generate_key.go:      generateKeyCmd
	// - inspect_anchor.go:    inspectAnchorCmd
	// - dump_resume.go:       dumpResumeCmd
	// - simulate_handshake.go: simulateHandshakeCmd
}
