// Package commands implements the signalctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient is the plain HTTP client used against the daemon's admin
	// surface -- there is no RPC framework here, just GET /api/admin/*.
	httpClient = &http.Client{Timeout: 10 * time.Second}

	// serverAddr is the daemon's base URL (scheme://host:port).
	serverAddr string

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string
)

// rootCmd is the top-level cobra command for signalctl.
var rootCmd = &cobra.Command{
	Use:           "signalctl",
	Short:         "Admin CLI for the signalcore daemon",
	Long:          "signalctl queries the signalcore daemon's read-only admin HTTP surface to inspect live sessions and audit activity.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:4000",
		"signalcore daemon base URL")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
