// cmd/main.go is the application entry point.
// It wires together all layers behind a small CLI: serve, migrate, seed and
// genid.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/telemetry"
)

const appName = "sled-race-registration"

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Sled dog race registration service",
		Long: `Registration backend for the fall and winter sled dog events.

It serves the event catalog, takes paid race registrations through Stripe,
stores them in PostgreSQL or SQLite and emails confirmations via Resend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return telemetry.SetupLogger(os.Stderr, envOr(flags.logLevel, "LOG_LEVEL", "info"),
				envOr(flags.logFormat, "LOG_FORMAT", "json"))
		},
	}

	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (json, text); overrides LOG_FORMAT")

	cmd.AddCommand(serveCmd(), migrateCmd(), seedCmd(), genidCmd())
	return cmd
}

// envOr prefers an explicit flag value, then the environment, then def.
func envOr(flag, key, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
