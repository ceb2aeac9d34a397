// Command presencectl runs maintenance tasks against the presence database.
package main

import (
	"context"
	"fmt"
	"os"

	"axiapac.com/presence/config"
	"axiapac.com/presence/presence/app"
	"github.com/spf13/cobra"
)

var (
	schemaFlag string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "presencectl",
		Short:         "Operate the presence attendance service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&schemaFlag, "schema", "", "database schema (defaults to DB_SCHEMA)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newSampleCmd(),
		newReportCmd(),
		newPoliciesCmd(),
		newShiftsCmd(),
		newDatabasesCmd(),
		newTokenCmd(),
	)
	return root
}

// buildApp loads config and wires the services without the session cache.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if schemaFlag != "" {
		cfg.DBSchema = schemaFlag
	}
	return app.Build(ctx, cfg, cfg.Logger(), app.Options{})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}
