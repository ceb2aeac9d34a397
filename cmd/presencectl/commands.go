package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"axiapac.com/presence/presence/app"
	"axiapac.com/presence/presence/report"
	"axiapac.com/presence/presence/roster"
	"axiapac.com/presence/security"
	"axiapac.com/presence/utils"
	"github.com/spf13/cobra"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the presence tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[INFO] migrated schema %s\n", a.Config.DBSchema)
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep [name|all]",
		Short: "Run one absence/reconciliation sweep, or all of them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAt(at)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if args[0] == "all" {
				reports, err := a.Engine.RunAll(cmd.Context(), now)
				if len(reports) > 0 {
					if perr := printJSON(cmd, reports); perr != nil {
						return perr
					}
				}
				return err
			}
			report, err := a.Engine.Run(cmd.Context(), args[0], now)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this time, RFC3339 or local YYYY-MM-DD HH:MM:SS (default now)")
	return cmd
}

func parseAt(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	t, err := utils.ParseTime(at, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", at, err)
	}
	return t, nil
}

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Presence sampling",
	}
	var wait bool
	tick := &cobra.Command{
		Use:   "tick",
		Short: "Schedule probes for due shifts, optionally waiting to dispatch them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			scheduled, err := a.Sampler.Tick(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[INFO] scheduled %d probes\n", scheduled)
			if !wait {
				return nil
			}

			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for a.Sampler.Pending() > 0 {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-ticker.C:
					sent := a.Sampler.Dispatch(cmd.Context(), time.Now())
					fmt.Fprintf(cmd.OutOrStdout(), "[INFO] dispatched %d, %d pending\n", sent, a.Sampler.Pending())
				}
			}
			return nil
		},
	}
	tick.Flags().BoolVar(&wait, "wait", false, "stay running until every probe is dispatched")
	cmd.AddCommand(tick)
	return cmd
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Attendance reports",
	}
	var date, out string
	var toS3 bool
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Write the daily shift workbook to a file or the report bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" && !toS3 {
				return fmt.Errorf("one of --out or --s3 is required")
			}
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			loc := a.Config.Location()
			day := time.Now().In(loc).AddDate(0, 0, -1)
			if date != "" {
				if day, err = time.ParseInLocation(time.DateOnly, date, loc); err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
			}

			if toS3 {
				return a.ReportToBucket(cmd.Context(), day)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := a.Report.Write(cmd.Context(), day, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[INFO] wrote %s (%s)\n", out, report.Key(day))
			return nil
		},
	}
	daily.Flags().StringVar(&date, "date", "", "report day as YYYY-MM-DD (default yesterday)")
	daily.Flags().StringVar(&out, "out", "", "output .xlsx path")
	daily.Flags().BoolVar(&toS3, "s3", false, "upload to REPORT_BUCKET")

	list := &cobra.Command{
		Use:   "list",
		Short: "List daily reports in the report bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Bucket == nil {
				return fmt.Errorf("REPORT_BUCKET is not configured")
			}
			keys, err := a.Bucket.ListFiles(cmd.Context(), report.KeyPrefix)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
	cmd.AddCommand(daily, list)
	return cmd
}

func newPoliciesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "GPS check policies",
	}
	var file string
	var dryRun bool
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Insert or replace policies from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			policies, err := app.DecodePolicies(f)
			if err != nil {
				return err
			}
			if dryRun {
				return printJSON(cmd, policies)
			}

			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Store.UpsertPolicies(cmd.Context(), policies); err != nil {
				return fmt.Errorf("failed to save policies: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[INFO] saved %d policies\n", len(policies))
			return nil
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "", "policy YAML file")
	seed.Flags().BoolVar(&dryRun, "dry-run", false, "print the decoded policies without saving")
	_ = seed.MarkFlagRequired("file")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print stored policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			policies, err := a.Store.ListPolicies(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, policies)
		},
	}
	cmd.AddCommand(seed, list)
	return cmd
}

// newTokenCmd mints an identity token signed with JWT_SECRET, for testing
// the API and for service callers.
func newTokenCmd() *cobra.Command {
	var id security.Identity
	var expiresIn time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed identity token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := security.DecodeSecret(os.Getenv("JWT_SECRET"))
			if err != nil {
				return err
			}
			if id.Name == "" {
				id.Name = id.Subject
			}
			token, err := security.CreateIdentityToken(&id, secret, expiresIn)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Subject, "subject", "", "employee id or service name")
	cmd.Flags().StringVar(&id.Name, "name", "", "display name")
	cmd.Flags().StringVar(&id.Role, "role", "", "role: admin, service or empty for an employee")
	cmd.Flags().StringVar(&id.Provider, "provider", "local", "identity provider")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newShiftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shifts",
		Short: "Scheduled shifts",
	}
	var file string
	var dryRun bool
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Create scheduled shifts from a roster CSV",
		Long:  "Columns: employee_id,date,start,end[,type,verification,rounds]. Shifts that already exist are skipped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			if dryRun {
				shifts, err := roster.Parse(f, time.Local)
				if err != nil {
					return err
				}
				return printJSON(cmd, shifts)
			}

			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := roster.NewImporter(a.Store, a.Logger).ImportCSV(cmd.Context(), f, a.Config.Location())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "roster CSV file")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and print the shifts without saving")
	_ = importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)
	return cmd
}

func newDatabasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the schemas on the database server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			names, err := a.DM.GetAllDatabases(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
