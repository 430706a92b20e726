package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var date, from, to string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fetch results and settle tips for a date or a date range",
		Example: `  tipwatch reconcile --date 2025-11-18
  tipwatch reconcile --from 2025-11-01 --to 2025-11-18`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if date != "" && (from != "" || to != "") {
				return fmt.Errorf("use either --date or --from/--to")
			}
			if err := openRepositories(ctx); err != nil {
				return err
			}
			if err := openFeeds(ctx); err != nil {
				return err
			}
			if len(feeds.Results) == 0 {
				appLog.Warn("No result feeds are enabled; only stored results will be used")
			}
			reconciler := newReconciler()

			if from == "" && to == "" {
				day, err := parseDate(date)
				if err != nil {
					return err
				}
				if day.IsZero() {
					day = today()
				}
				report, err := reconciler.ReconcileDate(ctx, day)
				if report != nil {
					if perr := printJSON(report); perr != nil {
						return perr
					}
				}
				return err
			}

			start, err := parseDate(from)
			if err != nil {
				return err
			}
			end, err := parseDate(to)
			if err != nil {
				return err
			}
			if start.IsZero() || end.IsZero() {
				return fmt.Errorf("--from and --to must be given together")
			}
			report, err := reconciler.ReconcileRange(ctx, start, end)
			if report != nil {
				if perr := printJSON(report); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Racing date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&from, "from", "", "First date of a range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date of a range (YYYY-MM-DD)")
	return cmd
}
