package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent scrape runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListScrapeRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no scrape runs recorded")
			return nil
		}

		for _, r := range runs {
			dur := "-"
			if r.FinishedAt != nil {
				dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			fmt.Printf("%s  %-10s %-8s  pages=%d listings=%d skipped=%d failed=%d  %s\n",
				r.StartedAt.Format(time.RFC3339), r.Source, r.Status,
				r.Stats.Pages, r.Stats.Listings, r.Stats.Skipped, r.Stats.Failed, dur)
			if r.Error != "" {
				fmt.Printf("    error: %s\n", r.Error)
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
