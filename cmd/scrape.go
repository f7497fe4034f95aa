package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scrapeSource string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape configured rental listing sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		engine := initScrapeEngine(st, scrapeSource)
		label := scrapeSource
		if label == "" {
			label = "all"
		}
		run, err := engine.Run(ctx, label)
		if run != nil {
			zap.L().Info("scrape run finished",
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)),
				zap.Int("pages", run.Stats.Pages),
				zap.Int("listings", run.Stats.Listings),
				zap.Int("skipped", run.Stats.Skipped),
				zap.Int("failed", run.Stats.Failed))
		}
		return err
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeSource, "source", "", "scrape a single configured source by district code")
	rootCmd.AddCommand(scrapeCmd)
}
