package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/estimate"
)

var trainDistrict string

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train pricing models from stored listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("train"); err != nil {
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

		reg, err := initRegistry()
		if err != nil {
			return err
		}
		est := estimate.NewEstimator(st, reg)

		if trainDistrict != "" {
			b, err := est.TrainDistrict(ctx, trainDistrict)
			if err != nil {
				return err
			}
			zap.L().Info("trained district model",
				zap.String("district", trainDistrict),
				zap.String("method", b.Method),
				zap.Int("samples", b.SampleSize))
			return nil
		}

		trained, err := est.TrainAll(ctx)
		if err != nil {
			return err
		}
		for code, n := range trained {
			zap.L().Info("trained district model",
				zap.String("district", code),
				zap.Int("samples", n))
		}
		zap.L().Info("training complete", zap.Int("districts", len(trained)))
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainDistrict, "district", "", "train only the given district code")
	rootCmd.AddCommand(trainCmd)
}
