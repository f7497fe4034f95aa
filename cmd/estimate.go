package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bure-project/bure/internal/estimate"
	"github.com/bure-project/bure/internal/model"
)

var (
	estimateBeds      float64
	estimateBaths     float64
	estimateSqft      int
	estimateAmenities []string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <district> [district...]",
	Short: "Estimate rent for one or more districts",
	Args:  cobra.MinimumNArgs(1),
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

		reg, err := initRegistry()
		if err != nil {
			return err
		}
		est := estimate.NewEstimator(st, reg)

		amenities := make([]string, 0, len(estimateAmenities))
		for _, a := range estimateAmenities {
			amenities = append(amenities, model.AmenitySlug(a))
		}

		results, err := est.Estimate(ctx, model.EstimateRequest{
			Locations: args,
			Mode:      model.SearchModeList,
			Beds:      estimateBeds,
			Baths:     estimateBaths,
			Sqft:      estimateSqft,
			Amenities: amenities,
		})
		if err != nil {
			return eris.Wrap(err, "estimate")
		}

		for _, r := range results {
			fmt.Printf("%-20s $%.0f/mo  (%s, %d samples, confidence %.2f)\n",
				r.District, r.Price, r.Method, r.SampleSize, r.Confidence)
		}
		return nil
	},
}

func init() {
	estimateCmd.Flags().Float64Var(&estimateBeds, "beds", 1, "number of bedrooms (0 for studio)")
	estimateCmd.Flags().Float64Var(&estimateBaths, "baths", 1, "number of bathrooms")
	estimateCmd.Flags().IntVar(&estimateSqft, "sqft", 0, "square footage (0 to omit)")
	estimateCmd.Flags().StringSliceVar(&estimateAmenities, "amenity", nil, "amenity label, repeatable")
	rootCmd.AddCommand(estimateCmd)
}
