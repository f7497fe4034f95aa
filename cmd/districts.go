package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var districtsCmd = &cobra.Command{
	Use:   "districts",
	Short: "List the known Boston districts",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := initRegistry()
		if err != nil {
			return err
		}
		for _, d := range reg.All() {
			fmt.Printf("%-20s %s (%.4f, %.4f)\n", d.Code, d.Name, d.Lat, d.Lon)
		}
		return nil
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate <lat> <lon>",
	Short: "Resolve a coordinate to its district",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(err, "invalid latitude %q", args[0])
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "invalid longitude %q", args[1])
		}

		reg, err := initRegistry()
		if err != nil {
			return err
		}

		if d, ok := reg.Locate(lat, lon); ok {
			fmt.Printf("%s (%s)\n", d.Name, d.Code)
			return nil
		}
		// No boundary match; fall back to the nearest district center.
		if d, ok := reg.Nearest(lat, lon); ok {
			fmt.Printf("%s (%s, nearest center)\n", d.Name, d.Code)
			return nil
		}
		return eris.Errorf("no district found for (%.4f, %.4f)", lat, lon)
	},
}

func init() {
	districtsCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(districtsCmd)
}
