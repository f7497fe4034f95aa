package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/importer"
)

var (
	importFile     string
	importDistrict string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import listings from a CSV or XLSX export",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		if importFile == "" {
			return eris.New("--file is required")
		}
		if importDistrict == "" {
			return eris.New("--district is required")
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
		if _, ok := reg.Get(importDistrict); !ok {
			return eris.Errorf("unknown district: %s", importDistrict)
		}

		im := importer.New(st)

		var res *importer.Result
		switch strings.ToLower(filepath.Ext(importFile)) {
		case ".csv":
			f, err := os.Open(importFile)
			if err != nil {
				return eris.Wrap(err, "open import file")
			}
			defer f.Close()
			res, err = im.ImportCSV(ctx, f, importDistrict)
			if err != nil {
				return err
			}
		case ".xlsx":
			res, err = im.ImportXLSX(ctx, importFile, importDistrict)
			if err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported import format: %s", filepath.Ext(importFile))
		}

		zap.L().Info("import finished",
			zap.String("file", importFile),
			zap.String("district", importDistrict),
			zap.Int("rows", res.Rows),
			zap.Int64("imported", res.Imported),
			zap.Int("skipped", res.Skipped))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "CSV or XLSX file to import")
	importCmd.Flags().StringVar(&importDistrict, "district", "", "district code to stamp on imported listings")
	rootCmd.AddCommand(importCmd)
}
