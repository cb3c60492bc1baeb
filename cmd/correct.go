package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verity-ml/predict-cli/internal/corrections"
)

var correctCmd = &cobra.Command{
	Use:   "correct <prediction-id>",
	Short: "Apply reviewer corrections to a prediction",
	Long:  "Reads corrections from a CSV file with prediction_record_id and corrected_value columns. Corrections matching the current effective value are dropped; the rest are stored without mutating the original results.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "correct")
		if err != nil {
			return err
		}
		defer env.Close()

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return eris.New("--file is required")
		}

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrap(err, "open corrections file")
		}
		defer f.Close() //nolint:errcheck

		inputs, err := corrections.ParseCSV(f)
		if err != nil {
			return eris.Wrap(err, "parse corrections")
		}

		res, err := env.Corrections.Apply(ctx, args[0], inputs)
		if err != nil {
			return eris.Wrap(err, "apply corrections")
		}

		fmt.Fprintf(os.Stdout, "Applied %d corrections (%d unknown records skipped, %d unchanged skipped)\n",
			res.Applied, res.SkippedUnknown, res.SkippedUnchanged)
		return nil
	},
}

func init() {
	correctCmd.Flags().String("file", "", "CSV file of corrections")
	rootCmd.AddCommand(correctCmd)
}
