package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verity-ml/predict-cli/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source>",
	Short: "Ingest a CSV or XLSX document",
	Long:  "Reads a tabular file from a local path, HTTP(S) URL, or FTP URL, stores every row, and registers the document for prediction. ZIP archives containing a single tabular file are unpacked automatically.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		predictField, _ := cmd.Flags().GetString("predict-field")
		sheet, _ := cmd.Flags().GetString("sheet")
		startRow, _ := cmd.Flags().GetInt("start-row")

		if predictField == "" {
			return eris.New("--predict-field is required")
		}
		if name == "" {
			name = args[0]
		}

		input := model.DocumentInput{
			Name:              name,
			Description:       description,
			PredictField:      predictField,
			WorksheetName:     sheet,
			WorksheetStartRow: startRow,
		}

		doc, rows, err := env.Ingest.Ingest(ctx, args[0], input)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		zap.L().Info("document ingested",
			zap.String("document_id", doc.ID),
			zap.Int("rows", rows),
		)
		fmt.Fprintf(os.Stdout, "Ingested %d rows into document %s\n", rows, doc.ID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("name", "", "document name (defaults to the source)")
	ingestCmd.Flags().String("description", "", "document description")
	ingestCmd.Flags().String("predict-field", "", "column holding the provided value to compare predictions against")
	ingestCmd.Flags().String("sheet", "", "worksheet name for XLSX sources (default first sheet)")
	ingestCmd.Flags().Int("start-row", 0, "zero-based header row for XLSX sources")
	rootCmd.AddCommand(ingestCmd)
}
