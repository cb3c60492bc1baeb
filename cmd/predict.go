package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var predictCmd = &cobra.Command{
	Use:   "predict <document-id>",
	Short: "Run a prediction over an ingested document",
	Long:  "Scores every row of the document against the configured machine learning deployment and stores the results. Pages that exhaust their retry budget are skipped and recorded, not fatal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "predict")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Orchestrator == nil {
			return eris.New("no scoring backend configured (set PREDICT_WATSON_API_KEY or PREDICT_ANTHROPIC_KEY)")
		}

		doc, err := env.Store.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		modelName, _ := cmd.Flags().GetString("model")

		p, err := env.Orchestrator.ProcessDocument(ctx, doc, modelName)
		if err != nil {
			return eris.Wrap(err, "predict")
		}
		zap.L().Info("prediction complete",
			zap.String("prediction_id", p.ID),
			zap.String("document_id", doc.ID),
			zap.String("model", p.Model),
		)

		s, err := env.Orchestrator.ComputeSummary(ctx, p.ID)
		if err != nil {
			return eris.Wrap(err, "compute summary")
		}

		fmt.Fprintf(os.Stdout, "Prediction %s complete\n", p.ID)
		formatSummary(os.Stdout, s)
		return nil
	},
}

func init() {
	predictCmd.Flags().String("model", "", "model name (defaults to the registry default)")
	rootCmd.AddCommand(predictCmd)
}
