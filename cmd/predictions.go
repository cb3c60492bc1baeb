package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/store"
)

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "Inspect prediction runs",
	Long:  "Commands for listing predictions, viewing results, and computing performance summaries.",
}

// -- predictions list --

var predictionsListCmd = &cobra.Command{
	Use:   "list <document-id>",
	Short: "List predictions for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		preds, err := env.Store.ListPredictions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "predictions list")
		}

		if len(preds) == 0 {
			fmt.Fprintln(os.Stderr, "No predictions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tMODEL\tFIELD\tCREATED")
		for _, p := range preds {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				truncateID(p.ID), p.Model, p.PredictionField, p.CreatedAt.Format(time.DateOnly))
		}
		_ = w.Flush()
		return nil
	},
}

// -- predictions show --

var predictionsShowCmd = &cobra.Command{
	Use:   "show <prediction-id>",
	Short: "Show a prediction with its performance summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Store.GetPrediction(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "predictions show")
		}

		s, err := computeSummary(cmd, env, p.ID)
		if err != nil {
			return err
		}
		p.PerformanceSummary = s

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

// -- predictions summary --

var predictionsSummaryCmd = &cobra.Command{
	Use:   "summary <prediction-id>",
	Short: "Show the performance summary of a prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := computeSummary(cmd, env, args[0])
		if err != nil {
			return err
		}

		formatSummary(os.Stdout, s)
		return nil
	},
}

// -- predictions results --

var predictionsResultsCmd = &cobra.Command{
	Use:   "results <prediction-id>",
	Short: "List a page of prediction results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		filter, _ := cmd.Flags().GetString("filter")
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		rp, err := env.Store.ListPredictionResults(ctx, args[0],
			model.Page{Page: page, PageSize: pageSize},
			store.ResultListOptions{
				Filter:              model.ResultFilter(filter),
				ConfidenceThreshold: threshold,
			})
		if err != nil {
			return eris.Wrap(err, "predictions results")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tPROVIDED\tPREDICTED\tCONF\tAGREE")
		for _, r := range rp.Results {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%t\n",
				truncateID(r.ID), r.ProvidedValue, r.PredictionValue, r.Confidence, r.Agree)
		}
		_ = w.Flush()
		if rp.HasMore {
			fmt.Fprintf(os.Stderr, "More results available; use --page %d\n", max(page, 1)+1)
		}
		return nil
	},
}

// -- predictions corrections --

var predictionsCorrectionsCmd = &cobra.Command{
	Use:   "corrections <prediction-id>",
	Short: "List stored corrections for a prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		corrs, err := env.Store.ListCorrections(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "predictions corrections")
		}

		if len(corrs) == 0 {
			fmt.Fprintln(os.Stderr, "No corrections found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "RECORD\tCORRECTED\tAGREE\tWHEN")
		for _, c := range corrs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
				truncateID(c.PredictionRecordID), c.PredictionValue, c.Agree,
				c.CreatedAt.Format("2006-01-02 15:04"))
		}
		_ = w.Flush()
		return nil
	},
}

// -- predictions export --

var predictionsExportCmd = &cobra.Command{
	Use:   "export <prediction-id>",
	Short: "Export prediction results as a review CSV",
	Long:  "Writes every result with a corrected_value column prefilled with the current effective value. Edit the column and feed the file back through the correct command.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrap(err, "create export file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := env.Corrections.ExportCSV(ctx, args[0], out); err != nil {
			return eris.Wrap(err, "predictions export")
		}
		return nil
	},
}

func init() {
	predictionsExportCmd.Flags().String("out", "", "output file (default stdout)")

	predictionsResultsCmd.Flags().String("filter", "All",
		"result filter (All, AllDisagree, AllBelowConfidence, AgreeBelowConfidence, DisagreeAboveConfidence, DisagreeBelowConfidence)")
	predictionsResultsCmd.Flags().Int("page", 1, "page number")
	predictionsResultsCmd.Flags().Int("page-size", 50, "results per page")
	predictionsResultsCmd.Flags().Float64("threshold", 0, "confidence threshold (default from config)")

	predictionsShowCmd.Flags().Float64("threshold", 0, "confidence threshold (default from config)")
	predictionsSummaryCmd.Flags().Float64("threshold", 0, "confidence threshold (default from config)")

	predictionsCmd.AddCommand(predictionsListCmd)
	predictionsCmd.AddCommand(predictionsShowCmd)
	predictionsCmd.AddCommand(predictionsSummaryCmd)
	predictionsCmd.AddCommand(predictionsResultsCmd)
	predictionsCmd.AddCommand(predictionsCorrectionsCmd)
	predictionsCmd.AddCommand(predictionsExportCmd)
	rootCmd.AddCommand(predictionsCmd)
}

// computeSummary builds the summary engine on demand so query commands work
// without a scoring backend configured.
func computeSummary(cmd *cobra.Command, env *appEnv, predictionID string) (*model.PerformanceSummary, error) {
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	cfgCopy := orchestratorConfig()
	if threshold > 0 {
		cfgCopy.ConfidenceThreshold = threshold
	}

	orch := env.Orchestrator
	if orch == nil || threshold > 0 {
		orch = newSummaryOrchestrator(env, cfgCopy)
	}

	s, err := orch.ComputeSummary(cmd.Context(), predictionID)
	if err != nil {
		return nil, eris.Wrap(err, "compute summary")
	}
	return s, nil
}

// formatSummary writes a performance summary to w.
func formatSummary(out io.Writer, s *model.PerformanceSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows scored:\t%d\n", s.TotalCount)
	_, _ = fmt.Fprintf(w, "Rows total:\t%d\n", s.GrandTotal)
	if skipped := s.GrandTotal - s.TotalCount; skipped > 0 {
		_, _ = fmt.Fprintf(w, "Rows skipped:\t%d\n", skipped)
	}
	_, _ = fmt.Fprintf(w, "Agree / above %.2f:\t%d\n", s.ConfidenceThreshold, s.AgreeAboveThreshold)
	_, _ = fmt.Fprintf(w, "Agree / below %.2f:\t%d\n", s.ConfidenceThreshold, s.AgreeBelowThreshold)
	_, _ = fmt.Fprintf(w, "Disagree / above %.2f:\t%d\n", s.ConfidenceThreshold, s.DisagreeAboveThreshold)
	_, _ = fmt.Fprintf(w, "Disagree / below %.2f:\t%d\n", s.ConfidenceThreshold, s.DisagreeBelowThreshold)
	_, _ = fmt.Fprintf(w, "Corrected records:\t%d\n", s.CorrectedRecords)
	_ = w.Flush()
}
