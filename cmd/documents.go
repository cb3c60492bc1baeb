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

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect ingested documents",
	Long:  "Commands for listing, viewing, and deleting ingested documents.",
}

// -- documents list --

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")

		docs, err := env.Store.ListDocuments(ctx, store.DocumentFilter{
			Status: model.DocumentStatus(status),
			Page:   model.Page{Page: page, PageSize: pageSize},
		})
		if err != nil {
			return eris.Wrap(err, "documents list")
		}

		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents found.")
			return nil
		}

		formatDocumentsList(os.Stdout, docs)
		return nil
	},
}

// -- documents show --

var documentsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show full details of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Store.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "documents show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

// -- documents rows --

var documentsRowsCmd = &cobra.Command{
	Use:   "rows <document-id>",
	Short: "List a page of document rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")

		rp, err := env.Store.ListDocumentRows(ctx, args[0], model.Page{Page: page, PageSize: pageSize})
		if err != nil {
			return eris.Wrap(err, "documents rows")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tPROVIDED\tDATA")
		for _, r := range rp.Rows {
			data := r.Data
			if len(data) > 60 {
				data = data[:57] + "..."
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", truncateID(r.ID), r.ProvidedValue, data)
		}
		_ = w.Flush()
		if rp.HasMore {
			fmt.Fprintf(os.Stderr, "More rows available; use --page %d\n", max(page, 1)+1)
		}
		return nil
	},
}

// -- documents delete --

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Soft-delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeleteDocument(ctx, args[0]); err != nil {
			return eris.Wrap(err, "documents delete")
		}

		fmt.Fprintf(os.Stdout, "Document %s deleted\n", args[0])
		return nil
	},
}

// -- documents failures --

var documentsFailuresCmd = &cobra.Command{
	Use:   "failures <document-id>",
	Short: "List pages skipped after retry exhaustion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		pages, err := env.Store.ListFailedPages(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "documents failures")
		}

		if len(pages) == 0 {
			fmt.Fprintln(os.Stderr, "No failed pages.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PAGE\tMODEL\tERROR\tWHEN")
		for _, fp := range pages {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				fp.Page, fp.Model, fp.Error, fp.CreatedAt.Format("2006-01-02 15:04"))
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	documentsListCmd.Flags().String("status", "", "filter by status (InProgress, Completed, Error)")
	documentsListCmd.Flags().Int("page", 1, "page number")
	documentsListCmd.Flags().Int("page-size", 50, "documents per page")

	documentsRowsCmd.Flags().Int("page", 1, "page number")
	documentsRowsCmd.Flags().Int("page-size", 50, "rows per page")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsRowsCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsFailuresCmd)
	rootCmd.AddCommand(documentsCmd)
}

// formatDocumentsList writes a tabular list of documents to w.
func formatDocumentsList(out io.Writer, docs []model.Document) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPREDICT_FIELD\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------------\t-------")

	for _, d := range docs {
		name := d.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(d.ID),
			name,
			d.Status,
			d.PredictField,
			d.CreatedAt.Format(time.DateOnly),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
