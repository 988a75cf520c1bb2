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

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/monitoring"
	"github.com/sells-group/meridian/internal/store"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect uploaded documents",
	Long:  "Commands for listing, viewing, and summarizing documents in the extraction pipeline.",
}

// -- documents list --

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		company, _ := cmd.Flags().GetString("company")
		docType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		docs, err := env.Documents.ListDocuments(ctx, store.DocumentFilter{
			CompanyID:    company,
			Status:       model.ProcessingStatus(status),
			DocumentType: model.DocumentType(docType),
			Limit:        limit,
		})
		if err != nil {
			return eris.Wrap(err, "documents list")
		}

		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents found.")
			return nil
		}

		formatDocumentList(os.Stdout, docs)
		return nil
	},
}

// -- documents show --

var documentsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show a document and its extractions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Documents.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "documents show")
		}
		ex, err := env.Documents.ListExtractions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "documents show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.Document
			Extractions []model.Extraction `json:"extractions"`
		}{doc, ex})
	},
}

// -- documents stats --

var documentsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline health over a time window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		since, _ := cmd.Flags().GetDuration("since")
		hours := int(since.Hours())
		if hours < 1 {
			hours = 1
		}

		snap, err := monitoring.NewCollector(env.Store).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "documents stats")
		}
		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func init() {
	documentsListCmd.Flags().String("status", "", "filter by processing status (pending, parsing, completed, failed, ...)")
	documentsListCmd.Flags().String("company", "", "filter by company ID")
	documentsListCmd.Flags().String("type", "", "filter by document type")
	documentsListCmd.Flags().Int("limit", 50, "max number of documents to display")

	documentsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsStatsCmd)
	rootCmd.AddCommand(documentsCmd)
}

// formatDocumentList writes a tabular list of documents to w.
func formatDocumentList(out io.Writer, docs []model.Document) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILENAME\tTYPE\tSTATUS\tPAGES\tUPLOADED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t--------\t----\t------\t-----\t--------\t-----")

	for _, d := range docs {
		name := d.Filename
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		errMsg := d.ErrorMessage
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		docType := string(d.DocumentType)
		if docType == "" {
			docType = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(d.ID),
			name,
			docType,
			d.Status,
			d.PageCount,
			d.UploadedAt.Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatSnapshot writes pipeline stats to w.
func formatSnapshot(out io.Writer, s *monitoring.PipelineSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Documents:\t%d\n", s.DocumentsTotal)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.DocumentsCompleted)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.DocumentsFailed)
	_, _ = fmt.Fprintf(w, "In flight:\t%d\n", s.DocumentsInFlight)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", s.FailureRate*100)
	_, _ = fmt.Fprintf(w, "Pending backlog:\t%d\n", s.PendingBacklog)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
