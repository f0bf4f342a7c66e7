package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-tracker/internal/app"
	"github.com/joseph-ayodele/invoice-tracker/internal/export"
	"github.com/joseph-ayodele/invoice-tracker/internal/ingest"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Ingest a directory, process every document and write an XLSX workbook",
	Long: `Upload every supported document under --dir, extract each one and export the
resulting invoices. Documents already processed are skipped.

Examples:
  invoicectl batch --dir ./scans
  invoicectl batch --dir ./scans --out ./q1.xlsx --from 2024-01-01 --to 2024-03-31`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().String("dir", "", "directory to process invoices from (required)")
	batchCmd.Flags().String("out", "", "output XLSX file path (defaults to invoices.xlsx next to --dir)")
	batchCmd.Flags().String("from", "", "from date YYYY-MM-DD")
	batchCmd.Flags().String("to", "", "to date YYYY-MM-DD")
	batchCmd.Flags().String("uploaded-by", "batch", "uploader recorded on each file")
	batchCmd.Flags().Bool("include-hidden", false, "also ingest hidden files and directories")
	_ = batchCmd.MarkFlagRequired("dir")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	out, _ := cmd.Flags().GetString("out")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	uploadedBy, _ := cmd.Flags().GetString("uploaded-by")
	includeHidden, _ := cmd.Flags().GetBool("include-hidden")

	if out == "" {
		out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "invoices.xlsx")
	}
	from, err := parseDateFlag("from", fromStr)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", toStr)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ingestor := ingest.NewFSIngestor(a.Processor, uploadedBy, logger)
	logger.Info("batch.ingest.start", "dir", dir)
	results, stats, err := ingestor.IngestDirectory(ctx, dir, !includeHidden)
	if err != nil {
		return fmt.Errorf("ingest directory: %w", err)
	}

	var processed, failed int
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		id, err := uuid.Parse(r.FileID)
		if err != nil {
			logger.Error("batch.file_id.invalid", "file_id", r.FileID, "error", err)
			failed++
			continue
		}
		if err := a.Processor.ProcessFile(ctx, id); err != nil {
			logger.Error("batch.process.failed", "path", r.SourcePath, "file_id", id, "error", err)
			failed++
			continue
		}
		processed++
	}

	xlsx, err := export.NewService(a.Invoices, logger).ExportInvoicesXLSX(ctx, from, to)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, xlsx, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	logger.Info("batch.ok",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"ingest_failed", stats.Failed,
		"processed", processed,
		"process_failed", failed,
		"out", out,
	)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "processed %d of %d documents (%d failed); wrote %s\n",
		processed, stats.Matched, int(stats.Failed)+failed, out)
	return err
}
