package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-tracker/internal/app"
	"github.com/joseph-ayodele/invoice-tracker/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored invoices to an XLSX workbook",
	Long: `Export invoices dated within [--from, --to]. Only --from exports up to today,
only --to exports everything up to that date, neither exports all invoices.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("out", "invoices.xlsx", "output XLSX file path")
	exportCmd.Flags().String("from", "", "from date YYYY-MM-DD")
	exportCmd.Flags().String("to", "", "to date YYYY-MM-DD")
}

func runExport(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

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
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	xlsx, err := export.NewService(a.Invoices, logger).ExportInvoicesXLSX(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, xlsx, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(xlsx))
	return err
}
