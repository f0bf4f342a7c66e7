package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/app"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the invoice data extracted from a single document",
	Long: `Run OCR and field extraction over one PDF or image and print the result as JSON.
Nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().Bool("text", false, "print only the recognized text")
}

func runExtract(cmd *cobra.Command, args []string) error {
	textOnly, _ := cmd.Flags().GetBool("text")
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	path := args[0]
	mediaType := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := constants.AllowedExtensions[mediaType]; !ok {
		return fmt.Errorf("unsupported file type %q", mediaType)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	orch := app.NewOrchestrator(cfg, logger)
	data := orch.ProcessDocument(cmd.Context(), entity.RawDocument{
		Content:   content,
		MediaType: mediaType,
		FileName:  filepath.Base(path),
	})

	out := cmd.OutOrStdout()
	if textOnly {
		_, err := fmt.Fprintln(out, data.ExtractedText)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
