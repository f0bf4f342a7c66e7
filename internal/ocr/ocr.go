package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// Image OCR engines.
const (
	EngineTesseract = "tesseract"
	EngineAzure     = "azure"
)

// PDF page rasterizers used when a PDF carries no embedded text.
const (
	RasterizerPdftoppm    = "pdftoppm"
	RasterizerImageMagick = "imagemagick"
)

// PDFTextConfidence is reported for text read straight from a PDF's content streams.
const PDFTextConfidence = 0.8

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	PageWorkers   int    // scanned pages OCR'd concurrently, default 4

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	Engine     string // EngineTesseract | EngineAzure; default tesseract
	Rasterizer string // RasterizerPdftoppm | RasterizerImageMagick; default pdftoppm
	NativePDF  bool   // read embedded PDF text in-process instead of shelling out to pdftotext
	Preprocess bool   // grayscale/contrast/sharpen images before OCR

	AzureEndpoint string
	AzureKey      string

	WorkDir string // where uploaded bytes are staged; default os.TempDir()
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // constants.OCRMethod*
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}

type Extractor struct {
	cfg    Config
	runner Runner
	azure  *azureEngine
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 4
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineTesseract
	}
	if cfg.Rasterizer == "" {
		cfg.Rasterizer = RasterizerPdftoppm
	}
	e := &Extractor{cfg: cfg, runner: toolRunner{logger: logger}, logger: logger}
	if cfg.Engine == EngineAzure {
		e.azure = newAzureEngine(cfg.AzureEndpoint, cfg.AzureKey)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract stages the document on disk and runs ExtractFile on it.
func (e *Extractor) Extract(ctx context.Context, doc entity.RawDocument) (ExtractionResult, error) {
	ext := constants.NormalizeExt(doc.MediaType)
	if constants.MapExtToFormat(ext) == "" {
		return ExtractionResult{}, fmt.Errorf("unsupported media type: %q", doc.MediaType)
	}
	dir, err := os.MkdirTemp(e.cfg.WorkDir, "it-doc-*")
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("stage document: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", dir, "error", err)
		}
	}()

	path := filepath.Join(dir, "document."+ext)
	if err := os.WriteFile(path, doc.Content, 0o600); err != nil {
		return ExtractionResult{}, fmt.Errorf("stage document: %w", err)
	}
	return e.ExtractFile(ctx, path)
}

// ExtractFile picks a strategy based on file extension.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "engine", e.cfg.Engine, "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	return res, err
}
