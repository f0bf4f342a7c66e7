package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	dcconfig "github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	dcimage "github.com/JaimeStill/document-context/pkg/image"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// extractPDF prefers the PDF's embedded text and falls back to OCR of rasterized pages.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF}, fmt.Errorf("read pdf: %w", err)
	}
	pages := pdfPageCount(data)

	text, warn := e.pdfText(ctx, path, data)
	if text = Normalize(text); text != "" {
		if pages == 0 {
			pages = 1 + strings.Count(text, "\f")
		}
		return ExtractionResult{
			Text:       text,
			Pages:      pages,
			SourceType: constants.PDF,
			Method:     constants.OCRMethodPDFText,
			Warnings:   warn,
			Confidence: PDFTextConfidence,
		}, nil
	}
	e.logger.Info("ocr.pdf.no_embedded_text", "path", path)

	scan, err := e.pdfToOCR(ctx, path)
	warn = append(warn, scan.warnings...)
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF, Warnings: warn}, err
	}
	if pages == 0 {
		pages = scan.pages
	}
	return ExtractionResult{
		Text:       Normalize(scan.text),
		Pages:      pages,
		SourceType: constants.PDF,
		Method:     constants.OCRMethodPDFOCR,
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
		Confidence: scan.confidence,
	}, nil
}

// pdfPageCount reads the page count from document metadata; 0 when the PDF cannot be parsed.
func pdfPageCount(data []byte) int {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0
	}
	return n
}

// pdfText returns embedded text, trying pdftotext first unless NativePDF is set, then the
// in-process reader.
func (e *Extractor) pdfText(ctx context.Context, path string, data []byte) (string, []string) {
	var warn []string
	if !e.cfg.NativePDF {
		text, w, err := e.pdfToText(ctx, path)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		warn = append(warn, w...)
		if err != nil {
			warn = append(warn, "pdftotext: "+err.Error())
		}
	}
	text, err := nativePDFText(data)
	if err != nil {
		warn = append(warn, "pdf reader: "+err.Error())
		return "", warn
	}
	return text, warn
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (string, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", []string{string(errb)}, err
	}
	return string(out), nil, nil
}

// nativePDFText reads text row by row from every page. Pages are separated by form feeds the
// same way pdftotext separates them.
func nativePDFText(data []byte) (text string, err error) {
	defer func() {
		// the reader panics on some malformed streams
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if i > 1 {
			b.WriteString("\f")
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

type pageScan struct {
	text       string
	confidence float64
	warnings   []string
	err        error
}

type scanResult struct {
	text       string
	pages      int
	confidence float64
	warnings   []string
}

// pdfToOCR rasterizes the PDF and OCRs up to PageWorkers pages at a time. Page text is joined
// in page order and confidence is the mean over pages that produced text. It fails only when
// every page failed.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (scanResult, error) {
	tmpDir, err := os.MkdirTemp(e.cfg.WorkDir, "it-pp-*")
	if err != nil {
		return scanResult{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", tmpDir, "error", err)
		}
	}()

	var (
		images []string
		warn   []string
	)
	if e.cfg.Rasterizer == RasterizerImageMagick {
		images, err = renderPagesImageMagick(path, tmpDir, e.cfg.DPI)
	} else {
		images, warn, err = e.renderPagesPdftoppm(ctx, path, tmpDir)
	}
	if err != nil {
		return scanResult{warnings: warn}, err
	}
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}
	if len(images) == 0 {
		return scanResult{warnings: append(warn, "rasterizer produced no images")}, fmt.Errorf("no pages rendered")
	}

	scans := make([]pageScan, len(images))
	var g errgroup.Group
	g.SetLimit(e.cfg.PageWorkers)
	for i, img := range images {
		g.Go(func() error {
			scans[i] = e.scanPage(ctx, img)
			return nil
		})
	}
	_ = g.Wait()

	var (
		b              strings.Builder
		confSum        float64
		scored, failed int
	)
	for i, ps := range scans {
		warn = append(warn, ps.warnings...)
		if ps.err != nil {
			warn = append(warn, fmt.Sprintf("page %d: %v", i+1, ps.err))
			failed++
			continue
		}
		if strings.TrimSpace(ps.text) != "" {
			confSum += ps.confidence
			scored++
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(ps.text)
	}
	if failed == len(scans) {
		return scanResult{warnings: warn}, fmt.Errorf("ocr failed on all %d pages", failed)
	}

	res := scanResult{text: b.String(), pages: len(images), warnings: warn}
	if scored > 0 {
		res.confidence = confSum / float64(scored)
	}
	return res, nil
}

func (e *Extractor) scanPage(ctx context.Context, img string) pageScan {
	txt, w, err := e.tesseractOCR(ctx, img)
	if err != nil {
		return pageScan{warnings: w, err: err}
	}
	conf, cw := e.pageConfidence(ctx, img, Normalize(txt))
	return pageScan{text: txt, confidence: conf, warnings: append(w, cw...)}
}

func (e *Extractor) renderPagesPdftoppm(ctx context.Context, path, dir string) ([]string, []string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, []string{string(errb)}, err
	}
	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	return matches, nil, nil
}

// renderPagesImageMagick rasterizes every page through ImageMagick and writes page-N.png files
// into dir.
func renderPagesImageMagick(path, dir string, dpi int) ([]string, error) {
	doc, err := document.OpenPDF(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	renderer, err := dcimage.NewImageMagickRenderer(dcconfig.ImageConfig{
		Format:  "png",
		DPI:     dpi,
		Options: map[string]any{"background": "white"},
	})
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	pages, err := doc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}

	out := make([]string, 0, len(pages))
	for i, page := range pages {
		data, err := page.ToImage(renderer, nil)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		imgPath := filepath.Join(dir, fmt.Sprintf("page-%d.png", i+1))
		if err := os.WriteFile(imgPath, data, 0o600); err != nil {
			return nil, fmt.Errorf("write page %d image: %w", i+1, err)
		}
		out = append(out, imgPath)
	}
	return out, nil
}
