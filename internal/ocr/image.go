package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	var warn []string
	if e.cfg.Preprocess {
		if out, err := preprocessImage(path); err != nil {
			warn = append(warn, "preprocess: "+err.Error())
		} else {
			path = out
		}
	}

	if e.cfg.Engine == EngineAzure {
		res, err := e.azureImage(ctx, path)
		res.Warnings = append(warn, res.Warnings...)
		return res, err
	}

	txt, w, err := e.tesseractOCR(ctx, path)
	warn = append(warn, w...)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE, Warnings: warn}, err
	}
	txt = Normalize(txt)

	conf, w := e.pageConfidence(ctx, path, txt)
	warn = append(warn, w...)
	if txt != "" && conf < constants.ImageConfidenceLow {
		e.logger.Warn("ocr.image.low_confidence", "path", path, "conf", conf)
	}

	return ExtractionResult{
		Text:       txt,
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     constants.OCRMethodImageOCR,
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
		Confidence: conf,
	}, nil
}

// preprocessImage writes a grayscale, contrast-boosted, sharpened copy next to path.
func preprocessImage(path string) (string, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	out := filepath.Join(filepath.Dir(path), "preprocessed.png")
	if err := imaging.Save(img, out); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return out, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

// pageConfidence reports tesseract's own mean word confidence for an image. The keyword
// heuristic stands in only when TSV output is disabled or carries no words.
func (e *Extractor) pageConfidence(ctx context.Context, path, txt string) (float64, []string) {
	if txt == "" {
		return 0, nil
	}
	if !e.cfg.EnableTSVConfidence {
		return heuristicConfidence(txt), nil
	}
	c, err := e.tesseractTSVConfidence(ctx, path)
	if err != nil {
		return heuristicConfidence(txt), []string{err.Error()}
	}
	if c <= 0 {
		return heuristicConfidence(txt), nil
	}
	return c, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float64, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column of tesseract TSV output, skipping the header and
// rows that are not words (conf -1).
func meanTSVConfidence(tsv string) float64 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		// level page block par line word left top width height conf text
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n / 100.0
}
