package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// stderrLogLimit bounds how much of a failing tool's stderr goes into the log.
const stderrLogLimit = 8 << 10

// Runner executes the external OCR tools (pdftotext, pdftoppm, tesseract).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// toolRunner runs tools as child processes that are killed when ctx ends.
type toolRunner struct {
	logger *slog.Logger
}

func (r toolRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	attrs := []any{
		"tool", name,
		"args", strings.Join(args, " "),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			attrs = append(attrs, "exit_code", exitErr.ExitCode())
		}
		attrs = append(attrs, "error", err, "stderr", clip(stderr.String(), stderrLogLimit))
		r.logger.Error("ocr.tool.failed", attrs...)
		return stdout.Bytes(), stderr.Bytes(), err
	}
	r.logger.Debug("ocr.tool.ok", append(attrs, "stdout_bytes", stdout.Len())...)
	return stdout.Bytes(), stderr.Bytes(), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
