package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	uploader   Uploader
	uploadedBy string
	logger     *slog.Logger
}

func NewFSIngestor(u Uploader, uploadedBy string, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{uploader: u, uploadedBy: uploadedBy, logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}

	ext, ok := documentExt(abs)
	if !ok {
		i.logger.Warn("ingest.unsupported_extension", "path", abs, "ext", ext)
		return out, fmt.Errorf("extension %q: %w", ext, common.ErrUnsupported)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return out, err
	}
	if info.Size() > constants.MaxUploadBytes {
		return out, fmt.Errorf("%s: %w", abs, common.ErrTooLarge)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return out, err
	}

	row, dedup, err := i.uploader.Upload(ctx, pipeline.UploadRequest{
		Content:    content,
		FileName:   filepath.Base(abs),
		MediaType:  ext,
		UploadedBy: i.uploadedBy,
	})
	if err != nil {
		return out, err
	}

	out = IngestionResult{
		SourcePath:   abs,
		FileID:       row.ID.String(),
		Deduplicated: dedup,
		HashHex:      hex.EncodeToString(row.ContentHash),
		FileExt:      row.FileType,
		UploadedAt:   row.CreatedAt,
	}
	i.logger.Info("ingest.file.ok", "path", abs, "file_id", out.FileID, "deduplicated", dedup)
	return out, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	root string,
	skipHidden bool,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && hiddenEntry(root, path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if _, ok := documentExt(path); !ok {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("ingest.directory.ok",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
