// Package ingest submits invoice documents from the local filesystem for extraction.
package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	FileID       string
	Deduplicated bool
	HashHex      string
	FileExt      string
	UploadedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Uploader stores a document and records it for processing; pipeline.Processor implements it.
type Uploader interface {
	Upload(ctx context.Context, req pipeline.UploadRequest) (*entity.File, bool, error)
}

// Ingestor is the behavior the CLI and server depend on.
type Ingestor interface {
	// IngestPath uploads a single file.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
