// Package async runs document processing on a bounded pool of background workers.
package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one file waiting to be processed.
type Job struct {
	FileID      uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor is the work a queue worker performs for each job.
type FileProcessor interface {
	ProcessFile(ctx context.Context, fileID uuid.UUID) error
}
