package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/async"
	"github.com/joseph-ayodele/invoice-tracker/internal/cache"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
	"github.com/joseph-ayodele/invoice-tracker/internal/storage"
)

// UploadRequest is a document submitted for extraction.
type UploadRequest struct {
	Content    []byte
	FileName   string
	MediaType  string // optional; derived from FileName when empty
	UploadedBy string
}

// Processor owns the file and invoice records around extraction: it stores uploads, runs the
// orchestrator over stored files and links the resulting invoices.
type Processor struct {
	files    repository.FileRepository
	invoices repository.InvoiceRepository
	store    storage.Storage
	orch     *Orchestrator
	cache    cache.Cache
	queue    async.Queue
	logger   *slog.Logger
}

type ProcessorOption func(*Processor)

func WithCache(c cache.Cache) ProcessorOption {
	return func(p *Processor) { p.cache = c }
}

func NewProcessor(files repository.FileRepository, invoices repository.InvoiceRepository, store storage.Storage, orch *Orchestrator, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		files:    files,
		invoices: invoices,
		store:    store,
		orch:     orch,
		cache:    cache.Noop{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AttachQueue makes Upload hand new files to q. Without a queue, callers run ProcessFile
// themselves.
func (p *Processor) AttachQueue(q async.Queue) {
	p.queue = q
}

// Upload validates and stores a document, records it as uploaded and queues it for
// processing. A document whose bytes were already uploaded returns the existing record and
// dedup=true, unless that record ended in error.
func (p *Processor) Upload(ctx context.Context, req UploadRequest) (f *entity.File, dedup bool, err error) {
	mediaType := constants.NormalizeExt(req.MediaType)
	if mediaType == "" {
		mediaType = constants.NormalizeExt(filepath.Ext(req.FileName))
	}
	if err := validateUpload(req.Content, mediaType); err != nil {
		return nil, false, err
	}

	sum := sha256.Sum256(req.Content)
	if existing, err := p.files.GetByHash(ctx, sum[:]); err == nil && existing.Status != constants.FileStatusError {
		p.logger.Info("processor.upload.duplicate", "file_id", existing.ID, "status", existing.Status)
		return existing, true, nil
	} else if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	url, err := p.store.Store(ctx, req.Content, req.FileName)
	if err != nil {
		p.logger.Error("processor.upload.store_failed", "file_name", req.FileName, "error", err)
		return nil, false, fmt.Errorf("%w: %w", common.ErrStorageFailure, err)
	}

	uploadedBy := req.UploadedBy
	if uploadedBy == "" {
		uploadedBy = common.UploadedByFromContext(ctx)
	}
	f = &entity.File{
		UploadedBy:  uploadedBy,
		FileURL:     url,
		FileName:    req.FileName,
		FileType:    mediaType,
		ContentHash: sum[:],
		FileSize:    int64(len(req.Content)),
		Status:      constants.FileStatusUploaded,
	}
	if err := p.files.Create(ctx, f); err != nil {
		if delErr := p.store.Delete(ctx, url); delErr != nil {
			p.logger.Warn("processor.upload.cleanup_failed", "file_url", url, "error", delErr)
		}
		return nil, false, err
	}
	p.logger.Info("processor.upload.ok", "file_id", f.ID, "file_name", f.FileName, "bytes", f.FileSize)

	if p.queue != nil {
		job := async.Job{FileID: f.ID, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}
		if err := p.queue.Enqueue(ctx, job); err != nil {
			return f, false, fmt.Errorf("enqueue %s: %w", f.ID, err)
		}
	}
	return f, false, nil
}

func validateUpload(content []byte, mediaType string) error {
	if len(content) == 0 {
		return fmt.Errorf("empty document: %w", common.ErrInvalidInput)
	}
	if len(content) > constants.MaxUploadBytes {
		return fmt.Errorf("%d bytes exceeds the %d byte limit: %w", len(content), constants.MaxUploadBytes, common.ErrTooLarge)
	}
	if _, ok := constants.AllowedExtensions[mediaType]; !ok {
		return fmt.Errorf("%q: %w", mediaType, common.ErrUnsupported)
	}
	return nil
}

// ProcessFile extracts the stored document for fileID and creates its invoice. The file ends
// in status parsed, or error with the reason recorded.
func (p *Processor) ProcessFile(ctx context.Context, fileID uuid.UUID) error {
	f, err := p.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	log := p.logger.With("file_id", fileID)

	if err := p.files.UpdateStatus(ctx, fileID, constants.FileStatusParsing, ""); err != nil {
		return err
	}

	inv, err := p.process(ctx, f)
	if err != nil {
		log.Error("processor.process.failed", "error", err)
		// The caller's context may be what failed; record the error regardless.
		statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if serr := p.files.UpdateStatus(statusCtx, fileID, constants.FileStatusError, err.Error()); serr != nil {
			log.Error("processor.status.failed", "error", serr)
		}
		return err
	}

	log.Info("processor.process.ok",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"method", inv.ProcessingMethod,
	)
	return nil
}

func (p *Processor) process(ctx context.Context, f *entity.File) (*entity.Invoice, error) {
	content, err := p.store.Fetch(ctx, f.FileURL)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	data := p.Extract(ctx, entity.RawDocument{Content: content, MediaType: f.FileType, FileName: f.FileName})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.files.UpdateExtraction(ctx, f.ID, data.ExtractedText, data.OCRConfidence, data.PageCount); err != nil {
		return nil, err
	}

	inv := entity.NewInvoice(data, entity.InvoiceMeta{
		UploadedBy: f.UploadedBy,
		FileURL:    f.FileURL,
		FileID:     &f.ID,
	})
	if err := p.invoices.Create(ctx, &inv); err != nil {
		return nil, err
	}
	if err := p.files.LinkInvoice(ctx, f.ID, inv.ID); err != nil {
		return nil, err
	}
	if err := p.files.UpdateStatus(ctx, f.ID, constants.FileStatusParsed, ""); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Extract runs the orchestrator over doc, reusing a cached result for identical bytes. Error
// fallbacks are not cached.
func (p *Processor) Extract(ctx context.Context, doc entity.RawDocument) entity.InvoiceData {
	key := cache.Key(doc.Content)
	if data, ok := p.cache.Get(ctx, key); ok {
		p.logger.Debug("processor.cache.hit", "key", key)
		return data
	}
	data := p.orch.ProcessDocument(ctx, doc)
	if data.ProcessingMethod != constants.MethodFallbackFailed {
		p.cache.Set(ctx, key, data)
	}
	return data
}

// Delete removes a file's invoices, its record and its blob. A blob that cannot be removed is
// logged and left behind.
func (p *Processor) Delete(ctx context.Context, fileID uuid.UUID) error {
	f, err := p.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	n, err := p.invoices.DeleteByFileURL(ctx, f.FileURL)
	if err != nil {
		return err
	}
	if err := p.files.Delete(ctx, fileID); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, f.FileURL); err != nil {
		p.logger.Warn("processor.delete.blob_failed", "file_id", fileID, "file_url", f.FileURL, "error", err)
	}
	p.logger.Info("processor.delete.ok", "file_id", fileID, "invoices_deleted", n)
	return nil
}
