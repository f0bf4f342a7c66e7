package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

const filesTable = "files"

var fileColumns = []string{
	"id", "uploaded_by", "file_url", "file_name", "file_type", "content_hash", "file_size",
	"page_count", "status", "extracted_text", "confidence_score", "invoice_id", "error_message",
	"created_at", "updated_at",
}

type FileRepository interface {
	Create(ctx context.Context, f *entity.File) error
	Get(ctx context.Context, id uuid.UUID) (*entity.File, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.File, error)
	List(ctx context.Context, status constants.FileStatus) ([]*entity.File, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.FileStatus, errMsg string) error
	UpdateExtraction(ctx context.Context, id uuid.UUID, text string, confidence float64, pageCount int) error
	LinkInvoice(ctx context.Context, id, invoiceID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type fileRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewFileRepository(db *DB, logger *slog.Logger) FileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileRepo{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (r *fileRepo) Create(ctx context.Context, f *entity.File) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = constants.FileStatusUploaded
	}
	if f.UploadedBy == "" {
		f.UploadedBy = common.UploadedByFromContext(ctx)
	}
	f.FileType = constants.NormalizeExt(f.FileType)
	now := r.now()
	f.CreatedAt, f.UpdatedAt = now, now

	q := r.db.builder().Insert(filesTable).Columns(fileColumns...).Values(
		f.ID, f.UploadedBy, f.FileURL, f.FileName, f.FileType, f.ContentHash, f.FileSize,
		f.PageCount, string(f.Status), f.ExtractedText, f.ConfidenceScore, nullableUUID(f.InvoiceID),
		f.ErrorMessage, f.CreatedAt, f.UpdatedAt,
	)
	if _, err := r.db.exec(ctx, q); err != nil {
		r.logger.Error("failed to create file", "file_name", f.FileName, "error", err)
		return err
	}
	return nil
}

func (r *fileRepo) Get(ctx context.Context, id uuid.UUID) (*entity.File, error) {
	return r.getOne(ctx, entsql.EQ("id", id), "id", id)
}

func (r *fileRepo) GetByHash(ctx context.Context, hash []byte) (*entity.File, error) {
	return r.getOne(ctx, entsql.EQ("content_hash", hash), "content_hash", fmt.Sprintf("%x", hash))
}

func (r *fileRepo) getOne(ctx context.Context, p *entsql.Predicate, key string, val any) (*entity.File, error) {
	b := r.db.builder()
	q := b.Select(fileColumns...).From(b.Table(filesTable)).Where(p).OrderBy(entsql.Desc("created_at")).Limit(1)
	files, err := r.query(ctx, q)
	if err != nil {
		r.logger.Error("failed to get file", key, val, "error", err)
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("file %s=%v: %w", key, val, common.ErrNotFound)
	}
	return files[0], nil
}

// List returns files newest first, optionally filtered by status.
func (r *fileRepo) List(ctx context.Context, status constants.FileStatus) ([]*entity.File, error) {
	b := r.db.builder()
	q := b.Select(fileColumns...).From(b.Table(filesTable)).OrderBy(entsql.Desc("created_at"))
	if status != "" {
		q = q.Where(entsql.EQ("status", string(status)))
	}
	files, err := r.query(ctx, q)
	if err != nil {
		r.logger.Error("failed to list files", "status", status, "error", err)
		return nil, err
	}
	return files, nil
}

func (r *fileRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.FileStatus, errMsg string) error {
	q := r.db.builder().Update(filesTable).
		Set("status", string(status)).
		Set("error_message", errMsg).
		Set("updated_at", r.now()).
		Where(entsql.EQ("id", id))
	return r.updateOne(ctx, q, id)
}

func (r *fileRepo) UpdateExtraction(ctx context.Context, id uuid.UUID, text string, confidence float64, pageCount int) error {
	q := r.db.builder().Update(filesTable).
		Set("extracted_text", text).
		Set("confidence_score", confidence).
		Set("page_count", pageCount).
		Set("updated_at", r.now()).
		Where(entsql.EQ("id", id))
	return r.updateOne(ctx, q, id)
}

func (r *fileRepo) LinkInvoice(ctx context.Context, id, invoiceID uuid.UUID) error {
	q := r.db.builder().Update(filesTable).
		Set("invoice_id", invoiceID).
		Set("updated_at", r.now()).
		Where(entsql.EQ("id", id))
	return r.updateOne(ctx, q, id)
}

func (r *fileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	q := r.db.builder().Delete(filesTable).Where(entsql.EQ("id", id))
	n, err := r.db.exec(ctx, q)
	if err != nil {
		r.logger.Error("failed to delete file", "file_id", id, "error", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *fileRepo) updateOne(ctx context.Context, q querier, id uuid.UUID) error {
	n, err := r.db.exec(ctx, q)
	if err != nil {
		r.logger.Error("failed to update file", "file_id", id, "error", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *fileRepo) query(ctx context.Context, q querier) ([]*entity.File, error) {
	var out []*entity.File
	err := r.db.queryRows(ctx, q, func(rows *entsql.Rows) error {
		var (
			f         entity.File
			status    string
			invoiceID uuid.NullUUID
			hash      []byte
		)
		if err := rows.Scan(
			&f.ID, &f.UploadedBy, &f.FileURL, &f.FileName, &f.FileType, &hash, &f.FileSize,
			&f.PageCount, &status, &f.ExtractedText, &f.ConfidenceScore, &invoiceID, &f.ErrorMessage,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return err
		}
		f.Status = constants.FileStatus(status)
		f.ContentHash = hash
		if invoiceID.Valid {
			id := invoiceID.UUID
			f.InvoiceID = &id
		}
		out = append(out, &f)
		return nil
	})
	return out, err
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return sql.NullString{}
	}
	return *id
}
