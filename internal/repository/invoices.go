package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

const invoicesTable = "invoices"

var invoiceColumns = []string{
	"id", "file_id", "uploaded_by", "invoice_type", "file_url", "invoice_number", "invoice_date",
	"due_date", "vendor_name", "vendor_address", "vendor_contact", "buyer_name", "buyer_address",
	"total_amount", "currency", "tax_details", "po_number", "payment_terms", "line_items",
	"confidence_score", "is_verified", "extracted_text", "ocr_confidence", "processing_method",
	"parsed_fields", "corrected_fields", "created_at", "updated_at",
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	// List returns invoices dated within [from, to], oldest first. Nil bounds are open.
	List(ctx context.Context, from, to *time.Time) ([]*entity.Invoice, error)
	// ListWithText returns invoices that kept their extracted text, newest first.
	ListWithText(ctx context.Context) ([]*entity.Invoice, error)
	Update(ctx context.Context, inv *entity.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByFileURL(ctx context.Context, fileURL string) (int64, error)
}

type invoiceRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepo{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (r *invoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := r.now()
	inv.CreatedAt, inv.UpdatedAt = now, now

	vals, err := invoiceValues(inv)
	if err != nil {
		return err
	}
	q := r.db.builder().Insert(invoicesTable).Columns(invoiceColumns...).Values(vals...)
	if _, err := r.db.exec(ctx, q); err != nil {
		r.logger.Error("failed to create invoice", "invoice_number", inv.InvoiceNumber, "error", err)
		return err
	}
	return nil
}

func (r *invoiceRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	b := r.db.builder()
	q := b.Select(invoiceColumns...).From(b.Table(invoicesTable)).Where(entsql.EQ("id", id)).Limit(1)
	invs, err := r.query(ctx, q)
	if err != nil {
		r.logger.Error("failed to get invoice", "invoice_id", id, "error", err)
		return nil, err
	}
	if len(invs) == 0 {
		return nil, fmt.Errorf("invoice %s: %w", id, common.ErrNotFound)
	}
	return invs[0], nil
}

func (r *invoiceRepo) List(ctx context.Context, from, to *time.Time) ([]*entity.Invoice, error) {
	b := r.db.builder()
	q := b.Select(invoiceColumns...).From(b.Table(invoicesTable))
	var preds []*entsql.Predicate
	if from != nil {
		preds = append(preds, entsql.GTE("invoice_date", from.Format(entity.DateLayout)))
	}
	if to != nil {
		preds = append(preds, entsql.LTE("invoice_date", to.Format(entity.DateLayout)))
	}
	if len(preds) > 0 {
		q = q.Where(entsql.And(preds...))
	}
	q = q.OrderBy(entsql.Asc("invoice_date"), entsql.Asc("created_at"))

	invs, err := r.query(ctx, q)
	if err != nil {
		r.logger.Error("failed to list invoices", "from", from, "to", to, "error", err)
		return nil, err
	}
	return invs, nil
}

func (r *invoiceRepo) ListWithText(ctx context.Context) ([]*entity.Invoice, error) {
	b := r.db.builder()
	q := b.Select(invoiceColumns...).From(b.Table(invoicesTable)).
		Where(entsql.NEQ("extracted_text", "")).
		OrderBy(entsql.Desc("created_at"))
	invs, err := r.query(ctx, q)
	if err != nil {
		r.logger.Error("failed to list invoices with text", "error", err)
		return nil, err
	}
	return invs, nil
}

// Update rewrites every mutable column of inv.
func (r *invoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	inv.UpdatedAt = r.now()
	vals, err := invoiceValues(inv)
	if err != nil {
		return err
	}
	u := r.db.builder().Update(invoicesTable)
	// id and created_at are immutable.
	for i, col := range invoiceColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		u = u.Set(col, vals[i])
	}
	u = u.Where(entsql.EQ("id", inv.ID))

	n, err := r.db.exec(ctx, u)
	if err != nil {
		r.logger.Error("failed to update invoice", "invoice_id", inv.ID, "error", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("invoice %s: %w", inv.ID, common.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.db.exec(ctx, r.db.builder().Delete(invoicesTable).Where(entsql.EQ("id", id)))
	if err != nil {
		r.logger.Error("failed to delete invoice", "invoice_id", id, "error", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("invoice %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepo) DeleteByFileURL(ctx context.Context, fileURL string) (int64, error) {
	n, err := r.db.exec(ctx, r.db.builder().Delete(invoicesTable).Where(entsql.EQ("file_url", fileURL)))
	if err != nil {
		r.logger.Error("failed to delete invoices by file url", "file_url", fileURL, "error", err)
		return 0, err
	}
	return n, nil
}

func invoiceValues(inv *entity.Invoice) ([]any, error) {
	items, err := marshalJSON(inv.LineItems, "[]")
	if err != nil {
		return nil, err
	}
	parsed, err := marshalJSON(inv.ParsedFields, "[]")
	if err != nil {
		return nil, err
	}
	corrected, err := marshalJSON(inv.CorrectedFields, "[]")
	if err != nil {
		return nil, err
	}
	return []any{
		inv.ID, nullableUUID(inv.FileID), inv.UploadedBy, inv.InvoiceType, inv.FileURL,
		inv.InvoiceNumber, nullableDate(inv.InvoiceDate), nullableDate(inv.DueDate),
		inv.Vendor.Name, inv.Vendor.Address, inv.Vendor.Contact, inv.Buyer.Name, inv.Buyer.Address,
		inv.TotalAmount, inv.Currency, inv.TaxDetails, inv.PONumber, inv.PaymentTerms, items,
		inv.ConfidenceScore, inv.IsVerified, inv.ExtractedText, inv.OCRConfidence,
		inv.ProcessingMethod, parsed, corrected, inv.CreatedAt, inv.UpdatedAt,
	}, nil
}

func (r *invoiceRepo) query(ctx context.Context, q querier) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	err := r.db.queryRows(ctx, q, func(rows *entsql.Rows) error {
		var (
			inv                      entity.Invoice
			fileID                   uuid.NullUUID
			invoiceDate, dueDate     sql.NullString
			items, parsed, corrected []byte
		)
		if err := rows.Scan(
			&inv.ID, &fileID, &inv.UploadedBy, &inv.InvoiceType, &inv.FileURL, &inv.InvoiceNumber,
			&invoiceDate, &dueDate, &inv.Vendor.Name, &inv.Vendor.Address, &inv.Vendor.Contact,
			&inv.Buyer.Name, &inv.Buyer.Address, &inv.TotalAmount, &inv.Currency, &inv.TaxDetails,
			&inv.PONumber, &inv.PaymentTerms, &items, &inv.ConfidenceScore, &inv.IsVerified,
			&inv.ExtractedText, &inv.OCRConfidence, &inv.ProcessingMethod, &parsed, &corrected,
			&inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return err
		}
		if fileID.Valid {
			id := fileID.UUID
			inv.FileID = &id
		}
		inv.InvoiceDate = scanDate(invoiceDate)
		inv.DueDate = scanDate(dueDate)
		if err := unmarshalJSON(items, &inv.LineItems); err != nil {
			return fmt.Errorf("line_items: %w", err)
		}
		if err := unmarshalJSON(parsed, &inv.ParsedFields); err != nil {
			return fmt.Errorf("parsed_fields: %w", err)
		}
		if err := unmarshalJSON(corrected, &inv.CorrectedFields); err != nil {
			return fmt.Errorf("corrected_fields: %w", err)
		}
		out = append(out, &inv)
		return nil
	})
	return out, err
}

func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func nullableDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(entity.DateLayout), Valid: true}
}

func scanDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(entity.DateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
