package repository

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := Config{
		Driver: DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "invoices.db") + "?_pragma=foreign_keys(1)",
	}
	logger := slog.New(slog.DiscardHandler)
	require.NoError(t, Migrate(cfg, logger))
	// A second run is a no-op.
	require.NoError(t, Migrate(cfg, logger))

	db, err := Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func date(s string) *time.Time {
	t, _ := time.Parse(entity.DateLayout, s)
	return &t
}

func TestFileRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.HealthCheck(ctx, time.Second))
	repo := NewFileRepository(db, nil)

	f := &entity.File{
		FileURL:     "file:///uploads/invoices/a.pdf",
		FileName:    "a.pdf",
		FileType:    ".PDF",
		ContentHash: []byte{0xde, 0xad, 0xbe, 0xef},
		FileSize:    1234,
	}
	require.NoError(t, repo.Create(common.WithUploadedBy(ctx, "alice"), f))
	require.NotEqual(t, uuid.Nil, f.ID)

	got, err := repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UploadedBy)
	assert.Equal(t, "pdf", got.FileType)
	assert.Equal(t, constants.FileStatusUploaded, got.Status)
	assert.Equal(t, int64(1234), got.FileSize)
	assert.Nil(t, got.InvoiceID)

	byHash, err := repo.GetByHash(ctx, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.Equal(t, f.ID, byHash.ID)

	require.NoError(t, repo.UpdateStatus(ctx, f.ID, constants.FileStatusParsing, ""))
	require.NoError(t, repo.UpdateExtraction(ctx, f.ID, "INVOICE #1", 0.8, 2))
	invoiceID := uuid.New()
	require.NoError(t, repo.LinkInvoice(ctx, f.ID, invoiceID))
	require.NoError(t, repo.UpdateStatus(ctx, f.ID, constants.FileStatusParsed, ""))

	got, err = repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.FileStatusParsed, got.Status)
	assert.Equal(t, "INVOICE #1", got.ExtractedText)
	assert.Equal(t, 0.8, got.ConfidenceScore)
	assert.Equal(t, 2, got.PageCount)
	require.NotNil(t, got.InvoiceID)
	assert.Equal(t, invoiceID, *got.InvoiceID)

	parsed, err := repo.List(ctx, constants.FileStatusParsed)
	require.NoError(t, err)
	assert.Len(t, parsed, 1)
	errored, err := repo.List(ctx, constants.FileStatusError)
	require.NoError(t, err)
	assert.Empty(t, errored)

	require.NoError(t, repo.Delete(ctx, f.ID))
	_, err = repo.Get(ctx, f.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, f.ID), common.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), constants.FileStatusError, "x"), common.ErrNotFound)
}

func newTestInvoice(number, invoiceDate, fileURL, text string) *entity.Invoice {
	return &entity.Invoice{
		UploadedBy:       "system",
		InvoiceType:      string(constants.InvoiceTypePurchase),
		FileURL:          fileURL,
		InvoiceNumber:    number,
		InvoiceDate:      date(invoiceDate),
		DueDate:          date("2024-12-31"),
		Vendor:           entity.Party{Name: "Acme", Address: "1 Road"},
		Buyer:            entity.Party{Name: entity.DefaultBuyerName, Address: entity.DefaultBuyerAddress},
		TotalAmount:      150.5,
		Currency:         "USD",
		PaymentTerms:     entity.DefaultPaymentTerms,
		LineItems:        []entity.LineItem{entity.NewLineItem("Widget", 3, 50.1666)},
		ConfidenceScore:  0.5,
		ExtractedText:    text,
		OCRConfidence:    0.9,
		ProcessingMethod: constants.MethodFallback,
		ParsedFields:     []string{"invoice_number", "total_amount"},
	}
}

func TestInvoiceRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository(openTestDB(t), nil)

	inv := newTestInvoice("A-1", "2024-03-05", "url-a", "text")
	require.NoError(t, repo.Create(ctx, inv))

	got, err := repo.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "A-1", got.InvoiceNumber)
	require.NotNil(t, got.InvoiceDate)
	assert.Equal(t, "2024-03-05", got.InvoiceDate.Format(entity.DateLayout))
	assert.Equal(t, inv.LineItems, got.LineItems)
	assert.Equal(t, []string{"invoice_number", "total_amount"}, got.ParsedFields)
	assert.Empty(t, got.CorrectedFields)
	assert.False(t, got.IsVerified)
	assert.Equal(t, entity.DefaultBuyerName, got.Buyer.Name)
	assert.Nil(t, got.FileID)

	got.IsVerified = true
	got.TotalAmount = 200
	got.CorrectedFields = []string{"total_amount"}
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, again.IsVerified)
	assert.Equal(t, 200.0, again.TotalAmount)
	assert.Equal(t, []string{"total_amount"}, again.CorrectedFields)
	assert.WithinDuration(t, got.CreatedAt, again.CreatedAt, time.Second)

	require.NoError(t, repo.Delete(ctx, inv.ID))
	_, err = repo.Get(ctx, inv.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestInvoiceRepository_ListAndDeleteByURL(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository(openTestDB(t), nil)

	for _, inv := range []*entity.Invoice{
		newTestInvoice("J", "2024-01-15", "url-1", "some text"),
		newTestInvoice("F", "2024-02-15", "url-1", ""),
		newTestInvoice("M", "2024-03-15", "url-2", "more text"),
	} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	all, err := repo.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "J", all[0].InvoiceNumber)

	window, err := repo.List(ctx, date("2024-02-01"), date("2024-03-15"))
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "F", window[0].InvoiceNumber)
	assert.Equal(t, "M", window[1].InvoiceNumber)

	withText, err := repo.ListWithText(ctx)
	require.NoError(t, err)
	assert.Len(t, withText, 2)

	n, err := repo.DeleteByFileURL(ctx, "url-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rest, err := repo.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "M", rest[0].InvoiceNumber)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
