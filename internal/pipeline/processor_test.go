package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/async"
	"github.com/joseph-ayodele/invoice-tracker/internal/cache"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/extract"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
	"github.com/joseph-ayodele/invoice-tracker/internal/storage"
)

const sampleInvoiceText = "INVOICE #INV-2024-7\n" +
	"From: Northwind Supplies\n" +
	"Date: 12/03/2024\n" +
	"Consulting 4 $125.00\n" +
	"TOTAL: $500.00"

type countingText struct {
	calls atomic.Int32
	text  string
}

func (c *countingText) Extract(context.Context, entity.RawDocument) extract.TextResult {
	c.calls.Add(1)
	return extract.TextResult{Text: c.text, Confidence: 0.9, PageCount: 1, Method: constants.OCRMethodImageOCR}
}

type fakeQueue struct{ jobs []async.Job }

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *fakeQueue) Shutdown(context.Context) {}

type failingStore struct{ storage.Storage }

func (failingStore) Delete(context.Context, string) error { return errors.New("blob service down") }

type testEnv struct {
	proc     *Processor
	files    repository.FileRepository
	invoices repository.InvoiceRepository
	store    *storage.Local
	text     *countingText
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	cfg := repository.Config{Driver: repository.DriverSQLite, DSN: "file:" + filepath.Join(dir, "test.db")}
	require.NoError(t, repository.Migrate(cfg, logger))
	db, err := repository.Open(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store, err := storage.NewLocal(filepath.Join(dir, "blobs"), logger)
	require.NoError(t, err)

	text := &countingText{text: sampleInvoiceText}
	mem := cache.NewMemory(0, 16)
	t.Cleanup(mem.Close)

	env := &testEnv{
		files:    repository.NewFileRepository(db, logger),
		invoices: repository.NewInvoiceRepository(db, logger),
		store:    store,
		text:     text,
	}
	env.proc = NewProcessor(env.files, env.invoices, store, NewOrchestrator(text, logger), logger, WithCache(mem))
	return env
}

func TestProcessor_UploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.proc.Upload(ctx, UploadRequest{FileName: "a.pdf"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = env.proc.Upload(ctx, UploadRequest{Content: []byte("GIF89a"), FileName: "a.gif"})
	assert.ErrorIs(t, err, common.ErrUnsupported)

	big := make([]byte, constants.MaxUploadBytes+1)
	_, _, err = env.proc.Upload(ctx, UploadRequest{Content: big, FileName: "a.png"})
	assert.ErrorIs(t, err, common.ErrTooLarge)
}

func TestProcessor_UploadProcessDelete(t *testing.T) {
	env := newTestEnv(t)
	q := &fakeQueue{}
	env.proc.AttachQueue(q)
	ctx := common.WithRequestID(context.Background(), "req-1")

	f, dedup, err := env.proc.Upload(ctx, UploadRequest{Content: []byte("png bytes"), FileName: "scan.PNG", UploadedBy: "bob"})
	require.NoError(t, err)
	assert.False(t, dedup)
	assert.Equal(t, "png", f.FileType)
	assert.Equal(t, constants.FileStatusUploaded, f.Status)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, f.ID, q.jobs[0].FileID)
	assert.Equal(t, "req-1", q.jobs[0].TraceID)

	again, dedup, err := env.proc.Upload(ctx, UploadRequest{Content: []byte("png bytes"), FileName: "copy.png"})
	require.NoError(t, err)
	assert.True(t, dedup)
	assert.Equal(t, f.ID, again.ID, "identical bytes are not stored twice")
	assert.Len(t, q.jobs, 1)

	require.NoError(t, env.proc.ProcessFile(ctx, f.ID))

	stored, err := env.files.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.FileStatusParsed, stored.Status)
	assert.Equal(t, sampleInvoiceText, stored.ExtractedText)
	assert.Equal(t, 0.9, stored.ConfidenceScore)
	require.NotNil(t, stored.InvoiceID)

	inv, err := env.invoices.Get(ctx, *stored.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-7", inv.InvoiceNumber)
	assert.Equal(t, "Northwind Supplies", inv.Vendor.Name)
	assert.Equal(t, 500.0, inv.TotalAmount)
	assert.Equal(t, "2024-03-12", inv.InvoiceDate.Format(entity.DateLayout))
	assert.Equal(t, "bob", inv.UploadedBy)
	assert.Equal(t, string(constants.InvoiceTypePurchase), inv.InvoiceType)
	assert.Equal(t, constants.MethodFallback, inv.ProcessingMethod)
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, 500.0, inv.LineItems[0].LineTotal)

	require.NoError(t, env.proc.Delete(ctx, f.ID))
	_, err = env.files.Get(ctx, f.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = env.invoices.Get(ctx, inv.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = env.store.Fetch(ctx, f.FileURL)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessor_ProcessFileMissingBlobMarksError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	f, _, err := env.proc.Upload(ctx, UploadRequest{Content: []byte("%PDF-1.7"), FileName: "a.pdf"})
	require.NoError(t, err)
	require.NoError(t, env.store.Delete(ctx, f.FileURL))

	err = env.proc.ProcessFile(ctx, f.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	stored, err := env.files.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.FileStatusError, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "blob not found")
	assert.Nil(t, stored.InvoiceID)

	// An errored upload may be submitted again.
	retry, _, err := env.proc.Upload(ctx, UploadRequest{Content: []byte("%PDF-1.7"), FileName: "a.pdf"})
	require.NoError(t, err)
	assert.NotEqual(t, f.ID, retry.ID)
}

func TestProcessor_ExtractUsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := entity.RawDocument{Content: []byte("same bytes"), MediaType: "png"}

	first := env.proc.Extract(ctx, doc)
	second := env.proc.Extract(ctx, doc)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), env.text.calls.Load())
}

func TestProcessor_DeleteToleratesBlobFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	f, _, err := env.proc.Upload(ctx, UploadRequest{Content: []byte("jpeg"), FileName: "a.jpg"})
	require.NoError(t, err)

	proc := NewProcessor(env.files, env.invoices, failingStore{env.store}, env.proc.orch, nil)
	require.NoError(t, proc.Delete(ctx, f.ID))
	_, err = env.files.Get(ctx, f.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, proc.Delete(ctx, uuid.New()), common.ErrNotFound)
}
