package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/export"
	"github.com/joseph-ayodele/invoice-tracker/internal/extract"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
	"github.com/joseph-ayodele/invoice-tracker/internal/storage"
)

const sampleInvoiceText = "INVOICE #INV-2024-7\n" +
	"From: Northwind Supplies\n" +
	"Date: 12/03/2024\n" +
	"Consulting 4 $125.00\n" +
	"TOTAL: $500.00"

type staticText struct{}

func (staticText) Extract(context.Context, entity.RawDocument) extract.TextResult {
	return extract.TextResult{Text: sampleInvoiceText, Confidence: 0.9, PageCount: 1, Method: constants.OCRMethodImageOCR}
}

type harness struct {
	conn *grpc.ClientConn
	proc *pipeline.Processor
}

func newHarness(t *testing.T) *harness {
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

	files := repository.NewFileRepository(db, logger)
	invoices := repository.NewInvoiceRepository(db, logger)
	orch := pipeline.NewOrchestrator(staticText{}, logger)
	proc := pipeline.NewProcessor(files, invoices, store, orch, logger)

	svc := NewExtractionService(proc, orch, files, invoices, logger, WithExporter(export.NewService(invoices, logger)))
	srv, _ := NewGRPCServer(svc, logger)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{conn: conn, proc: proc}
}

func (h *harness) call(t *testing.T, method string, in map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	out := &structpb.Struct{}
	err = h.conn.Invoke(context.Background(), FullMethod(method), req, out, opts...)
	return out, err
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestExtractText(t *testing.T) {
	h := newHarness(t)

	out, err := h.call(t, "ExtractText", map[string]any{"text": sampleInvoiceText})
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "INV-2024-7", m["invoice_number"])
	assert.Equal(t, "Northwind Supplies", m["vendor_name"])
	assert.Equal(t, 500.0, m["total_amount"])
	assert.Equal(t, "2024-03-12", m["invoice_date"])
	assert.Len(t, m["line_items"], 1)

	_, err = h.call(t, "ExtractText", map[string]any{"text": "  "})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestExtractDocument(t *testing.T) {
	h := newHarness(t)

	var header metadata.MD
	out, err := h.call(t, "ExtractDocument",
		map[string]any{"content": b64("%PDF-1.7"), "media_type": "application/pdf"},
		grpc.Header(&header),
	)
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-7", out.AsMap()["invoice_number"])
	assert.Equal(t, 0.9, out.AsMap()["ocr_confidence"])
	assert.NotEmpty(t, header.Get(RequestIDHeader))

	tests := []struct {
		name string
		in   map[string]any
		code codes.Code
	}{
		{"empty content", map[string]any{"content": "", "file_name": "a.pdf"}, codes.InvalidArgument},
		{"not base64", map[string]any{"content": "***", "file_name": "a.pdf"}, codes.InvalidArgument},
		{"unsupported type", map[string]any{"content": b64("GIF89a"), "file_name": "a.gif"}, codes.InvalidArgument},
		{"too large", map[string]any{"content": base64.StdEncoding.EncodeToString(make([]byte, constants.MaxUploadBytes+1)), "file_name": "a.png"}, codes.ResourceExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.call(t, "ExtractDocument", tt.in, grpc.MaxCallSendMsgSize(32<<20))
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestUploadProcessAndFetch(t *testing.T) {
	h := newHarness(t)

	out, err := h.call(t, "UploadDocument", map[string]any{
		"content":     b64("png bytes"),
		"file_name":   "scan.png",
		"uploaded_by": "alice",
	})
	require.NoError(t, err)
	file := out.AsMap()["file"].(map[string]any)
	assert.Equal(t, false, out.AsMap()["deduplicated"])
	assert.Equal(t, string(constants.FileStatusUploaded), file["status"])

	id := uuid.MustParse(file["id"].(string))
	require.NoError(t, h.proc.ProcessFile(context.Background(), id))

	out, err = h.call(t, "GetFile", map[string]any{"id": id.String()})
	require.NoError(t, err)
	file = out.AsMap()
	assert.Equal(t, string(constants.FileStatusParsed), file["status"])
	require.NotEmpty(t, file["invoice_id"])

	out, err = h.call(t, "GetInvoice", map[string]any{"id": file["invoice_id"]})
	require.NoError(t, err)
	inv := out.AsMap()
	assert.Equal(t, "INV-2024-7", inv["invoice_number"])
	assert.Equal(t, "alice", inv["uploaded_by"])

	out, err = h.call(t, "UpdateInvoice", map[string]any{
		"id":          file["invoice_id"],
		"corrections": map[string]any{"vendor_name": "Northwind Ltd", "total_amount": 525.5},
		"verified":    true,
	})
	require.NoError(t, err)
	inv = out.AsMap()
	assert.Equal(t, 525.5, inv["total_amount"])
	assert.Equal(t, true, inv["is_verified"])
	assert.Equal(t, []any{"total_amount", "vendor_name"}, inv["corrected_fields"])

	_, err = h.call(t, "UpdateInvoice", map[string]any{
		"id":          file["invoice_id"],
		"corrections": map[string]any{"id": "x"},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err = h.call(t, "ListInvoices", map[string]any{"from_date": "2024-03-01", "to_date": "2024-03-31"})
	require.NoError(t, err)
	assert.Len(t, out.AsMap()["invoices"], 1)
	out, err = h.call(t, "ListInvoices", map[string]any{"from_date": "2025-01-01"})
	require.NoError(t, err)
	assert.Empty(t, out.AsMap()["invoices"])
	out, err = h.call(t, "ListInvoices", map[string]any{"with_text": true})
	require.NoError(t, err)
	require.Len(t, out.AsMap()["invoices"], 1)
	listed := out.AsMap()["invoices"].([]any)[0].(map[string]any)
	assert.Equal(t, sampleInvoiceText, listed["extracted_text"])

	out, err = h.call(t, "ExportInvoices", map[string]any{"from_date": "2024-01-01", "to_date": "2024-12-31"})
	require.NoError(t, err)
	xlsx, err := base64.StdEncoding.DecodeString(out.AsMap()["xlsx"].(string))
	require.NoError(t, err)
	assert.Equal(t, "PK", string(xlsx[:2]))

	_, err = h.call(t, "DeleteFile", map[string]any{"id": id.String()})
	require.NoError(t, err)
	_, err = h.call(t, "GetFile", map[string]any{"id": id.String()})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.call(t, "GetInvoice", map[string]any{"id": file["invoice_id"]})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestLookupErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.call(t, "GetInvoice", map[string]any{"id": uuid.NewString()})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.call(t, "GetFile", map[string]any{"id": "not-a-uuid"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.call(t, "ExportInvoices", map[string]any{"from_date": "03/12/2024"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.call(t, "IngestDirectory", map[string]any{"root_path": "/tmp"})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestOpsRouter(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	srv := httptest.NewServer(NewOpsRouter(map[string]ReadinessCheck{"database": ok}, nil))
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	failing := httptest.NewServer(NewOpsRouter(map[string]ReadinessCheck{"database": ok, "cache": down}, nil))
	defer failing.Close()
	resp, err := http.Get(failing.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
