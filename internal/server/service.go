package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/ingest"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
)

// maxTextRunes bounds the text accepted by ExtractText.
const maxTextRunes = 1 << 20

// DocumentProcessor is the part of pipeline.Processor the service needs.
type DocumentProcessor interface {
	Extract(ctx context.Context, doc entity.RawDocument) entity.InvoiceData
	Upload(ctx context.Context, req pipeline.UploadRequest) (*entity.File, bool, error)
	Delete(ctx context.Context, fileID uuid.UUID) error
}

// TextProcessor runs extraction over already-recognized text; pipeline.Orchestrator implements it.
type TextProcessor interface {
	Process(ctx context.Context, text, mediaType string) entity.InvoiceData
}

// Exporter renders invoices within a date window as an XLSX workbook.
type Exporter interface {
	ExportInvoicesXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
}

type ExtractionService struct {
	proc     DocumentProcessor
	text     TextProcessor
	files    repository.FileRepository
	invoices repository.InvoiceRepository
	ingestor ingest.Ingestor
	exporter Exporter
	logger   *slog.Logger
}

var _ ExtractionServer = (*ExtractionService)(nil)

type ServiceOption func(*ExtractionService)

func WithIngestor(i ingest.Ingestor) ServiceOption {
	return func(s *ExtractionService) { s.ingestor = i }
}

func WithExporter(e Exporter) ServiceOption {
	return func(s *ExtractionService) { s.exporter = e }
}

func NewExtractionService(proc DocumentProcessor, text TextProcessor, files repository.FileRepository, invoices repository.InvoiceRepository, logger *slog.Logger, opts ...ServiceOption) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExtractionService{proc: proc, text: text, files: files, invoices: invoices, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractDocument runs the full pipeline over {content (base64), media_type, file_name} and
// returns the InvoiceData. Nothing is persisted.
func (s *ExtractionService) ExtractDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	content, err := decodeContent(req)
	if err != nil {
		return nil, err
	}
	fileName := stringField(req, "file_name")
	mediaType := mediaTypeOf(stringField(req, "media_type"), fileName)

	if len(content) > constants.MaxUploadBytes {
		return nil, fmt.Errorf("content is %d bytes: %w", len(content), common.ErrTooLarge)
	}
	v := common.NewValidator().
		Field("content", content, common.Required).
		Field("media_type", mediaType, common.OneOf(constants.FileTypes...))
	if err := v.Error(); err != nil {
		return nil, err
	}

	data := s.proc.Extract(ctx, entity.RawDocument{Content: content, MediaType: mediaType, FileName: fileName})
	common.LoggerFromContext(ctx, s.logger).Info("server.extract.ok",
		"method", data.ProcessingMethod,
		"invoice_number", data.InvoiceNumber,
		"line_items", len(data.LineItems),
	)
	return toStruct(data)
}

// ExtractText runs field and line-item extraction over {text, media_type}.
func (s *ExtractionService) ExtractText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := stringField(req, "text")
	mediaType := constants.NormalizeExt(stringField(req, "media_type"))
	if mediaType == "" {
		mediaType = "pdf"
	}
	v := common.NewValidator().
		Field("text", text, common.Required, common.MaxLength(maxTextRunes)).
		Field("media_type", mediaType, common.OneOf(constants.FileTypes...))
	if err := v.Error(); err != nil {
		return nil, err
	}
	return toStruct(s.text.Process(ctx, text, mediaType))
}

// UploadDocument stores {content, file_name, uploaded_by} and queues it for processing.
func (s *ExtractionService) UploadDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	content, err := decodeContent(req)
	if err != nil {
		return nil, err
	}
	fileName := strings.TrimSpace(stringField(req, "file_name"))
	v := common.NewValidator().
		Field("file_name", fileName, common.Required, common.MaxLength(255)).
		Field("uploaded_by", stringField(req, "uploaded_by"), common.MaxLength(255))
	if err := v.Error(); err != nil {
		return nil, err
	}

	f, dedup, err := s.proc.Upload(ctx, pipeline.UploadRequest{
		Content:    content,
		FileName:   fileName,
		MediaType:  stringField(req, "media_type"),
		UploadedBy: stringField(req, "uploaded_by"),
	})
	if err != nil {
		return nil, err
	}
	file, err := toValue(f)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"file":         file,
		"deduplicated": structpb.NewBoolValue(dedup),
	}}, nil
}

// IngestDirectory uploads every supported document under {root_path}. skip_hidden defaults to
// true.
func (s *ExtractionService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.ingestor == nil {
		return nil, status.Error(codes.Unimplemented, "directory ingest is not enabled")
	}
	root := strings.TrimSpace(stringField(req, "root_path"))
	if err := common.NewValidator().Field("root_path", root, common.Required).Error(); err != nil {
		return nil, err
	}
	skipHidden := boolField(req, "skip_hidden", true)

	log := common.LoggerFromContext(ctx, s.logger)
	log.Info("server.ingest.start", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return nil, fmt.Errorf("ingest directory: %w: %w", common.ErrInvalidInput, err)
	}
	log.Info("server.ingest.ok",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)

	items := make([]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"source_path":  r.SourcePath,
			"file_id":      r.FileID,
			"deduplicated": r.Deduplicated,
			"hash_hex":     r.HashHex,
			"file_ext":     r.FileExt,
			"uploaded_at":  r.UploadedAt.UTC().Format(time.RFC3339),
			"error":        r.Err,
		})
	}
	return structpb.NewStruct(map[string]any{
		"scanned":      float64(stats.Scanned),
		"matched":      float64(stats.Matched),
		"succeeded":    float64(stats.Succeeded),
		"deduplicated": float64(stats.Deduplicated),
		"failed":       float64(stats.Failed),
		"results":      items,
	})
}

// GetFile returns the file record for {id}, including its processing status.
func (s *ExtractionService) GetFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	f, err := s.files.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStruct(f)
}

// DeleteFile removes a file, the invoices extracted from it and its stored blob.
func (s *ExtractionService) DeleteFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	if err := s.proc.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"deleted": structpb.NewBoolValue(true)}}, nil
}

// GetInvoice returns the invoice record for {id}.
func (s *ExtractionService) GetInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStruct(inv)
}

// ListInvoices returns {invoices} dated within {from_date, to_date}, oldest first. With
// {with_text: true} it instead returns every invoice that kept its extracted text, newest first.
func (s *ExtractionService) ListInvoices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fd := strings.TrimSpace(stringField(req, "from_date"))
	td := strings.TrimSpace(stringField(req, "to_date"))
	v := common.NewValidator().
		Field("from_date", fd, common.ISODate).
		Field("to_date", td, common.ISODate)
	if err := v.Error(); err != nil {
		return nil, err
	}

	var (
		invs []*entity.Invoice
		err  error
	)
	if boolField(req, "with_text", false) {
		invs, err = s.invoices.ListWithText(ctx)
	} else {
		invs, err = s.invoices.List(ctx, parseOptionalDate(fd), parseOptionalDate(td))
	}
	if err != nil {
		return nil, err
	}

	items := make([]*structpb.Value, 0, len(invs))
	for _, inv := range invs {
		item, err := toValue(inv)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"invoices": structpb.NewListValue(&structpb.ListValue{Values: items}),
	}}, nil
}

// UpdateInvoice applies reviewer {corrections} (field name -> value) to invoice {id} and
// optionally marks it {verified}. Corrected fields are recorded on the invoice.
func (s *ExtractionService) UpdateInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	corrections := req.GetFields()["corrections"].GetStructValue().GetFields()
	_, hasVerified := req.GetFields()["verified"]
	if len(corrections) == 0 && !hasVerified {
		return nil, fmt.Errorf("corrections or verified is required: %w", common.ErrInvalidInput)
	}

	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(corrections))
	for name := range corrections {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		if err := inv.Correct(name, scalarString(corrections[name])); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
	}
	if hasVerified {
		inv.IsVerified = boolField(req, "verified", inv.IsVerified)
	}

	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	common.LoggerFromContext(ctx, s.logger).Info("server.invoice.updated",
		"invoice_id", inv.ID,
		"corrected", fields,
		"verified", inv.IsVerified,
	)
	return toStruct(inv)
}

// ExportInvoices returns {xlsx (base64)} for invoices dated within {from_date, to_date}.
// Only from -> from..today, only to -> beginning..to, neither -> all.
func (s *ExtractionService) ExportInvoices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.exporter == nil {
		return nil, status.Error(codes.Unimplemented, "export is not enabled")
	}
	fd := strings.TrimSpace(stringField(req, "from_date"))
	td := strings.TrimSpace(stringField(req, "to_date"))
	v := common.NewValidator().
		Field("from_date", fd, common.ISODate).
		Field("to_date", td, common.ISODate)
	if err := v.Error(); err != nil {
		return nil, err
	}

	xlsx, err := s.exporter.ExportInvoicesXLSX(ctx, parseOptionalDate(fd), parseOptionalDate(td))
	if err != nil {
		common.LoggerFromContext(ctx, s.logger).Error("export.xlsx.failed", "err", err)
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"xlsx": structpb.NewStringValue(base64.StdEncoding.EncodeToString(xlsx)),
	}}, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func boolField(s *structpb.Struct, name string, def bool) bool {
	v, ok := s.GetFields()[name]
	if !ok {
		return def
	}
	if b, ok := v.GetKind().(*structpb.Value_BoolValue); ok {
		return b.BoolValue
	}
	return def
}

func scalarString(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return v.GetStringValue()
	}
}

func idField(s *structpb.Struct) (uuid.UUID, error) {
	raw := strings.TrimSpace(stringField(s, "id"))
	if err := common.NewValidator().Field("id", raw, common.Required, common.UUID).Error(); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func decodeContent(s *structpb.Struct) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(stringField(s, "content"))
	if err != nil {
		return nil, fmt.Errorf("content must be base64: %w", common.ErrInvalidInput)
	}
	return b, nil
}

func mediaTypeOf(mediaType, fileName string) string {
	if strings.Contains(mediaType, "/") {
		return constants.MediaTypeFromMIME(mediaType)
	}
	if mt := constants.NormalizeExt(mediaType); mt != "" {
		return mt
	}
	return constants.NormalizeExt(filepath.Ext(fileName))
}

func parseOptionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(entity.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// toStruct converts a JSON-tagged value into a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func toValue(v any) (*structpb.Value, error) {
	s, err := toStruct(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewStructValue(s), nil
}
