package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/ocr"
)

type engineFunc func(ctx context.Context, doc entity.RawDocument) (ocr.ExtractionResult, error)

func (f engineFunc) Extract(ctx context.Context, doc entity.RawDocument) (ocr.ExtractionResult, error) {
	return f(ctx, doc)
}

var doc = entity.RawDocument{Content: []byte("x"), MediaType: "png", FileName: "a.png"}

func TestOCRAdapter_PassesThrough(t *testing.T) {
	a := NewOCRAdapter(engineFunc(func(context.Context, entity.RawDocument) (ocr.ExtractionResult, error) {
		return ocr.ExtractionResult{Text: "hello", Confidence: 0.9, Pages: 0, Method: constants.OCRMethodImageOCR}, nil
	}), 0, nil)

	res := a.Extract(context.Background(), doc)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, 1, res.PageCount)
	assert.False(t, res.Degraded)
}

func TestOCRAdapter_ErrorYieldsCannedText(t *testing.T) {
	a := NewOCRAdapter(engineFunc(func(context.Context, entity.RawDocument) (ocr.ExtractionResult, error) {
		return ocr.ExtractionResult{}, errors.New("tesseract: exit status 1")
	}), time.Second, nil)

	res := a.Extract(context.Background(), doc)
	assert.Equal(t, CannedText, res.Text)
	assert.Equal(t, constants.ConfidenceDegraded, res.Confidence)
	assert.Equal(t, constants.OCRMethodCanned, res.Method)
	assert.True(t, res.Degraded)
	assert.Equal(t, 1, res.PageCount)
}

func TestOCRAdapter_EmptyTextPassesThrough(t *testing.T) {
	a := NewOCRAdapter(engineFunc(func(context.Context, entity.RawDocument) (ocr.ExtractionResult, error) {
		return ocr.ExtractionResult{Text: "", Confidence: 0.95, Pages: 2, Method: constants.OCRMethodPDFOCR}, nil
	}), time.Second, nil)

	res := a.Extract(context.Background(), doc)
	assert.Empty(t, res.Text)
	assert.False(t, res.Degraded)
	assert.Equal(t, constants.OCRMethodPDFOCR, res.Method)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, 0.95, res.Confidence)
}

func TestOCRAdapter_TimeoutYieldsCannedText(t *testing.T) {
	a := NewOCRAdapter(engineFunc(func(ctx context.Context, _ entity.RawDocument) (ocr.ExtractionResult, error) {
		<-ctx.Done()
		return ocr.ExtractionResult{}, ctx.Err()
	}), 20*time.Millisecond, nil)

	start := time.Now()
	res := a.Extract(context.Background(), doc)
	assert.True(t, res.Degraded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOCRAdapter_TimeoutWhenEngineIgnoresContext(t *testing.T) {
	a := NewOCRAdapter(engineFunc(func(context.Context, entity.RawDocument) (ocr.ExtractionResult, error) {
		time.Sleep(2 * time.Second)
		return ocr.ExtractionResult{Text: "late"}, nil
	}), 50*time.Millisecond, nil)

	start := time.Now()
	res := a.Extract(context.Background(), doc)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Degraded)
	assert.Equal(t, CannedText, res.Text)
}

func TestOCRAdapter_PanicYieldsCannedText(t *testing.T) {
	a := NewOCRAdapter(engineFunc(func(context.Context, entity.RawDocument) (ocr.ExtractionResult, error) {
		panic("boom")
	}), time.Second, nil)

	res := a.Extract(context.Background(), doc)
	assert.True(t, res.Degraded)
	assert.Equal(t, CannedText, res.Text)
}
