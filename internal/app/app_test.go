package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/internal/cache"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := common.DefaultConfig()
	cfg.Database.DSN = "file:" + filepath.Join(dir, "app.db")
	cfg.Storage.Dir = filepath.Join(dir, "uploads")
	return cfg
}

func TestNew_SQLiteLocalMemory(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	a, err := New(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &cache.Memory{}, a.Cache)
	checks := a.ReadinessChecks()
	require.Contains(t, checks, "database")
	assert.NotContains(t, checks, "cache")
	assert.NoError(t, checks["database"](context.Background()))

	f, dedup, err := a.Processor.Upload(context.Background(), pipeline.UploadRequest{Content: []byte("%PDF-1.4"), FileName: "a.pdf"})
	require.NoError(t, err)
	assert.False(t, dedup)
	got, err := a.Files.Get(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "system", got.UploadedBy)
}

func TestNew_RejectsUnknownBackends(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	cfg := testConfig(t)
	cfg.Storage.Backend = "ftp"
	_, err := New(context.Background(), cfg, logger)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	cfg = testConfig(t)
	cfg.Cache.Backend = "memcached"
	_, err = New(context.Background(), cfg, logger)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	cfg = testConfig(t)
	cfg.Cache.Backend = "none"
	a, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, cache.Noop{}, a.Cache)
}

func TestOCRConfig(t *testing.T) {
	c := OCRConfig(common.OCRConfig{Engine: "azure", Lang: "deu", DPI: 200, PageWorkers: 2, TSVConfidence: true, NativePDF: true})
	assert.Equal(t, "azure", c.Engine)
	assert.Equal(t, "deu", c.TesseractLang)
	assert.Equal(t, 200, c.DPI)
	assert.Equal(t, 2, c.PageWorkers)
	assert.True(t, c.EnableTSVConfidence)
	assert.True(t, c.NativePDF)
	assert.Equal(t, 6, c.PSM)
}

func TestStructuredBackend(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	assert.Nil(t, structuredBackend(common.StructuredConfig{Provider: "none"}, logger))
	assert.Equal(t, "layoutlm", structuredBackend(common.StructuredConfig{Provider: "layoutlm", URL: "http://localhost:1"}, logger).Name())
	assert.Equal(t, "openai", structuredBackend(common.StructuredConfig{Provider: "OpenAI", APIKey: "k"}, logger).Name())
}
