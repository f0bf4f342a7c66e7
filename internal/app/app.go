// Package app wires configuration into the repositories, storage, cache and extraction
// pipeline shared by the daemon and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/internal/cache"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/extract"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm/layoutlm"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-tracker/internal/ocr"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
	"github.com/joseph-ayodele/invoice-tracker/internal/storage"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config       *common.Config
	DB           *repository.DB
	Files        repository.FileRepository
	Invoices     repository.InvoiceRepository
	Store        storage.Storage
	Cache        cache.Cache
	Orchestrator *pipeline.Orchestrator
	Processor    *pipeline.Processor

	checks map[string]func(context.Context) error
	logger *slog.Logger
}

// RepositoryConfig maps the database section onto the repository's connection settings.
func RepositoryConfig(cfg common.DatabaseConfig) repository.Config {
	return repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}
}

// New connects to the database (migrating it first when AutoMigrate is set) and builds the
// pipeline. Close releases everything New opened.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger, checks: map[string]func(context.Context) error{}}

	dbCfg := RepositoryConfig(cfg.Database)
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(dbCfg, logger); err != nil {
			return nil, err
		}
	}
	db, err := repository.Open(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.checks["database"] = func(ctx context.Context) error { return db.HealthCheck(ctx, cfg.Database.DialTimeout) }
	a.Files = repository.NewFileRepository(db, logger)
	a.Invoices = repository.NewInvoiceRepository(db, logger)

	if a.Store, err = newStorage(ctx, cfg.Storage, logger); err != nil {
		a.Close()
		return nil, err
	}
	if a.Cache, err = a.newCache(cfg.Cache); err != nil {
		a.Close()
		return nil, err
	}

	a.Orchestrator = NewOrchestrator(cfg, logger)
	a.Processor = pipeline.NewProcessor(a.Files, a.Invoices, a.Store, a.Orchestrator, logger, pipeline.WithCache(a.Cache))
	logger.Info("app.init.ok",
		"db_driver", db.Dialect(),
		"storage", cfg.Storage.Backend,
		"cache", cfg.Cache.Backend,
		"ocr_engine", cfg.OCR.Engine,
		"structured", cfg.Structured.Provider,
	)
	return a, nil
}

// NewOrchestrator builds the OCR adapter and the configured structured-extraction service
// around a new Orchestrator. It needs no database.
func NewOrchestrator(cfg *common.Config, logger *slog.Logger) *pipeline.Orchestrator {
	engine := ocr.NewExtractor(OCRConfig(cfg.OCR), logger)
	adapter := extract.NewOCRAdapter(engine, cfg.OCR.Timeout, logger)

	var opts []pipeline.OrchestratorOption
	if backend := structuredBackend(cfg.Structured, logger); backend != nil {
		opts = append(opts, pipeline.WithStructuredExtractor(llm.NewExtractor(backend, logger)))
	}
	return pipeline.NewOrchestrator(adapter, logger, opts...)
}

func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		Pdftotext:           c.Pdftotext,
		Pdftoppm:            c.Pdftoppm,
		Tesseract:           c.Tesseract,
		TesseractLang:       c.Lang,
		DPI:                 c.DPI,
		MaxPages:            c.MaxPages,
		PageWorkers:         c.PageWorkers,
		TessdataDir:         c.TessdataDir,
		EnableTSVConfidence: c.TSVConfidence,
		PSM:                 6,
		OEM:                 1,
		Engine:              c.Engine,
		Rasterizer:          c.Rasterizer,
		NativePDF:           c.NativePDF,
		Preprocess:          c.Preprocess,
		AzureEndpoint:       c.AzureEndpoint,
		AzureKey:            c.AzureKey,
		WorkDir:             c.WorkDir,
	}
}

func structuredBackend(c common.StructuredConfig, logger *slog.Logger) llm.Backend {
	switch strings.ToLower(c.Provider) {
	case "layoutlm":
		return layoutlm.NewClient(layoutlm.Config{
			URL:                 c.URL,
			APIKey:              c.APIKey,
			ConfidenceThreshold: c.ConfidenceThreshold,
			Timeout:             c.Timeout,
		}, logger)
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:          c.APIKey,
			BaseURL:         c.BaseURL,
			Model:           c.Model,
			Temperature:     c.Temperature,
			Timeout:         c.Timeout,
			DefaultCurrency: c.DefaultCurrency,
		}, logger)
	default:
		logger.Info("app.structured.disabled", "provider", c.Provider)
		return nil
	}
}

func newStorage(ctx context.Context, c common.StorageConfig, logger *slog.Logger) (storage.Storage, error) {
	switch strings.ToLower(c.Backend) {
	case "azure":
		az, err := storage.NewAzure(storage.AzureConfig{
			Container:        c.Container,
			ConnectionString: c.ConnectionString,
			AccountURL:       c.AccountURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := az.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		return az, nil
	case "", "local":
		return storage.NewLocal(c.Dir, logger)
	default:
		return nil, fmt.Errorf("storage backend %q: %w", c.Backend, common.ErrInvalidInput)
	}
}

func (a *App) newCache(c common.CacheConfig) (cache.Cache, error) {
	switch strings.ToLower(c.Backend) {
	case "redis":
		r, err := cache.NewRedis(cache.RedisConfig{Addrs: c.RedisAddrs, TTL: c.TTL, KeyPrefix: c.KeyPrefix}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.checks["cache"] = r.Ping
		return r, nil
	case "", "memory":
		return cache.NewMemory(c.TTL, c.Capacity), nil
	case "none":
		return cache.Noop{}, nil
	default:
		return nil, fmt.Errorf("cache backend %q: %w", c.Backend, common.ErrInvalidInput)
	}
}

// ReadinessChecks returns the dependency probes for the ops /readyz endpoint, keyed by name.
func (a *App) ReadinessChecks() map[string]func(context.Context) error {
	out := make(map[string]func(context.Context) error, len(a.checks))
	for k, v := range a.checks {
		out[k] = v
	}
	return out
}

func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
