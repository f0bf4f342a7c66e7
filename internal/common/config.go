package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	OCR        OCRConfig        `yaml:"ocr"`
	Structured StructuredConfig `yaml:"structured"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Queue      QueueConfig      `yaml:"queue"`
}

type LogConfig struct {
	Format string `yaml:"format"` // text | json
	Level  string `yaml:"level"`  // debug | info | warn | error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	AutoMigrate      bool          `yaml:"auto_migrate"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	OpsAddr  string `yaml:"ops_addr"` // /metrics, /healthz, /readyz
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string        `yaml:"engine"`     // tesseract | azure
	Rasterizer    string        `yaml:"rasterizer"` // pdftoppm | imagemagick
	Pdftotext     string        `yaml:"pdftotext"`
	Pdftoppm      string        `yaml:"pdftoppm"`
	Tesseract     string        `yaml:"tesseract"`
	Lang          string        `yaml:"lang"`
	DPI           int           `yaml:"dpi"`
	MaxPages      int           `yaml:"max_pages"`
	PageWorkers   int           `yaml:"page_workers"` // scanned PDF pages OCR'd in parallel
	TessdataDir   string        `yaml:"tessdata_dir"`
	TSVConfidence bool          `yaml:"tsv_confidence"`
	NativePDF     bool          `yaml:"native_pdf"`
	Preprocess    bool          `yaml:"preprocess"`
	Timeout       time.Duration `yaml:"timeout"`
	AzureEndpoint string        `yaml:"azure_endpoint"`
	AzureKey      string        `yaml:"azure_key"`
	WorkDir       string        `yaml:"work_dir"`
}

// StructuredConfig selects and configures the structured-extraction service.
type StructuredConfig struct {
	Provider            string        `yaml:"provider"` // none | layoutlm | openai
	URL                 string        `yaml:"url"`
	APIKey              string        `yaml:"api_key"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Timeout             time.Duration `yaml:"timeout"`
	Model               string        `yaml:"model"`
	BaseURL             string        `yaml:"base_url"`
	Temperature         float32       `yaml:"temperature"`
	DefaultCurrency     string        `yaml:"default_currency"`
}

type StorageConfig struct {
	Backend          string `yaml:"backend"` // local | azure
	Dir              string `yaml:"dir"`
	Container        string `yaml:"container"`
	ConnectionString string `yaml:"connection_string"`
	AccountURL       string `yaml:"account_url"`
}

type CacheConfig struct {
	Backend    string        `yaml:"backend"` // memory | redis | none
	TTL        time.Duration `yaml:"ttl"`
	Capacity   uint64        `yaml:"capacity"`
	RedisAddrs []string      `yaml:"redis_addrs"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

type QueueConfig struct {
	Workers int           `yaml:"workers"`
	Size    int           `yaml:"size"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when neither a file nor the environment says
// otherwise.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Format: "text", Level: "info"},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:invoices.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
			AutoMigrate:     true,
		},
		Server: ServerConfig{GRPCAddr: ":8080", OpsAddr: ":9090"},
		OCR: OCRConfig{
			Engine:        "tesseract",
			Rasterizer:    "pdftoppm",
			Lang:          "eng",
			DPI:           300,
			PageWorkers:   4,
			TSVConfidence: true,
			Timeout:       60 * time.Second,
		},
		Structured: StructuredConfig{
			Provider:            "none",
			ConfidenceThreshold: 0.7,
			Timeout:             30 * time.Second,
			Model:               "gpt-4o-mini",
			DefaultCurrency:     "USD",
		},
		Storage: StorageConfig{Backend: "local", Dir: "./uploads", Container: "invoices"},
		Cache:   CacheConfig{Backend: "memory", TTL: time.Hour, Capacity: 1024, KeyPrefix: "invoice:"},
		Queue:   QueueConfig{Workers: 4, Size: 256, Timeout: 3 * time.Minute},
	}
}

// LoadConfig reads an optional YAML file (with ${VAR} expansion) over the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapError(err, "read config")
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
	c.Database.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.OpsAddr = getEnv("OPS_ADDR", c.Server.OpsAddr)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Rasterizer = getEnv("OCR_RASTERIZER", c.OCR.Rasterizer)
	c.OCR.Lang = getEnv("OCR_LANG", c.OCR.Lang)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.PageWorkers = getEnvAsInt("OCR_PAGE_WORKERS", c.OCR.PageWorkers)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.TSVConfidence = getEnvAsBool("OCR_TSV_CONFIDENCE", c.OCR.TSVConfidence)
	c.OCR.Preprocess = getEnvAsBool("OCR_PREPROCESS", c.OCR.Preprocess)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)
	c.OCR.AzureEndpoint = getEnv("AZURE_VISION_ENDPOINT", c.OCR.AzureEndpoint)
	c.OCR.AzureKey = getEnv("AZURE_VISION_KEY", c.OCR.AzureKey)

	c.Structured.Provider = getEnv("STRUCTURED_PROVIDER", c.Structured.Provider)
	c.Structured.URL = getEnv("LAYOUTLM_URL", c.Structured.URL)
	c.Structured.APIKey = getEnv("STRUCTURED_API_KEY", c.Structured.APIKey)
	c.Structured.Timeout = getEnvAsDuration("STRUCTURED_TIMEOUT", c.Structured.Timeout)
	c.Structured.Model = getEnv("OPENAI_MODEL", c.Structured.Model)
	c.Structured.BaseURL = getEnv("OPENAI_BASE_URL", c.Structured.BaseURL)
	c.Structured.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.Structured.Temperature)
	if c.Structured.Provider == "openai" {
		c.Structured.APIKey = getEnv("OPENAI_API_KEY", c.Structured.APIKey)
	}

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Dir = getEnv("STORAGE_DIR", c.Storage.Dir)
	c.Storage.Container = getEnv("AZURE_STORAGE_CONTAINER", c.Storage.Container)
	c.Storage.ConnectionString = getEnv("AZURE_STORAGE_CONNECTION_STRING", c.Storage.ConnectionString)
	c.Storage.AccountURL = getEnv("AZURE_STORAGE_ACCOUNT_URL", c.Storage.AccountURL)

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)
	if addrs := getEnv("REDIS_ADDRS", ""); addrs != "" {
		c.Cache.RedisAddrs = strings.Split(addrs, ",")
	}

	c.Queue.Workers = getEnvAsInt("QUEUE_WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)
	c.Queue.Timeout = getEnvAsDuration("QUEUE_TIMEOUT", c.Queue.Timeout)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func configError(msg string) error {
	return NewAppError("CONFIG_ERROR", msg, ErrInvalidInput)
}

// Validate checks the loaded configuration for values the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return configError(fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		return configError("DB_URL is required")
	}
	if c.Server.GRPCAddr == "" {
		return configError("GRPC_ADDR is required")
	}
	switch c.OCR.Engine {
	case "tesseract":
	case "azure":
		if c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "" {
			return configError("azure OCR engine needs AZURE_VISION_ENDPOINT and AZURE_VISION_KEY")
		}
	default:
		return configError(fmt.Sprintf("unknown OCR engine %q", c.OCR.Engine))
	}
	switch c.Structured.Provider {
	case "", "none", "layoutlm":
	case "openai":
		if c.Structured.APIKey == "" {
			return configError("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return configError(fmt.Sprintf("unknown structured provider %q", c.Structured.Provider))
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Dir == "" {
			return configError("STORAGE_DIR is required for local storage")
		}
	case "azure":
		if c.Storage.ConnectionString == "" && c.Storage.AccountURL == "" {
			return configError("azure storage needs a connection string or an account URL")
		}
	default:
		return configError(fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}
	switch c.Cache.Backend {
	case "", "none", "memory":
	case "redis":
		if len(c.Cache.RedisAddrs) == 0 {
			return configError("REDIS_ADDRS is required for the redis cache")
		}
	default:
		return configError(fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Queue.Workers < 1 {
		return configError("queue needs at least one worker")
	}
	return nil
}
