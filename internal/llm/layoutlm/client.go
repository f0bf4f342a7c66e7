// Package layoutlm talks to a LayoutLM-style document model served over HTTP.
package layoutlm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/internal/llm"
)

// DefaultURL is the development placeholder endpoint. A client pointed at it is treated as
// not configured.
const DefaultURL = "http://localhost:8000/predict"

const (
	DefaultConfidenceThreshold = 0.7
	DefaultTimeout             = 30 * time.Second
)

type Config struct {
	URL                 string
	APIKey              string // sent as a bearer token when set
	ConfidenceThreshold float64
	Timeout             time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

type predictRequest struct {
	Text                string  `json:"text"`
	FileType            string  `json:"file_type"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Configured reports whether the client points at a real endpoint.
func (c *Client) Configured() bool {
	return c.cfg.URL != "" && c.cfg.URL != DefaultURL
}

func (c *Client) Name() string { return "layoutlm" }

// Complete posts the OCR text to the prediction endpoint and returns its JSON body.
func (c *Client) Complete(ctx context.Context, text, fileType string) ([]byte, error) {
	if !c.Configured() {
		return nil, llm.ErrNotConfigured
	}
	if fileType == "" {
		fileType = "image"
	}
	var headers map[string]string
	if c.cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	}
	raw, _, err := llm.SendJSON(ctx, c.http, c.cfg.URL, predictRequest{
		Text:                text,
		FileType:            fileType,
		ConfidenceThreshold: c.cfg.ConfidenceThreshold,
	}, headers, c.logger)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
