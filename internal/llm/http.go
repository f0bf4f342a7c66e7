package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseBytes caps how much of a service response is read.
const maxResponseBytes = 4 << 20

const defaultServiceTimeout = 45 * time.Second

// SendJSON posts an invoice extraction payload to a structured-extraction service and returns
// the response body with its status code. A non-2xx status is an error, but the body is still
// returned so callers can log what the service said. headers are applied after the JSON
// defaults and may override them.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: defaultServiceTimeout}
	}
	reqID := uuid.NewString()
	log := logger.With("req_id", reqID, "url", url)

	req, size, err := newJSONRequest(ctx, url, body, reqID, headers)
	if err != nil {
		log.Error("llm.http.request_error", "error", err)
		return nil, 0, err
	}
	log.Info("llm.http.request", "content_length", size)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn("llm.http.response_body_close_error", "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	log.Info("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, resp.StatusCode, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

func newJSONRequest(ctx context.Context, url string, body any, reqID string, headers map[string]string) (*http.Request, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, len(payload), nil
}
