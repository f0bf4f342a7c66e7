package layoutlm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/internal/llm"
)

func TestClient_NotConfigured(t *testing.T) {
	for _, url := range []string{"", DefaultURL} {
		c := NewClient(Config{URL: url}, nil)
		assert.False(t, c.Configured())
		_, err := c.Complete(context.Background(), "text", "pdf")
		assert.ErrorIs(t, err, llm.ErrNotConfigured)
	}
}

func TestClient_Complete(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"invoice_number":"L-1","total_amount":"12.00","confidence":0.91}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "secret"}, nil)
	raw, err := c.Complete(context.Background(), "INVOICE L-1", "")
	require.NoError(t, err)

	assert.Equal(t, "INVOICE L-1", got.Text)
	assert.Equal(t, "image", got.FileType)
	assert.Equal(t, DefaultConfidenceThreshold, got.ConfidenceThreshold)

	inv, ok := llm.NewExtractor(c, nil).TryExtract(context.Background(), "INVOICE L-1", "pdf")
	require.True(t, ok)
	assert.Equal(t, "L-1", inv.Fields.InvoiceNumber)
	assert.Equal(t, 12.0, inv.Fields.TotalAmount)
	assert.Equal(t, 0.91, inv.Confidence)
	assert.NotEmpty(t, raw)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, nil)
	_, err := c.Complete(context.Background(), "text", "pdf")
	assert.Error(t, err)
}
