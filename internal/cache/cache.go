// Package cache memoizes extraction results by document content hash, so re-submitting the
// same bytes skips OCR and parsing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/metrics"
)

// Cache stores InvoiceData keyed by content hash. Implementations never fail the caller: a
// backend error is a miss on Get and a no-op on Set.
type Cache interface {
	Get(ctx context.Context, key string) (entity.InvoiceData, bool)
	Set(ctx context.Context, key string, data entity.InvoiceData)
	Close()
}

// Key returns the cache key for a document's bytes.
func Key(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (entity.InvoiceData, bool) { return entity.InvoiceData{}, false }
func (Noop) Set(context.Context, string, entity.InvoiceData) {}
func (Noop) Close() {}

func observe(hit bool) {
	if hit {
		metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	metrics.ResultCacheTotal.WithLabelValues("miss").Inc()
}
