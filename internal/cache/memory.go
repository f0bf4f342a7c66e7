package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// Memory is an in-process cache with per-entry TTL and a capacity bound.
type Memory struct {
	c *ttlcache.Cache[string, entity.InvoiceData]
}

// NewMemory starts the expiry loop; call Close to stop it.
func NewMemory(ttl time.Duration, capacity uint64) *Memory {
	opts := []ttlcache.Option[string, entity.InvoiceData]{
		ttlcache.WithTTL[string, entity.InvoiceData](ttl),
		ttlcache.WithDisableTouchOnHit[string, entity.InvoiceData](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, entity.InvoiceData](capacity))
	}
	c := ttlcache.New(opts...)
	go c.Start()
	return &Memory{c: c}
}

func (m *Memory) Get(_ context.Context, key string) (entity.InvoiceData, bool) {
	item := m.c.Get(key)
	observe(item != nil)
	if item == nil {
		return entity.InvoiceData{}, false
	}
	return item.Value(), true
}

func (m *Memory) Set(_ context.Context, key string, data entity.InvoiceData) {
	m.c.Set(key, data, ttlcache.DefaultTTL)
}

func (m *Memory) Close() {
	m.c.Stop()
}
