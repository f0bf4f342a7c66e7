package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/rueidis"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// RedisConfig holds connection parameters for the shared cache.
type RedisConfig struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// Redis shares extraction results between daemon replicas.
type Redis struct {
	client rueidis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewRedis(cfg RedisConfig, logger *slog.Logger) (*Redis, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return newRedis(client, cfg, logger), nil
}

func newRedis(client rueidis.Client, cfg RedisConfig, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Redis{client: client, ttl: cfg.TTL, prefix: cfg.KeyPrefix, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (entity.InvoiceData, bool) {
	var data entity.InvoiceData
	raw, err := r.client.Do(ctx, r.client.B().Get().Key(r.prefix+key).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			r.logger.Warn("cache.get.failed", "key", key, "error", err)
		}
		observe(false)
		return data, false
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		r.logger.Warn("cache.decode.failed", "key", key, "error", err)
		observe(false)
		return entity.InvoiceData{}, false
	}
	observe(true)
	return data, true
}

func (r *Redis) Set(ctx context.Context, key string, data entity.InvoiceData) {
	raw, err := json.Marshal(data)
	if err != nil {
		r.logger.Warn("cache.encode.failed", "key", key, "error", err)
		return
	}
	cmd := r.client.B().Set().Key(r.prefix + key).Value(string(raw)).Ex(r.ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		r.logger.Warn("cache.set.failed", "key", key, "error", err)
	}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() {
	r.client.Close()
}
