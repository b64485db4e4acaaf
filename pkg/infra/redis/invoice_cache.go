package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ona79/facturation-app/pkg/domain"
)

const DefaultTTL = 10 * time.Minute

// InvoiceCache decorates an InvoiceStore with a Redis cache. Invoices are
// immutable, so cached entries only go stale on deletion, which invalidates
// them. Misses are never cached: number probes must reach the inner store.
type InvoiceCache struct {
	inner  domain.InvoiceStore
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

func NewInvoiceCache(inner domain.InvoiceStore, client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *InvoiceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceCache{inner: inner, client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *InvoiceCache) numberKey(number string) string {
	return c.prefix + "invoice:number:" + number
}

func (c *InvoiceCache) idKey(id string) string {
	return c.prefix + "invoice:id:" + id
}

// Insert writes through: the inner store decides, the cache follows.
func (c *InvoiceCache) Insert(ctx context.Context, inv *domain.Invoice) error {
	if err := c.inner.Insert(ctx, inv); err != nil {
		return err
	}
	c.set(ctx, inv)
	return nil
}

func (c *InvoiceCache) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return c.lookup(ctx, c.numberKey(number), func(ctx context.Context) (*domain.Invoice, error) {
		return c.inner.FindByNumber(ctx, number)
	})
}

func (c *InvoiceCache) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return c.lookup(ctx, c.idKey(id), func(ctx context.Context) (*domain.Invoice, error) {
		return c.inner.FindByID(ctx, id)
	})
}

func (c *InvoiceCache) ListRecent(ctx context.Context, limit int) ([]domain.Invoice, error) {
	return c.inner.ListRecent(ctx, limit)
}

func (c *InvoiceCache) DeleteByID(ctx context.Context, id string) (bool, error) {
	inv, err := c.inner.FindByID(ctx, id)
	if errors.Is(err, domain.ErrInvoiceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, err := c.inner.DeleteByID(ctx, id)
	if err != nil {
		return false, err
	}
	if err := c.client.Del(ctx, c.idKey(inv.ID), c.numberKey(inv.Number)).Err(); err != nil {
		c.logger.Warn("invoice cache invalidation failed", zap.String("invoice_id", id), zap.Error(err))
	}
	return ok, nil
}

func (c *InvoiceCache) lookup(ctx context.Context, key string, load func(context.Context) (*domain.Invoice, error)) (*domain.Invoice, error) {
	if inv, ok := c.get(ctx, key); ok {
		return inv, nil
	}

	// singleflight collapses concurrent misses on one key into one load,
	// shared by every waiter, so it must not die with the first caller.
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		inv, err := load(shared)
		if err != nil {
			return nil, err
		}
		c.set(shared, inv)
		return inv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Invoice).Clone(), nil
}

func (c *InvoiceCache) get(ctx context.Context, key string) (*domain.Invoice, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("invoice cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	var inv domain.Invoice
	if err := json.Unmarshal([]byte(value), &inv); err != nil {
		c.logger.Warn("invoice cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &inv, true
}

func (c *InvoiceCache) set(ctx context.Context, inv *domain.Invoice) {
	payload, err := json.Marshal(inv)
	if err != nil {
		c.logger.Warn("invoice cache encode failed", zap.String("invoice_id", inv.ID), zap.Error(err))
		return
	}
	for _, key := range []string{c.idKey(inv.ID), c.numberKey(inv.Number)} {
		if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
			c.logger.Warn("invoice cache write failed", zap.String("key", key), zap.Error(err))
			return
		}
	}
}
