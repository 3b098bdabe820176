package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/pkg/metrics"
)

const keyPrefix = "geoagg:"

// Cache implements ports.CacheService on Valkey. Stored domains never change,
// so reads go through the client-side cache when localTTL is positive.
type Cache struct {
	client   valkey.Client
	localTTL time.Duration
}

// New connects to addr. localCacheSeconds <= 0 disables client-side caching,
// which is required for servers that only speak RESP2.
func New(addr string, localCacheSeconds int) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: localCacheSeconds <= 0,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{
		client:   client,
		localTTL: time.Duration(localCacheSeconds) * time.Second,
	}, nil
}

// kind is the metrics label for key: "domain" for "domain:<id>".
func kind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}

// Get returns the value under key, or domain.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var res valkey.ValkeyResult
	if c.localTTL > 0 {
		res = c.client.DoCache(ctx, c.client.B().Get().Key(keyPrefix+key).Cache(), c.localTTL)
	} else {
		res = c.client.Do(ctx, c.client.B().Get().Key(keyPrefix+key).Build())
	}

	b, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		metrics.CacheMisses.WithLabelValues(kind(key)).Inc()
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	metrics.CacheHits.WithLabelValues(kind(key)).Inc()
	return b, nil
}

// Set stores value for ttlSeconds; a non-positive TTL never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	set := c.client.B().Set().Key(keyPrefix + key).Value(valkey.BinaryString(value))
	if ttlSeconds <= 0 {
		return c.client.Do(ctx, set.Build()).Error()
	}
	return c.client.Do(ctx, set.ExSeconds(int64(ttlSeconds)).Build()).Error()
}

// Delete unlinks key. Client-side copies are invalidated by the server.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Unlink().Key(keyPrefix+key).Build()).Error()
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
