package quote

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"brokerfolio/internal/logger"
)

// PriceSource is anything that can quote a single symbol.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) Result
}

// Store is a TTL key/value store for serialized quotes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore keeps cached quotes in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping checks that the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the value for key; the bool is false on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value under key for ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CachedSource serves successful quotes from a Store for a short TTL.
// Failures are never cached, and a broken store falls through to the source.
type CachedSource struct {
	source PriceSource
	store  Store
	ttl    time.Duration
	log    *zap.SugaredLogger
}

// NewCachedSource wraps source with store.
func NewCachedSource(source PriceSource, store Store, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, store: store, ttl: ttl, log: logger.Named("quote.cache")}
}

func cacheKey(symbol string) string {
	return "brokerfolio:quote:" + strings.ToUpper(symbol)
}

// GetPrice implements PriceSource.
func (c *CachedSource) GetPrice(ctx context.Context, symbol string) Result {
	key := cacheKey(symbol)

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warnw("quote cache read failed", "symbol", symbol, "error", err)
	} else if ok {
		var r Result
		if err := json.Unmarshal(raw, &r); err == nil && r.Price != nil {
			return r
		}
	}

	r := c.source.GetPrice(ctx, symbol)
	if !r.OK() {
		return r
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return r
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warnw("quote cache write failed", "symbol", symbol, "error", err)
	}
	return r
}
