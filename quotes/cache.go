package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const cacheKeyFormat = "stock:%s:quote"

// Cache keeps quotes in Redis for ttl. A nil client or a non-positive ttl
// turns it into a pass-through. Redis failures never fail a lookup.
type Cache struct {
	next Lookuper
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

func NewCache(next Lookuper, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "quote_cache").Logger(),
	}
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = Normalize(symbol)
	if c.rdb == nil || c.ttl <= 0 {
		return c.next.Lookup(ctx, symbol)
	}

	key := fmt.Sprintf(cacheKeyFormat, symbol)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var q Quote
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
		c.log.Warn().Str("key", key).Msg("Discarding undecodable cached quote")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("Quote cache read failed")
	}

	q, err := c.next.Lookup(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	encoded, err := json.Marshal(q)
	if err != nil {
		return q, nil
	}
	if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Quote cache write failed")
	}
	return q, nil
}
