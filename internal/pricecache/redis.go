package pricecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// Mirror republishes Cache writes to Redis so multiple orchestrator
// instances (e.g. one per chain) can share a cross-instance view of the
// same quotes, adapted from a RedisMetrics wrapper shape: every
// operation is a thin, instrumented pass-through over a *redis.Client,
// never the source of truth itself — the in-process Cache remains that,
// per spec.md §4.1's low-latency-read rationale.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewMirror builds a Mirror writing under keyPrefix with the given TTL.
func NewMirror(client *redis.Client, keyPrefix string, ttl time.Duration) *Mirror {
	return &Mirror{client: client, ttl: ttl, prefix: keyPrefix}
}

type wireQuote struct {
	Price     string    `json:"price"`
	Liquidity string    `json:"liquidity"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *Mirror) redisKey(chain, venue, tokenA, tokenB string) string {
	return fmt.Sprintf("%s:%s:%s:%s", m.prefix, chain, venue, pairKey(tokenA, tokenB))
}

// Publish mirrors a single quote write to Redis with the mirror's TTL.
func (m *Mirror) Publish(ctx context.Context, chain, venue string, q types.PriceQuote) error {
	payload, err := json.Marshal(wireQuote{
		Price:     q.Price.String(),
		Liquidity: q.Liquidity.String(),
		Timestamp: q.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("pricecache mirror: marshal: %w", err)
	}
	key := m.redisKey(chain, venue, q.Pair.TokenA, q.Pair.TokenB)
	return m.client.Set(ctx, key, payload, m.ttl).Err()
}

// Fetch reads a mirrored quote back from Redis, for instances that did not
// observe the original write locally.
func (m *Mirror) Fetch(ctx context.Context, chain, venue, tokenA, tokenB string) (types.PriceQuote, bool, error) {
	key := m.redisKey(chain, venue, tokenA, tokenB)
	raw, err := m.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return types.PriceQuote{}, false, nil
	}
	if err != nil {
		return types.PriceQuote{}, false, fmt.Errorf("pricecache mirror: get: %w", err)
	}

	var w wireQuote
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.PriceQuote{}, false, fmt.Errorf("pricecache mirror: unmarshal: %w", err)
	}
	price, err := decimal.NewFromString(w.Price)
	if err != nil {
		return types.PriceQuote{}, false, fmt.Errorf("pricecache mirror: parse price: %w", err)
	}
	liq, err := decimal.NewFromString(w.Liquidity)
	if err != nil {
		return types.PriceQuote{}, false, fmt.Errorf("pricecache mirror: parse liquidity: %w", err)
	}

	return types.PriceQuote{
		Chain:     chain,
		Venue:     venue,
		Pair:      types.Pair{TokenA: tokenA, TokenB: tokenB},
		Price:     price,
		Liquidity: liq,
		Timestamp: w.Timestamp,
	}, true, nil
}
