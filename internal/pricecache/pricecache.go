// Package pricecache holds the last-seen quote per (chain, venue, pair),
// spec.md §4.1 (C4). Reads are frequent (every scanner tick); writes are
// infrequent (one per venue poll, O(100ms) per chain-venue), so a single
// coarse RWMutex is the right tool for an in-process cache rather than
// reaching for a lock-free map.
package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/chainarb/core/internal/types"
)

type key struct {
	chain string
	venue string
	pair  string
}

func pairKey(tokenA, tokenB string) string { return tokenA + "/" + tokenB }

// Cache is the per-(chain, venue, pair) last-quote store. Zero value is not
// usable; construct with New.
type Cache struct {
	mu           sync.RWMutex
	entries      map[key]types.PriceQuote
	freshnessTTL time.Duration
	mirror       *Mirror // optional, nil in single-instance deployments
}

// New builds a Cache that treats entries older than freshnessTTL as absent.
func New(freshnessTTL time.Duration) *Cache {
	return &Cache{
		entries:      make(map[key]types.PriceQuote),
		freshnessTTL: freshnessTTL,
	}
}

// SetMirror attaches a Redis-backed Mirror so every Put is also republished
// for other orchestrator instances sharing the same Redis backend to read.
// Optional — a nil mirror (the default) keeps the cache purely in-process.
func (c *Cache) SetMirror(m *Mirror) {
	c.mirror = m
}

// Put overwrites the entry for (chain, venue, pair). Concurrent writes to
// distinct keys are unordered with respect to each other; a write to a
// single key is atomic with respect to readers of that key.
func (c *Cache) Put(chain, venue string, tokenA, tokenB string, quote types.PriceQuote) {
	k := key{chain: chain, venue: venue, pair: pairKey(tokenA, tokenB)}
	c.mu.Lock()
	c.entries[k] = quote
	mirror := c.mirror
	c.mu.Unlock()

	if mirror != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = mirror.Publish(ctx, chain, venue, quote)
		}()
	}
}

// Get returns the last quote for (chain, venue, pair), or false if absent
// or stale.
func (c *Cache) Get(chain, venue, tokenA, tokenB string) (types.PriceQuote, bool) {
	k := key{chain: chain, venue: venue, pair: pairKey(tokenA, tokenB)}
	c.mu.RLock()
	q, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok || q.Stale(time.Now(), c.freshnessTTL) {
		return types.PriceQuote{}, false
	}
	return q, true
}

// Snapshot returns a coherent venue->quote map for (chain, pair): no torn
// reads within the call, stale entries excluded.
func (c *Cache) Snapshot(chain, tokenA, tokenB string) map[string]types.PriceQuote {
	pair := pairKey(tokenA, tokenB)
	out := make(map[string]types.PriceQuote)
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, q := range c.entries {
		if k.chain != chain || k.pair != pair {
			continue
		}
		if q.Stale(now, c.freshnessTTL) {
			continue
		}
		out[k.venue] = q
	}
	return out
}
