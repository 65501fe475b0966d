package optimizer

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/j-veylop/tokenwatch/internal/models"
)

type cacheItem struct {
	entry models.CacheEntry
	seq   uint64 // insertion order, breaks timestamp ties on eviction
}

// CacheKey returns the deterministic cache key for a (context, prompt) pair.
func CacheKey(contextText, prompt string) string {
	sum := sha256.Sum256([]byte(contextText + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// ContentHash returns the hash stored alongside a cached response.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// lookup returns the live entry for key and updates the hit/miss counters.
// Entries older than the cache TTL are dropped and count as misses.
func (e *Engine) lookup(key string) (models.CacheEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, ok := e.cache[key]
	if ok && e.config.CacheTTL > 0 && e.now().Sub(item.entry.Timestamp) > e.config.CacheTTL {
		delete(e.cache, key)
		ok = false
	}
	if !ok {
		e.counters.cacheMisses++
		return models.CacheEntry{}, false
	}

	item.entry.HitCount++
	e.counters.cacheHits++
	e.counters.totalTokensSaved += item.entry.TokensSaved
	e.counters.totalCostSaved += item.entry.CostSaved
	return item.entry, true
}

// CacheResponse stores response under key, replacing any existing entry.
// Past capacity the cache is trimmed to the most recently stored entries.
func (e *Engine) CacheResponse(key string, response models.Response, contentHash string, tokensSaved int, costSaved float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	e.cache[key] = &cacheItem{
		entry: models.CacheEntry{
			Key:         key,
			Response:    response,
			Timestamp:   e.now(),
			ContentHash: contentHash,
			TokensSaved: tokensSaved,
			CostSaved:   costSaved,
		},
		seq: e.seq,
	}

	if len(e.cache) > e.config.MaxCacheSize {
		e.evictLocked()
	}
}

func (e *Engine) evictLocked() {
	items := make([]*cacheItem, 0, len(e.cache))
	for _, item := range e.cache {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b *cacheItem) int {
		if c := b.entry.Timestamp.Compare(a.entry.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	for _, item := range items[e.config.MaxCacheSize:] {
		delete(e.cache, item.entry.Key)
	}
}

// CachedEntry returns the entry stored under key without counting a lookup.
func (e *Engine) CachedEntry(key string) (models.CacheEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, ok := e.cache[key]
	if !ok {
		return models.CacheEntry{}, false
	}
	return item.entry, true
}

// ClearCache drops every cached response. Counters are kept.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	clear(e.cache)
	e.mu.Unlock()
}
