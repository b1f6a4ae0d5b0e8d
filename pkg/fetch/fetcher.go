package fetch

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL bounds how long a fetched answer may be served from cache.
	DefaultCacheTTL = 30 * time.Second

	// DefaultSourceTimeout bounds each individual source attempt.
	DefaultSourceTimeout = 5 * time.Second
)

type cacheEntry struct {
	result    Result
	fetchedAt time.Time
}

// Fetcher tries the sources configured for a data type strictly in order until
// one returns a well-formed value, and caches the winning result. The cache is
// private to the Fetcher instance; two fetchers never share entries.
type Fetcher struct {
	sources map[DataType][]SourceClient
	ttl     time.Duration
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

func NewFetcher(sources map[DataType][]SourceClient, ttl, timeout time.Duration) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	return &Fetcher{
		sources: sources,
		ttl:     ttl,
		timeout: timeout,
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Fetch resolves the query through the ordered fallback chain for its data
// type. Source failures are swallowed and the next source is tried; only the
// exhaustion of the whole chain yields a failed result.
func (f *Fetcher) Fetch(ctx context.Context, q Query) Result {
	chain, ok := f.sources[q.DataType]
	if !ok {
		return Result{
			Success:   false,
			Source:    "none",
			Timestamp: f.now(),
			Error:     "Unknown data type",
		}
	}

	key := q.CacheKey()
	if cached, ok := f.getCached(key); ok {
		cached.Cached = true
		return cached
	}

	attempts := 0
	for _, src := range chain {
		attempts++

		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		value, err := src.Fetch(callCtx, q)
		cancel()
		if err != nil {
			continue
		}

		result := Result{
			Success:   true,
			Value:     value,
			Source:    src.Name(),
			Timestamp: f.now(),
			Attempts:  attempts,
		}
		f.setCached(key, result)
		return result
	}

	return Result{
		Success:   false,
		Source:    "none",
		Timestamp: f.now(),
		Attempts:  attempts,
		Error:     "All sources failed",
	}
}

func (f *Fetcher) getCached(key string) (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.cache[key]
	if !ok {
		return Result{}, false
	}
	if f.now().Sub(entry.fetchedAt) >= f.ttl {
		// Lazy eviction on the read path; no background sweep.
		delete(f.cache, key)
		return Result{}, false
	}
	return entry.result, true
}

func (f *Fetcher) setCached(key string, result Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[key] = cacheEntry{result: result, fetchedAt: f.now()}
}
