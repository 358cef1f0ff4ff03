// Package timeline caches fetched timeline manifests for the life of the
// process. Concurrent requests for the same path id share one retrieval;
// failures evict the entry so the next request is a genuine retry.
package timeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/manifest"
)

// #region fetcher

// Fetcher retrieves one timeline manifest. *manifest.Client satisfies it;
// tests inject fakes.
type Fetcher interface {
	GetTimeline(ctx context.Context, pathID string) (manifest.Timeline, error)
}

// #endregion

// #region cache-struct

// Cache deduplicates and stores timeline fetches keyed by path id.
type Cache struct {
	fetcher      Fetcher
	fetchTimeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// entry is a fetch either in flight or settled. done closes when the result
// fields are final. Failed entries are removed from the map before done
// closes, so only successes stay cached.
type entry struct {
	done     chan struct{}
	timeline manifest.Timeline
	err      error
}

// New creates an empty cache over fetcher. fetchTimeout bounds each
// underlying retrieval independently of the callers waiting on it.
func New(fetcher Fetcher, fetchTimeout time.Duration) *Cache {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &Cache{
		fetcher:      fetcher,
		fetchTimeout: fetchTimeout,
		entries:      make(map[string]*entry),
	}
}

// #endregion

// #region fetch

// Fetch returns the cached timeline for pathID, starting a retrieval if none
// is cached or in flight. All concurrent callers for one id observe the same
// result. Frames are sorted by ascending t before the entry settles.
func (c *Cache) Fetch(ctx context.Context, pathID string) (manifest.Timeline, error) {
	c.mu.Lock()
	e, ok := c.entries[pathID]
	if !ok {
		e = &entry{done: make(chan struct{})}
		c.entries[pathID] = e
		go c.fill(e, pathID)
	}
	c.mu.Unlock()

	select {
	case <-e.done:
	case <-ctx.Done():
		return manifest.Timeline{}, ctx.Err()
	}
	return e.timeline, e.err
}

// fill runs the single underlying retrieval for an entry. It uses its own
// timeout rather than any caller's context so one impatient caller cannot
// fail the fetch for everyone sharing it.
func (c *Cache) fill(e *entry, pathID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	tl, err := c.fetcher.GetTimeline(ctx, pathID)
	if err != nil {
		c.mu.Lock()
		delete(c.entries, pathID)
		c.mu.Unlock()
		log.Printf("[CACHE] fetch failed, entry evicted: %v", err)
		e.err = err
		close(e.done)
		return
	}

	tl.SortFrames()
	e.timeline = tl
	close(e.done)
}

// #endregion

// #region fetch-all

// FetchAll resolves every id or none: the first failure aborts the call and
// its error is returned. Retrievals run concurrently and successes remain
// cached even when a sibling fails, so a retry only re-fetches the failures.
func (c *Cache) FetchAll(ctx context.Context, pathIDs []string) (map[string]manifest.Timeline, error) {
	results := make(map[string]manifest.Timeline, len(pathIDs))
	errs := make([]error, len(pathIDs))
	timelines := make([]manifest.Timeline, len(pathIDs))

	var wg sync.WaitGroup
	for i, id := range pathIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			timelines[i], errs[i] = c.Fetch(ctx, id)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i, id := range pathIDs {
		results[id] = timelines[i]
	}
	return results, nil
}

// #endregion

// #region len

// Len reports how many settled or in-flight entries the cache holds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// #endregion
