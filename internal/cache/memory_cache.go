package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/epeers/fintel/internal/models"
)

// SeriesCache is an in-memory TTL cache for served series, keyed by asset and window
type SeriesCache struct {
	mu      sync.Mutex
	entries map[int64]map[string]seriesEntry
	ttl     time.Duration
	now     func() time.Time
}

type seriesEntry struct {
	series    *models.SeriesResponse
	fetchedAt time.Time
}

// NewSeriesCache creates a new series cache. A non-positive ttl disables caching.
func NewSeriesCache(ttl time.Duration) *SeriesCache {
	return &SeriesCache{
		entries: make(map[int64]map[string]seriesEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// seriesCacheKey generates a cache key for one window of an asset's series
func seriesCacheKey(start, end time.Time, withPredictions bool) string {
	return fmt.Sprintf("%s|%s|%t", start.Format("2006-01-02"), end.Format("2006-01-02"), withPredictions)
}

// Get retrieves a cached series if fresh. An expired entry is dropped.
func (c *SeriesCache) Get(assetID int64, start, end time.Time, withPredictions bool) (*models.SeriesResponse, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := seriesCacheKey(start, end, withPredictions)
	entry, exists := c.entries[assetID][key]
	if !exists {
		return nil, false
	}
	if c.expired(entry) {
		c.drop(assetID, key)
		return nil, false
	}
	return entry.series, true
}

// Set caches a series and sweeps the asset's expired windows
func (c *SeriesCache) Set(assetID int64, start, end time.Time, withPredictions bool, series *models.SeriesResponse) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byWindow, ok := c.entries[assetID]
	if !ok {
		byWindow = make(map[string]seriesEntry)
		c.entries[assetID] = byWindow
	}
	for key, entry := range byWindow {
		if c.expired(entry) {
			delete(byWindow, key)
		}
	}
	byWindow[seriesCacheKey(start, end, withPredictions)] = seriesEntry{
		series:    series,
		fetchedAt: c.now(),
	}
}

// InvalidateAsset drops every cached window for an asset
func (c *SeriesCache) InvalidateAsset(assetID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, assetID)
}

func (c *SeriesCache) expired(entry seriesEntry) bool {
	return c.now().Sub(entry.fetchedAt) > c.ttl
}

// drop removes one window, and the asset's map once it is empty. Caller holds mu.
func (c *SeriesCache) drop(assetID int64, key string) {
	byWindow := c.entries[assetID]
	delete(byWindow, key)
	if len(byWindow) == 0 {
		delete(c.entries, assetID)
	}
}
