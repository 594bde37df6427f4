package cache

import (
	"testing"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesCache(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	c := NewSeriesCache(time.Minute)
	c.now = func() time.Time { return now }

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	series := &models.SeriesResponse{Symbol: "AAPL"}

	_, ok := c.Get(1, start, end, true)
	assert.False(t, ok)

	c.Set(1, start, end, true, series)
	got, ok := c.Get(1, start, end, true)
	assert.True(t, ok)
	assert.Same(t, series, got)

	_, ok = c.Get(1, start, end, false)
	assert.False(t, ok, "prediction flag is part of the key")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(1, start, end, true)
	assert.False(t, ok, "entry expired")
}

func TestSeriesCache_InvalidateAsset(t *testing.T) {
	c := NewSeriesCache(time.Hour)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(1, day, day, true, &models.SeriesResponse{Symbol: "AAPL"})
	c.Set(2, day, day, true, &models.SeriesResponse{Symbol: "MSFT"})

	c.InvalidateAsset(1)
	_, ok := c.Get(1, day, day, true)
	assert.False(t, ok)
	_, ok = c.Get(2, day, day, true)
	assert.True(t, ok)
}

func TestSeriesCache_EvictsExpiredWindows(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	c := NewSeriesCache(time.Minute)
	c.now = func() time.Time { return now }

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		c.Set(1, day, day.AddDate(0, 0, i), true, &models.SeriesResponse{Symbol: "AAPL"})
	}
	require.Len(t, c.entries[1], 5)

	now = now.Add(2 * time.Minute)
	c.Set(1, day, day.AddDate(0, 1, 0), true, &models.SeriesResponse{Symbol: "AAPL"})
	assert.Len(t, c.entries[1], 1, "expired windows swept on set")

	now = now.Add(2 * time.Minute)
	_, ok := c.Get(1, day, day.AddDate(0, 1, 0), true)
	assert.False(t, ok)
	assert.NotContains(t, c.entries, int64(1), "expired window dropped on get")
}

func TestSeriesCache_Disabled(t *testing.T) {
	c := NewSeriesCache(0)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(1, day, day, true, &models.SeriesResponse{})
	_, ok := c.Get(1, day, day, true)
	assert.False(t, ok)
}
