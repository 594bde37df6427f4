package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies the provider that produced a price point
type Source string

const (
	SourceYahooFinance Source = "yahoo_finance"
	SourceAlphaVantage Source = "alpha_vantage"
)

// Valid reports whether s is a known provider source.
func (s Source) Valid() bool {
	return s == SourceYahooFinance || s == SourceAlphaVantage
}

// PricePoint represents one day's OHLCV record for an asset from a specific source.
// (AssetID, Date, Source) is unique in storage.
type PricePoint struct {
	AssetID       int64            `json:"asset_id"`
	Date          time.Time        `json:"date"`
	Source        Source           `json:"source"`
	Open          decimal.Decimal  `json:"open"`
	High          decimal.Decimal  `json:"high"`
	Low           decimal.Decimal  `json:"low"`
	Close         decimal.Decimal  `json:"close"`
	AdjustedClose *decimal.Decimal `json:"adjusted_close"`
	Volume        int64            `json:"volume"`
}

// Value returns the numeric value of the point for a prediction target.
// A missing adjusted close falls back to the close.
func (p *PricePoint) Value(target Target) float64 {
	switch target {
	case TargetOpen:
		return p.Open.InexactFloat64()
	case TargetHigh:
		return p.High.InexactFloat64()
	case TargetLow:
		return p.Low.InexactFloat64()
	case TargetClose:
		return p.Close.InexactFloat64()
	case TargetAdjustedClose:
		if p.AdjustedClose != nil {
			return p.AdjustedClose.InexactFloat64()
		}
		return p.Close.InexactFloat64()
	case TargetVolume:
		return float64(p.Volume)
	}
	return 0
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MergeBySource collapses points from several sources into one point per date,
// keeping the source that comes first in priority. Sources missing from priority
// rank after all listed ones. The result is ordered by date ascending.
func MergeBySource(points []PricePoint, priority []Source) []PricePoint {
	rank := make(map[Source]int, len(priority))
	for i, s := range priority {
		rank[s] = i
	}
	rankOf := func(s Source) int {
		if r, ok := rank[s]; ok {
			return r
		}
		return len(priority)
	}

	byDate := make(map[string]PricePoint, len(points))
	for _, p := range points {
		key := p.Date.Format("2006-01-02")
		existing, ok := byDate[key]
		if !ok || rankOf(p.Source) < rankOf(existing.Source) {
			byDate[key] = p
		}
	}

	merged := make([]PricePoint, 0, len(byDate))
	for _, p := range byDate {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}
