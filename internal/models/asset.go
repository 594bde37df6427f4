package models

import (
	"strings"
	"time"
)

// AssetStatus is the lifecycle status of a tracked asset
type AssetStatus string

const (
	AssetStatusPending AssetStatus = "pending"
	AssetStatusActive  AssetStatus = "active"
)

// AssetCategory classifies an asset by market
type AssetCategory string

const (
	AssetCategoryStock  AssetCategory = "stock"
	AssetCategoryBond   AssetCategory = "bond"
	AssetCategoryForex  AssetCategory = "forex"
	AssetCategoryCrypto AssetCategory = "crypto"
	AssetCategoryUnset  AssetCategory = "unset"
)

// MaxSymbolLength matches the width of assets.symbol
const MaxSymbolLength = 15

// Asset represents a tracked financial instrument.
// Description and Currency are filled from provider metadata on activation.
// FailureStreak counts consecutive ingestion cycles in which every provider failed.
type Asset struct {
	ID            int64         `json:"id"`
	Symbol        string        `json:"symbol"`
	Description   *string       `json:"description"`
	Category      AssetCategory `json:"category"`
	Currency      *string       `json:"currency"`
	Status        AssetStatus   `json:"status"`
	FailureStreak int           `json:"failure_streak"`
	NextAttempt   *time.Time    `json:"next_attempt"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsActive reports whether the asset has reached the minimum history window
func (a *Asset) IsActive() bool {
	return a.Status == AssetStatusActive
}

// AssetMetadata is descriptive data a provider may know about a symbol
type AssetMetadata struct {
	Description string
	Category    AssetCategory
	Currency    string
}

// CategoryFromInstrumentType maps provider instrument/asset type strings to a category.
// Yahoo reports EQUITY/ETF/CRYPTOCURRENCY/CURRENCY, AlphaVantage reports Equity/ETF/Mutual Fund.
func CategoryFromInstrumentType(instrumentType string) AssetCategory {
	switch strings.ToUpper(strings.TrimSpace(instrumentType)) {
	case "EQUITY", "ETF", "MUTUALFUND", "MUTUAL FUND":
		return AssetCategoryStock
	case "CRYPTOCURRENCY", "DIGITAL CURRENCY":
		return AssetCategoryCrypto
	case "CURRENCY", "PHYSICAL CURRENCY":
		return AssetCategoryForex
	case "BOND":
		return AssetCategoryBond
	}
	return AssetCategoryUnset
}
