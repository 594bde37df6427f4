// Package providers defines the price-history provider capability and the adapter
// that normalizes symbols and classifies failures for each source.
package providers

import (
	"context"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/shopspring/decimal"
)

// RawPricePoint is one provider-reported daily bar, already decoded into the
// common shape. It carries no asset or source; the ingestion worker adds both.
type RawPricePoint struct {
	Date          time.Time
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	AdjustedClose *decimal.Decimal
	Volume        int64
}

// Provider is an external daily price-history source.
// FetchHistory receives a symbol already normalized for this provider and returns
// bars within [start, end] in ascending date order. Failures are *Error values.
type Provider interface {
	Source() models.Source
	NormalizeSymbol(symbol string) string
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]RawPricePoint, error)
}

// Describer is implemented by providers that can report descriptive metadata.
type Describer interface {
	DescribeSymbol(ctx context.Context, symbol string) (*models.AssetMetadata, error)
}

// ToPricePoints tags raw bars with the owning asset and the producing source.
func ToPricePoints(assetID int64, source models.Source, raw []RawPricePoint) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(raw))
	for _, r := range raw {
		points = append(points, models.PricePoint{
			AssetID:       assetID,
			Date:          models.DateOnly(r.Date),
			Source:        source,
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Close,
			AdjustedClose: r.AdjustedClose,
			Volume:        r.Volume,
		})
	}
	return points
}
