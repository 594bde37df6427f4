package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/epeers/fintel/internal/models"
	log "github.com/sirupsen/logrus"
)

// Adapter holds the configured providers in priority order and gives callers one
// fetch contract regardless of which source answers.
type Adapter struct {
	providers []Provider
}

// NewAdapter creates an Adapter. The first provider is the primary.
func NewAdapter(providers ...Provider) *Adapter {
	return &Adapter{providers: providers}
}

// Providers returns the providers in priority order
func (a *Adapter) Providers() []Provider {
	out := make([]Provider, len(a.providers))
	copy(out, a.providers)
	return out
}

// Priority returns the sources in priority order, for merging stored series
func (a *Adapter) Priority() []models.Source {
	sources := make([]models.Source, 0, len(a.providers))
	for _, p := range a.providers {
		sources = append(sources, p.Source())
	}
	return sources
}

func (a *Adapter) lookup(hint models.Source) (Provider, error) {
	if len(a.providers) == 0 {
		return nil, errors.New("no providers configured")
	}
	if hint == "" {
		return a.providers[0], nil
	}
	for _, p := range a.providers {
		if p.Source() == hint {
			return p, nil
		}
	}
	return nil, fmt.Errorf("provider %q not configured", hint)
}

// FetchHistory fetches [start, end] for symbol from the hinted provider, or from the
// primary when hint is empty. The symbol is normalized for that provider and the
// result is sorted, deduplicated by date and clipped to the window. An empty result
// is reported as ErrNoData.
func (a *Adapter) FetchHistory(ctx context.Context, symbol string, start, end time.Time, hint models.Source) ([]RawPricePoint, error) {
	p, err := a.lookup(hint)
	if err != nil {
		return nil, err
	}

	native := p.NormalizeSymbol(symbol)
	raw, err := p.FetchHistory(ctx, native, start, end)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) || ctx.Err() != nil {
			return nil, err
		}
		return nil, NewError(p.Source(), KindOf(err), err)
	}

	points := clip(raw, models.DateOnly(start), models.DateOnly(end))
	if len(points) == 0 {
		return nil, NewError(p.Source(), KindNoData, fmt.Errorf("no bars for %s between %s and %s",
			native, start.Format("2006-01-02"), end.Format("2006-01-02")))
	}

	log.WithFields(log.Fields{
		"source": p.Source(),
		"symbol": native,
		"rows":   len(points),
	}).Debug("fetched price history")
	return points, nil
}

// DescribeSymbol asks the hinted provider for metadata. Providers that cannot
// describe symbols return nil without error.
func (a *Adapter) DescribeSymbol(ctx context.Context, symbol string, hint models.Source) (*models.AssetMetadata, error) {
	p, err := a.lookup(hint)
	if err != nil {
		return nil, err
	}
	d, ok := p.(Describer)
	if !ok {
		return nil, nil
	}
	return d.DescribeSymbol(ctx, p.NormalizeSymbol(symbol))
}

func clip(raw []RawPricePoint, start, end time.Time) []RawPricePoint {
	byDate := make(map[time.Time]RawPricePoint, len(raw))
	for _, r := range raw {
		r.Date = models.DateOnly(r.Date)
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		byDate[r.Date] = r
	}
	out := make([]RawPricePoint, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
