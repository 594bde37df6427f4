package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	source    models.Source
	gotSymbol string
	bars      []RawPricePoint
	err       error
}

func (f *fakeProvider) Source() models.Source { return f.source }
func (f *fakeProvider) NormalizeSymbol(s string) string { return YahooSymbol(s) }
func (f *fakeProvider) FetchHistory(_ context.Context, symbol string, _, _ time.Time) ([]RawPricePoint, error) {
	f.gotSymbol = symbol
	return f.bars, f.err
}

func bar(date string, close int64) RawPricePoint {
	d, _ := time.Parse("2006-01-02", date)
	c := decimal.NewFromInt(close)
	return RawPricePoint{Date: d, Open: c, High: c, Low: c, Close: c}
}

func TestSymbolNormalization(t *testing.T) {
	tests := []struct {
		in    string
		yahoo string
		av    string
	}{
		{"brk.b", "BRK-B", "BRK.B"},
		{"BRK-B", "BRK-B", "BRK.B"},
		{"AAPL", "AAPL", "AAPL"},
		{" msft ", "MSFT", "MSFT"},
		{"BTC-USD", "BTC-USD", "BTC-USD"},
		{"^GSPC", "^GSPC", "^GSPC"},
		{"EURUSD=X", "EURUSD=X", "EURUSD=X"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.yahoo, YahooSymbol(tt.in))
			assert.Equal(t, tt.av, AlphaVantageSymbol(tt.in))
		})
	}
}

func TestErrorMatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", NewError(models.SourceYahooFinance, KindRateLimited, cause))

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSymbolNotFound)
	assert.Equal(t, KindRateLimited, KindOf(err))

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())
	assert.Equal(t, models.SourceYahooFinance, pe.Source)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusNotFound, KindSymbolNotFound},
		{http.StatusBadGateway, KindTransientNetwork},
		{http.StatusServiceUnavailable, KindTransientNetwork},
		{http.StatusBadRequest, KindMalformedResponse},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, ClassifyStatus(models.SourceAlphaVantage, tt.status).Kind, "status %d", tt.status)
	}
}

func TestClassifyTransport_CancelledContextIsNotClassified(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ClassifyTransport(ctx, models.SourceYahooFinance, errors.New("dial failed"))
	assert.ErrorIs(t, err, context.Canceled)

	err = ClassifyTransport(context.Background(), models.SourceYahooFinance, errors.New("dial failed"))
	assert.ErrorIs(t, err, ErrTransientNetwork)
}

func TestAdapterFetchHistory(t *testing.T) {
	primary := &fakeProvider{source: models.SourceYahooFinance, bars: []RawPricePoint{
		bar("2024-01-04", 3),
		bar("2024-01-02", 1),
		bar("2024-01-02", 2),
		bar("2023-12-29", 9),
	}}
	secondary := &fakeProvider{source: models.SourceAlphaVantage}
	a := NewAdapter(primary, secondary)

	start, _ := time.Parse("2006-01-02", "2024-01-01")
	end, _ := time.Parse("2006-01-02", "2024-01-31")

	got, err := a.FetchHistory(context.Background(), "brk.b", start, end, "")
	require.NoError(t, err)
	assert.Equal(t, "BRK-B", primary.gotSymbol)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-02", got[0].Date.Format("2006-01-02"))
	assert.True(t, got[0].Close.Equal(decimal.NewFromInt(2)))

	_, err = a.FetchHistory(context.Background(), "AAPL", start, end, models.SourceAlphaVantage)
	assert.ErrorIs(t, err, ErrNoData)

	assert.Equal(t, []models.Source{models.SourceYahooFinance, models.SourceAlphaVantage}, a.Priority())
}

func TestAdapterFetchHistory_ClassifiesBareErrors(t *testing.T) {
	p := &fakeProvider{source: models.SourceYahooFinance, err: ErrSymbolNotFound}
	a := NewAdapter(p)

	_, err := a.FetchHistory(context.Background(), "ZZZZ", time.Now().AddDate(0, 0, -5), time.Now(), "")
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindSymbolNotFound, pe.Kind)
	assert.False(t, pe.Retryable())
}

func TestAdapterUnknownHint(t *testing.T) {
	a := NewAdapter(&fakeProvider{source: models.SourceYahooFinance})
	_, err := a.FetchHistory(context.Background(), "AAPL", time.Now(), time.Now(), models.SourceAlphaVantage)
	assert.Error(t, err)

	meta, err := a.DescribeSymbol(context.Background(), "AAPL", "")
	assert.NoError(t, err)
	assert.Nil(t, meta)
}

func TestToPricePoints(t *testing.T) {
	points := ToPricePoints(7, models.SourceAlphaVantage, []RawPricePoint{bar("2024-01-02", 5)})
	require.Len(t, points, 1)
	assert.Equal(t, int64(7), points[0].AssetID)
	assert.Equal(t, models.SourceAlphaVantage, points[0].Source)
}
