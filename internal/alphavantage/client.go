package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/providers"
	"github.com/epeers/fintel/internal/util"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Alphavantage is a Stock and ETF API that fetches data including pricing data
// It is a subscription service, but provides free API access
// https://www.alphavantage.co/documentation/
const defaultBaseURL = "https://www.alphavantage.co/query"

// Client is an HTTP client for the AlphaVantage API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

var (
	_ providers.Provider  = (*Client)(nil)
	_ providers.Describer = (*Client)(nil)
)

// NewClient creates a new AlphaVantage client allowing ratePerMin requests per minute
func NewClient(apiKey string, ratePerMin float64) *Client {
	return NewClientWithBaseURL(apiKey, defaultBaseURL, ratePerMin)
}

// NewClientWithBaseURL creates a new AlphaVantage client with a custom base URL (for testing)
func NewClientWithBaseURL(apiKey, baseURL string, ratePerMin float64) *Client {
	limit := rate.Inf
	if ratePerMin > 0 {
		limit = rate.Limit(ratePerMin / 60)
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Source identifies bars from this client
func (c *Client) Source() models.Source {
	return models.SourceAlphaVantage
}

// NormalizeSymbol converts a stored symbol to AlphaVantage's convention
func (c *Client) NormalizeSymbol(symbol string) string {
	return providers.AlphaVantageSymbol(symbol)
}

// FetchHistory fetches daily adjusted prices for a symbol. The compact output
// covers the latest 100 sessions, so full is only requested for older windows.
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]providers.RawPricePoint, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	params.Set("symbol", symbol)
	params.Set("outputsize", util.DetermineOutputSize(start, c.now())) // "compact" or "full"
	params.Set("apikey", c.apiKey)

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	var tsResp TimeSeriesDailyAdjustedResponse
	if err := json.Unmarshal(body, &tsResp); err != nil {
		return nil, c.malformed(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if err := c.payloadError(tsResp.ErrorMessage, tsResp.Note, tsResp.Information); err != nil {
		return nil, err
	}
	if tsResp.TimeSeries == nil {
		return nil, c.malformed(errors.New("response has no daily time series"))
	}

	start, end = models.DateOnly(start), models.DateOnly(end)
	var prices []providers.RawPricePoint
	for dateStr, ohlcv := range tsResp.TimeSeries {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, c.malformed(fmt.Errorf("bad date %q: %w", dateStr, err))
		}
		bar, err := parseBar(date, ohlcv)
		if err != nil {
			return nil, c.malformed(err)
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		prices = append(prices, bar)
	}

	return prices, nil
}

// DescribeSymbol looks the symbol up with SYMBOL_SEARCH and uses the exact match
func (c *Client) DescribeSymbol(ctx context.Context, symbol string) (*models.AssetMetadata, error) {
	params := url.Values{}
	params.Set("function", "SYMBOL_SEARCH")
	params.Set("keywords", symbol)
	params.Set("apikey", c.apiKey)

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	var searchResp SymbolSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, c.malformed(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if err := c.payloadError(searchResp.ErrorMessage, searchResp.Note, searchResp.Information); err != nil {
		return nil, err
	}

	for _, m := range searchResp.BestMatches {
		if strings.EqualFold(m.Symbol, symbol) {
			return &models.AssetMetadata{
				Description: m.Name,
				Category:    models.CategoryFromInstrumentType(m.Type),
				Currency:    m.Currency,
			}, nil
		}
	}
	return nil, providers.NewError(c.Source(), providers.KindSymbolNotFound,
		fmt.Errorf("no exact SYMBOL_SEARCH match for %s", symbol))
}

func parseBar(date time.Time, ohlcv DailyAdjustedOHLCV) (providers.RawPricePoint, error) {
	var bar providers.RawPricePoint
	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{ohlcv.Open, &bar.Open},
		{ohlcv.High, &bar.High},
		{ohlcv.Low, &bar.Low},
		{ohlcv.Close, &bar.Close},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return bar, fmt.Errorf("bad price %q on %s: %w", f.raw, date.Format("2006-01-02"), err)
		}
		*f.dst = v
	}

	if ohlcv.AdjustedClose != "" {
		adj, err := decimal.NewFromString(ohlcv.AdjustedClose)
		if err != nil {
			return bar, fmt.Errorf("bad adjusted close %q: %w", ohlcv.AdjustedClose, err)
		}
		bar.AdjustedClose = &adj
	}
	if ohlcv.Volume != "" {
		volume, err := strconv.ParseInt(ohlcv.Volume, 10, 64)
		if err != nil {
			return bar, fmt.Errorf("bad volume %q: %w", ohlcv.Volume, err)
		}
		bar.Volume = volume
	}
	bar.Date = date
	return bar, nil
}

// payloadError classifies the 200-status error bodies AlphaVantage uses
func (c *Client) payloadError(errorMessage, note, information string) error {
	switch {
	case errorMessage != "":
		return providers.NewError(c.Source(), providers.KindSymbolNotFound, errors.New(errorMessage))
	case note != "":
		return providers.NewError(c.Source(), providers.KindRateLimited, errors.New(note))
	case information != "":
		return providers.NewError(c.Source(), providers.KindRateLimited, errors.New(information))
	}
	return nil
}

func (c *Client) malformed(err error) error {
	return providers.NewError(c.Source(), providers.KindMalformedResponse, err)
}

func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, providers.ClassifyTransport(ctx, c.Source(), err)
	}

	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.ClassifyTransport(ctx, c.Source(), fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providers.ClassifyStatus(c.Source(), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.ClassifyTransport(ctx, c.Source(), fmt.Errorf("failed to read response: %w", err))
	}
	return body, nil
}
