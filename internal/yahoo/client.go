package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/providers"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Yahoo Finance serves unauthenticated daily history through its chart endpoint.
// It is the primary provider.
const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client is an HTTP client for the Yahoo Finance chart API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var (
	_ providers.Provider  = (*Client)(nil)
	_ providers.Describer = (*Client)(nil)
)

// NewClient creates a Yahoo client allowing ratePerSec requests per second
func NewClient(ratePerSec float64) *Client {
	return NewClientWithBaseURL(defaultBaseURL, ratePerSec)
}

// NewClientWithBaseURL creates a Yahoo client with a custom base URL (for testing)
func NewClientWithBaseURL(baseURL string, ratePerSec float64) *Client {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Source identifies bars from this client
func (c *Client) Source() models.Source {
	return models.SourceYahooFinance
}

// NormalizeSymbol converts a stored symbol to Yahoo's convention
func (c *Client) NormalizeSymbol(symbol string) string {
	return providers.YahooSymbol(symbol)
}

// FetchHistory fetches daily bars for symbol between start and end inclusive
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]providers.RawPricePoint, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(models.DateOnly(start).Unix(), 10))
	params.Set("period2", strconv.FormatInt(models.DateOnly(end).AddDate(0, 0, 1).Unix(), 10))
	params.Set("interval", "1d")
	params.Set("includeAdjustedClose", "true")

	result, err := c.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	return parseBars(result)
}

// DescribeSymbol reads instrument metadata from a short chart request
func (c *Client) DescribeSymbol(ctx context.Context, symbol string) (*models.AssetMetadata, error) {
	params := url.Values{}
	params.Set("range", "5d")
	params.Set("interval", "1d")

	result, err := c.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	name := result.Meta.LongName
	if name == "" {
		name = result.Meta.ShortName
	}
	return &models.AssetMetadata{
		Description: name,
		Category:    models.CategoryFromInstrumentType(result.Meta.InstrumentType),
		Currency:    result.Meta.Currency,
	}, nil
}

func (c *Client) chart(ctx context.Context, symbol string, params url.Values) (*ChartResult, error) {
	source := c.Source()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, providers.ClassifyTransport(ctx, source, err)
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; fintel/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.ClassifyTransport(ctx, source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.ClassifyTransport(ctx, source, fmt.Errorf("failed to read response: %w", err))
	}

	var chartResp ChartResponse
	decodeErr := json.Unmarshal(body, &chartResp)

	// Yahoo reports unknown symbols as 404 with a chart error body.
	if decodeErr == nil && chartResp.Chart.Error != nil {
		chartErr := fmt.Errorf("%s: %s", chartResp.Chart.Error.Code, chartResp.Chart.Error.Description)
		if chartResp.Chart.Error.Code == "Not Found" {
			return nil, providers.NewError(source, providers.KindSymbolNotFound, chartErr)
		}
		if resp.StatusCode == http.StatusOK {
			return nil, providers.NewError(source, providers.KindMalformedResponse, chartErr)
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providers.ClassifyStatus(source, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, providers.NewError(source, providers.KindMalformedResponse,
			fmt.Errorf("failed to unmarshal response: %w", decodeErr))
	}
	if len(chartResp.Chart.Result) == 0 {
		return nil, providers.NewError(source, providers.KindSymbolNotFound, fmt.Errorf("no chart result for %s", symbol))
	}
	return &chartResp.Chart.Result[0], nil
}

// parseBars converts the parallel arrays into bars. Sessions with any missing
// OHLC value are skipped. Timestamps are shifted into the exchange's timezone
// before truncating to a date.
func parseBars(result *ChartResult) ([]providers.RawPricePoint, error) {
	if len(result.Timestamp) == 0 {
		return nil, nil
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, providers.NewError(models.SourceYahooFinance, providers.KindMalformedResponse,
			fmt.Errorf("chart has timestamps but no quote indicators"))
	}

	q := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(q.Open) != n || len(q.High) != n || len(q.Low) != n || len(q.Close) != n {
		return nil, providers.NewError(models.SourceYahooFinance, providers.KindMalformedResponse,
			fmt.Errorf("indicator arrays do not match %d timestamps", n))
	}

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) == n {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]providers.RawPricePoint, 0, n)
	for i, ts := range result.Timestamp {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		bar := providers.RawPricePoint{
			Date:  models.DateOnly(time.Unix(ts+result.Meta.GMTOffset, 0).UTC()),
			Open:  decimal.NewFromFloat(*q.Open[i]),
			High:  decimal.NewFromFloat(*q.High[i]),
			Low:   decimal.NewFromFloat(*q.Low[i]),
			Close: decimal.NewFromFloat(*q.Close[i]),
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		if adj != nil && adj[i] != nil {
			v := decimal.NewFromFloat(*adj[i])
			bar.AdjustedClose = &v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
