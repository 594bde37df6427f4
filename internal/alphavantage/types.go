package alphavantage

// TimeSeriesDailyAdjustedResponse represents the AlphaVantage TIME_SERIES_DAILY_ADJUSTED response.
// Throttling and lookup failures come back with status 200 and one of the
// Note / Information / Error Message fields set instead of a series.
type TimeSeriesDailyAdjustedResponse struct {
	MetaData     MetaData                      `json:"Meta Data"`
	TimeSeries   map[string]DailyAdjustedOHLCV `json:"Time Series (Daily)"`
	ErrorMessage string                        `json:"Error Message"`
	Note         string                        `json:"Note"`
	Information  string                        `json:"Information"`
}

// MetaData represents the metadata section of a time series response
type MetaData struct {
	Information   string `json:"1. Information"`
	Symbol        string `json:"2. Symbol"`
	LastRefreshed string `json:"3. Last Refreshed"`
	OutputSize    string `json:"4. Output Size"`
	TimeZone      string `json:"5. Time Zone"`
}

// DailyAdjustedOHLCV represents one day of adjusted price data
type DailyAdjustedOHLCV struct {
	Open             string `json:"1. open"`
	High             string `json:"2. high"`
	Low              string `json:"3. low"`
	Close            string `json:"4. close"`
	AdjustedClose    string `json:"5. adjusted close"`
	Volume           string `json:"6. volume"`
	Dividend         string `json:"7. dividend amount"`
	SplitCoefficient string `json:"8. split coefficient"`
}

// SymbolSearchResponse represents the AlphaVantage SYMBOL_SEARCH response
type SymbolSearchResponse struct {
	BestMatches  []SymbolMatch `json:"bestMatches"`
	ErrorMessage string        `json:"Error Message"`
	Note         string        `json:"Note"`
	Information  string        `json:"Information"`
}

// SymbolMatch is one SYMBOL_SEARCH candidate
type SymbolMatch struct {
	Symbol     string `json:"1. symbol"`
	Name       string `json:"2. name"`
	Type       string `json:"3. type"`
	Region     string `json:"4. region"`
	Currency   string `json:"8. currency"`
	MatchScore string `json:"9. matchScore"`
}
