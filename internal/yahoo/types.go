package yahoo

// ChartResponse represents the Yahoo Finance v8 chart response
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is the error object Yahoo embeds in chart responses
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds one symbol's bars
type ChartResult struct {
	Meta       ChartMeta       `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators ChartIndicators `json:"indicators"`
}

// ChartMeta describes the instrument
type ChartMeta struct {
	Currency       string `json:"currency"`
	Symbol         string `json:"symbol"`
	LongName       string `json:"longName"`
	ShortName      string `json:"shortName"`
	InstrumentType string `json:"instrumentType"`
	GMTOffset      int64  `json:"gmtoffset"`
}

// ChartIndicators holds the parallel OHLCV arrays. Yahoo reports null for
// sessions without a print, so every element is a pointer.
type ChartIndicators struct {
	Quote []struct {
		Open   []*float64 `json:"open"`
		High   []*float64 `json:"high"`
		Low    []*float64 `json:"low"`
		Close  []*float64 `json:"close"`
		Volume []*int64   `json:"volume"`
	} `json:"quote"`
	AdjClose []struct {
		AdjClose []*float64 `json:"adjclose"`
	} `json:"adjclose"`
}
