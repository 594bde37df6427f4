package providers

import "strings"

// YahooSymbol converts a stored symbol to Yahoo's convention: share classes use a dash.
//
//	BRK.B -> BRK-B
func YahooSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if isShareClass(s, '.') {
		return strings.Replace(s, ".", "-", 1)
	}
	return s
}

// AlphaVantageSymbol converts a stored symbol to AlphaVantage's convention: share
// classes use a dot. Pairs such as BTC-USD are left alone.
//
//	BRK-B -> BRK.B
func AlphaVantageSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if isShareClass(s, '-') {
		return strings.Replace(s, "-", ".", 1)
	}
	return s
}

// isShareClass reports whether s looks like TICKER<sep>X with a one-letter class suffix.
func isShareClass(s string, sep byte) bool {
	i := strings.IndexByte(s, sep)
	if i <= 0 || i != strings.LastIndexByte(s, sep) {
		return false
	}
	suffix := s[i+1:]
	return len(suffix) == 1 && suffix[0] >= 'A' && suffix[0] <= 'Z'
}
