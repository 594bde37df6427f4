package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// symbolPattern accepts tickers such as AAPL, BRK.B, BTC-USD, EURUSD=X and ^GSPC.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]*$`)

var symbolValidate = newSymbolValidator()

func newSymbolValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("assetsymbol", ValidateSymbolField); err != nil {
		panic(err)
	}
	return v
}

// ValidateSymbolField is the validator func behind the `assetsymbol` tag.
// It expects an already normalized (trimmed, upper-case) symbol.
func ValidateSymbolField(fl validator.FieldLevel) bool {
	return symbolPattern.MatchString(fl.Field().String())
}

// NormalizeSymbol trims and upper-cases a client supplied symbol and validates it.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if err := symbolValidate.Var(symbol, fmt.Sprintf("required,max=%d,assetsymbol", MaxSymbolLength)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetSymbol, raw)
	}
	return symbol, nil
}
