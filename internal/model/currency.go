package model

import (
	"strings"

	"github.com/Rhymond/go-money"
)

// DefaultCurrency is applied when a record does not specify one.
const DefaultCurrency = "USD"

// NormalizeCurrency upper-cases code and substitutes DefaultCurrency for an
// empty value. The second result is false for codes that are not ISO 4217.
func NormalizeCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, true
	}
	return code, money.GetCurrency(code) != nil
}

// FormatAmount renders v in the currency's display format, e.g. "$1,250.00".
func FormatAmount(v float64, code string) string {
	code, _ = NormalizeCurrency(code)
	return money.NewFromFloat(v, code).Display()
}
