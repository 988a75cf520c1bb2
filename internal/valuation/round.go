package valuation

import (
	"math"

	"github.com/shopspring/decimal"
)

// roundTo rounds half away from zero. Non-finite values are returned as is.
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// money rounds a currency amount to cents.
func money(v float64) float64 { return roundTo(v, 2) }

// ratio rounds a rate, margin or factor to four places.
func ratio(v float64) float64 { return roundTo(v, 4) }

func ptr(v float64) *float64 { return &v }
