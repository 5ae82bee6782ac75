package utils

import "github.com/shopspring/decimal"

// Round rounds half away from zero to the given number of decimal places.
// Decimal arithmetic keeps values such as 0.125 from drifting to 0.12.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return Round(v, 2) }

// Round3 rounds to three decimal places.
func Round3(v float64) float64 { return Round(v, 3) }
