package scoring

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountExpr = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(billion|bn|b|million|mn|mm|m|thousand|k)?\b`)

var multipliers = map[string]int64{
	"billion": 1_000_000_000, "bn": 1_000_000_000, "b": 1_000_000_000,
	"million": 1_000_000, "mn": 1_000_000, "mm": 1_000_000, "m": 1_000_000,
	"thousand": 1_000, "k": 1_000,
}

// ParseAmount returns the largest monetary amount written in text, for
// example "$2.5M", "USD 1,200,000" or "1.2 billion". Currency is ignored.
func ParseAmount(text string) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, m := range amountExpr.FindAllStringSubmatch(text, -1) {
		v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		if mult, ok := multipliers[strings.ToLower(m[2])]; ok {
			v = v.Mul(decimal.NewFromInt(mult))
		}
		if !found || v.GreaterThan(best) {
			best, found = v, true
		}
	}
	return best, found
}
