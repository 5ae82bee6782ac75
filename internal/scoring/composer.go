package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/rfp-evaluator/internal/utils"
)

// BandFor maps a final score to its recommendation band.
func BandFor(score float64) Band {
	switch {
	case score >= 85:
		return BandExcellent
	case score >= 70:
		return BandGood
	case score >= 50:
		return BandModerate
	default:
		return BandLow
	}
}

// Result is a computed score plus the warnings raised along the way.
type Result struct {
	Score    FinancialScore
	Warnings []string
}

// Unidentified returns the factors scored without evidence.
func (r Result) Unidentified() []Factor {
	var out []Factor
	for _, it := range r.Score.FactorBreakdown {
		if !it.Identified {
			out = append(out, it.Factor)
		}
	}
	return out
}

// Calculate runs the factor engine, the penalties and the composer.
func Calculate(in Input) Result {
	factors := EvaluateFactors(in)
	penalties := CalculatePenalties(in.ExtractedRFP)

	warnings := append([]string{}, penalties.Warnings...)
	if missing := countUnidentified(factors); missing == len(factors) {
		warnings = append(warnings, "no scoring factor had supporting evidence")
	} else if missing > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d factors had no supporting evidence and were excluded from the base score", missing, len(factors)))
	}

	return Result{
		Score:    Compose(BaseScore(factors), penalties, factors, len(warnings) > 0),
		Warnings: warnings,
	}
}

// Compose builds the final score from its parts.
func Compose(base float64, p Penalties, factors []FactorBreakdownItem, hasWarnings bool) FinancialScore {
	base = utils.Round2(utils.Clamp(base, 0, 100))
	final := utils.Round2(utils.Clamp(base-p.RedFlag-p.Completeness, 0, 100))
	band := BandFor(final)

	return FinancialScore{
		BaseScore:           base,
		RedFlagPenalty:      p.RedFlag,
		CompletenessPenalty: p.Completeness,
		FinalScore:          final,
		RecommendationBand:  band,
		FactorBreakdown:     factors,
		Rationale:           rationale(final, band, factors, hasWarnings),
	}
}

func rationale(final float64, band Band, factors []FactorBreakdownItem, hasWarnings bool) string {
	top := make([]FactorBreakdownItem, 0, len(factors))
	for _, f := range factors {
		if f.Identified && f.Contribution > 0 {
			top = append(top, f)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Contribution > top[j].Contribution })
	if len(top) > 2 {
		top = top[:2]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Final score %.2f (%s).", final, band)
	if len(top) == 0 {
		b.WriteString(" No factor contributed points.")
	} else {
		names := make([]string, 0, len(top))
		for _, f := range top {
			names = append(names, fmt.Sprintf("%s (%.2f pts)", f.Factor, f.Contribution))
		}
		b.WriteString(" Strongest factors: " + strings.Join(names, " and ") + ".")
	}
	if hasWarnings {
		b.WriteString(" Warnings were raised; review them before deciding.")
	} else {
		b.WriteString(" No warnings.")
	}
	return b.String()
}

func countUnidentified(factors []FactorBreakdownItem) int {
	n := 0
	for _, f := range factors {
		if !f.Identified {
			n++
		}
	}
	return n
}
