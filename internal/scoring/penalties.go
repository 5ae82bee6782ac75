package scoring

import (
	"math"
	"strings"

	"github.com/spigell/rfp-evaluator/internal/utils"
)

// Penalties are the deductions applied to the base score.
type Penalties struct {
	RedFlag      float64
	Completeness float64
	Warnings     []string
}

// RedFlagPenalty weighs flags by severity: 8 per high flag up to 24, 3 per
// medium flag up to 12 and 1 per low flag up to 5. Any other severity is
// weighed as low here; engine.CalculateScore rejects such input before scoring.
func RedFlagPenalty(flags []RedFlag) float64 {
	var high, medium, low int
	for _, f := range flags {
		switch Severity(strings.ToLower(strings.TrimSpace(string(f.Severity)))) {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		default:
			low++
		}
	}
	return utils.Round2(math.Min(8*float64(high), 24) + math.Min(3*float64(medium), 12) + math.Min(float64(low), 5))
}

// CompletenessPenalty is up to 10 points for an incomplete extraction. An
// unknown completeness score gets the full penalty.
func CompletenessPenalty(score *float64) (float64, bool) {
	if score == nil || math.IsNaN(*score) {
		return 10, false
	}
	return utils.Round2((1 - utils.Clamp(*score, 0, 1)) * 10), true
}

// CalculatePenalties derives both penalties from the extraction.
func CalculatePenalties(ex ExtractedRFP) Penalties {
	p := Penalties{RedFlag: RedFlagPenalty(ex.RedFlags)}

	var known bool
	p.Completeness, known = CompletenessPenalty(ex.CompletenessScore)
	if !known {
		p.Warnings = append(p.Warnings, "extraction completeness score missing; applied the maximum completeness penalty")
	}
	return p
}
