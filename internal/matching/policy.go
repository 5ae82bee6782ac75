package matching

import "math"

const (
	marketResearchConfidenceCap = 0.35
	agencyPromotionFloor        = 0.45
)

// ApplyPolicy runs the business rules shared by both matching paths.
// Market research is never in scope, whatever the similarity. Agency-adjacent
// items are never fully excluded.
func ApplyPolicy(m ScopeMatch) ScopeMatch {
	if IsMarketResearch(m.ScopeItem) {
		m.MatchClass = ClassNone
		m.MatchedService = nil
		m.Confidence = math.Min(m.Confidence, marketResearchConfidenceCap)
		m.Reasoning = strPtr("market research is outside the offered capabilities")
		return m
	}

	if m.MatchClass == ClassNone && HasAgencySignal(m.ScopeItem) {
		m.MatchClass = ClassPartial
		m.Confidence = math.Max(m.Confidence, agencyPromotionFloor)
		if m.Reasoning == nil {
			m.Reasoning = strPtr("agency-adjacent work kept as partial")
		}
	}

	return m
}

// ApplyPolicyAll applies ApplyPolicy to every match in place.
func ApplyPolicyAll(matches []ScopeMatch) []ScopeMatch {
	for i := range matches {
		matches[i] = ApplyPolicy(matches[i])
	}
	return matches
}
