package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spigell/rfp-evaluator/internal/scope"
	"github.com/spigell/rfp-evaluator/internal/utils"
)

// Ceilings are the maximum points per factor, in reporting order.
var Ceilings = []struct {
	Factor Factor
	Points float64
}{
	{FactorScopeMagnitude, 18},
	{FactorAgencyServices, 15},
	{FactorOutputQuantity, 8},
	{FactorOutputTypes, 10},
	{FactorCompanySize, 12},
	{FactorBrandReach, 8},
	{FactorHoldingGroup, 5},
	{FactorEntityType, 5},
	{FactorMediaSpend, 10},
	{FactorSocialActivity, 5},
	{FactorContentTypes, 4},
}

type rung struct {
	min    float64
	points float64
}

// climb returns the points of the first rung v reaches.
func climb(v float64, ladder []rung) float64 {
	for _, r := range ladder {
		if v >= r.min {
			return r.points
		}
	}
	return 0
}

var (
	deliverableLadder = []rung{{20, 11}, {10, 8}, {5, 5}, {1, 3}}
	timelineLadder    = []rung{{6, 6}, {3, 4}, {1, 2}, {0, 1}}
	agencyLadder      = []rung{{0.8, 15}, {0.6, 12}, {0.4, 9}, {0.2, 5}, {math.SmallestNonzeroFloat64, 2}}
	quantityLadder    = []rung{{20, 8}, {10, 6}, {5, 4}, {1, 2}}
	typesLadder       = []rung{{4, 10}, {3, 8}, {2, 6}, {1, 4}}
	employeeLadder    = []rung{{10_000, 12}, {1_000, 10}, {250, 8}, {50, 5}, {1, 2}}
	revenueLadder     = []rung{{1e9, 12}, {1e8, 10}, {1e7, 7}, {1e6, 4}, {1, 2}}
	mediaSpendLadder  = []rung{{1e7, 10}, {1e6, 8}, {2.5e5, 6}, {5e4, 4}, {1, 2}}
	platformLadder    = []rung{{4, 2}, {1, 1}}
	postsLadder       = []rung{{7, 2}, {2, 1}}
	followersLadder   = []rung{{100_000, 1}}
	contentLadder     = []rung{{4, 4}, {3, 3}, {2, 2}, {1, 1}}
)

type tier struct {
	pattern *regexp.Regexp
	points  float64
}

func matchTier(text string, tiers []tier) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, t := range tiers {
		if t.pattern.MatchString(text) {
			return t.points, true
		}
	}
	return 0, false
}

var (
	sizeTiers = []tier{
		{regexp.MustCompile(`(?i)\b(enterprise|multinational|fortune|global leader)\b`), 12},
		{regexp.MustCompile(`(?i)\blarge\b`), 10},
		{regexp.MustCompile(`(?i)\b(mid|medium|mid-size|midsize|sme)\b`), 7},
		{regexp.MustCompile(`(?i)\bsmall\b`), 4},
		{regexp.MustCompile(`(?i)\b(micro|startup|start-up)\b`), 2},
	}
	reachTiers = []tier{
		{regexp.MustCompile(`(?i)\b(global|international|worldwide)\b`), 8},
		{regexp.MustCompile(`(?i)\b(regional|multi-?country|multinational)\b`), 6},
		{regexp.MustCompile(`(?i)\b(national|nationwide|country-?wide)\b`), 4},
		{regexp.MustCompile(`(?i)\b(local|city|municipal)\b`), 2},
	}
	entityTiers = []tier{
		{regexp.MustCompile(`(?i)\b(multinational|listed|public company|publicly traded|plc|corporation)\b`), 5},
		{regexp.MustCompile(`(?i)\b(private|family|llc|ltd)\b`), 4},
		{regexp.MustCompile(`(?i)\b(government|ministry|public sector|authority|municipality|semi-government)\b`), 3},
		{regexp.MustCompile(`(?i)\b(ngo|non-?profit|charity|foundation)\b`), 2},
		{regexp.MustCompile(`(?i)\b(startup|start-up|sole)\b`), 1},
	}
	spendTiers = []tier{
		{regexp.MustCompile(`(?i)\b(very high|heavy|significant|major)\b`), 10},
		{regexp.MustCompile(`(?i)\bhigh\b`), 8},
		{regexp.MustCompile(`(?i)\b(medium|moderate)\b`), 5},
		{regexp.MustCompile(`(?i)\b(low|minimal|limited)\b`), 2},
	}
)

// signal is the raw outcome of one factor before weighting.
type signal struct {
	points     float64
	evidence   []string
	identified bool
}

func scopeMagnitude(in Input) signal {
	var s signal

	count, source := len(in.ExtractedRFP.Deliverables), "deliverables listed"
	if count == 0 {
		count, source = len(in.ScopeAnalysis.ScopeItems), "scope items segmented"
	}
	if count > 0 {
		s.identified = true
		s.points += climb(float64(count), deliverableLadder)
		s.evidence = append(s.evidence, fmt.Sprintf("%d %s", count, source))
	}

	if tl, ok := InferTimeline(in.ExtractedRFP); ok {
		s.identified = true
		s.points += climb(tl.Months, timelineLadder)
		s.evidence = append(s.evidence, tl.Evidence)
	}

	return s
}

func agencyServices(in Input) signal {
	pct := in.ScopeAnalysis.AgencyServicePercentage
	if pct == nil {
		return signal{}
	}
	return signal{
		identified: true,
		points:     climb(*pct, agencyLadder),
		evidence:   []string{fmt.Sprintf("%.1f%% of scope deliverable in-house", *pct*100)},
	}
}

func outputQuantities(in Input) signal {
	q := in.ScopeAnalysis.OutputQuantities
	if !q.Known() {
		return signal{}
	}

	s := signal{identified: true, points: climb(float64(q.Total()), quantityLadder)}
	for _, t := range scope.AllOutputTypes {
		if v := q.Get(t); v != nil {
			s.evidence = append(s.evidence, fmt.Sprintf("%s: %d", t, *v))
		}
	}
	return s
}

func outputTypes(in Input) signal {
	types := in.ScopeAnalysis.OutputTypes
	if len(types) == 0 {
		types = scope.ClassifyOutputTypes(in.ScopeAnalysis.OutputQuantities)
	}
	if len(types) == 0 && !in.ScopeAnalysis.OutputQuantities.Known() {
		return signal{}
	}

	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	evidence := "no output types with a positive count"
	if len(names) > 0 {
		evidence = "output types: " + strings.Join(names, ", ")
	}
	return signal{identified: true, points: climb(float64(len(types)), typesLadder), evidence: []string{evidence}}
}

func companySize(in Input) signal {
	cr := in.ClientResearch
	if cr.EmployeeCount != nil && *cr.EmployeeCount > 0 {
		return signal{
			identified: true,
			points:     climb(float64(*cr.EmployeeCount), employeeLadder),
			evidence:   []string{fmt.Sprintf("%d employees", *cr.EmployeeCount)},
		}
	}
	if points, ok := matchTier(cr.CompanySize, sizeTiers); ok {
		return signal{identified: true, points: points, evidence: []string{"company size: " + cr.CompanySize}}
	}
	if amount, ok := ParseAmount(cr.Revenue); ok && amount.IsPositive() {
		return signal{
			identified: true,
			points:     climb(amount.InexactFloat64(), revenueLadder),
			evidence:   []string{"revenue: " + cr.Revenue},
		}
	}
	return signal{}
}

func brandReach(in Input) signal {
	points, ok := matchTier(in.ClientResearch.BrandReach, reachTiers)
	if !ok {
		return signal{}
	}
	return signal{identified: true, points: points, evidence: []string{"brand reach: " + in.ClientResearch.BrandReach}}
}

func holdingGroup(in Input) signal {
	cr := in.ClientResearch
	if cr.HoldingGroup == nil {
		return signal{}
	}
	if !*cr.HoldingGroup {
		return signal{identified: true, points: 2, evidence: []string{"independent, no holding group"}}
	}
	evidence := "part of a holding group"
	if name := strings.TrimSpace(cr.HoldingGroupName); name != "" {
		evidence = "part of holding group " + name
	}
	return signal{identified: true, points: 5, evidence: []string{evidence}}
}

func entityType(in Input) signal {
	points, ok := matchTier(in.ClientResearch.EntityType, entityTiers)
	if !ok {
		return signal{}
	}
	return signal{identified: true, points: points, evidence: []string{"entity type: " + in.ClientResearch.EntityType}}
}

func mediaSpend(in Input) signal {
	text := in.ClientResearch.MediaSpend
	if amount, ok := ParseAmount(text); ok && amount.IsPositive() {
		return signal{
			identified: true,
			points:     climb(amount.InexactFloat64(), mediaSpendLadder),
			evidence:   []string{"media spend " + formatAmount(amount)},
		}
	}
	if points, ok := matchTier(text, spendTiers); ok {
		return signal{identified: true, points: points, evidence: []string{"media spend: " + text}}
	}
	return signal{}
}

func socialActivity(in Input) signal {
	cr := in.ClientResearch
	platforms := distinct(cr.SocialPlatforms)

	var s signal
	if len(platforms) > 0 {
		s.identified = true
		s.points += climb(float64(len(platforms)), platformLadder)
		s.evidence = append(s.evidence, "active on "+strings.Join(platforms, ", "))
	}
	if cr.PostsPerWeek != nil {
		s.identified = true
		s.points += climb(*cr.PostsPerWeek, postsLadder)
		s.evidence = append(s.evidence, fmt.Sprintf("%.1f posts per week", *cr.PostsPerWeek))
	}
	if cr.Followers != nil {
		s.identified = true
		s.points += climb(float64(*cr.Followers), followersLadder)
		s.evidence = append(s.evidence, fmt.Sprintf("%d followers", *cr.Followers))
	}
	return s
}

func contentTypes(in Input) signal {
	types := distinct(in.ClientResearch.ContentTypes)
	if len(types) == 0 {
		return signal{}
	}
	return signal{
		identified: true,
		points:     climb(float64(len(types)), contentLadder),
		evidence:   []string{"content types: " + strings.Join(types, ", ")},
	}
}

var evaluators = map[Factor]func(Input) signal{
	FactorScopeMagnitude: scopeMagnitude,
	FactorAgencyServices: agencyServices,
	FactorOutputQuantity: outputQuantities,
	FactorOutputTypes:    outputTypes,
	FactorCompanySize:    companySize,
	FactorBrandReach:     brandReach,
	FactorHoldingGroup:   holdingGroup,
	FactorEntityType:     entityType,
	FactorMediaSpend:     mediaSpend,
	FactorSocialActivity: socialActivity,
	FactorContentTypes:   contentTypes,
}

// EvaluateFactors computes every factor in reporting order.
func EvaluateFactors(in Input) []FactorBreakdownItem {
	items := make([]FactorBreakdownItem, 0, len(Ceilings))
	for _, c := range Ceilings {
		s := evaluators[c.Factor](in)

		item := FactorBreakdownItem{
			Factor:     c.Factor,
			Weight:     utils.Round2(c.Points / 100),
			Evidence:   s.evidence,
			Identified: s.identified,
		}
		if item.Evidence == nil {
			item.Evidence = []string{}
		}
		if s.identified {
			points := utils.Clamp(s.points, 0, c.Points)
			item.Contribution = utils.Round2(points)
			item.Score = utils.Round2(points / c.Points * 100)
		}
		items = append(items, item)
	}
	return items
}

// BaseScore averages contributions over the identified weight. With nothing
// identified it returns the raw contribution sum.
func BaseScore(items []FactorBreakdownItem) float64 {
	var contribution, weight float64
	for _, it := range items {
		if !it.Identified {
			continue
		}
		contribution += it.Contribution
		weight += it.Weight
	}
	if weight == 0 {
		var raw float64
		for _, it := range items {
			raw += it.Contribution
		}
		return utils.Round2(raw)
	}
	return utils.Round2(contribution / weight)
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func formatAmount(d decimal.Decimal) string {
	return d.Round(0).StringFixed(0)
}
