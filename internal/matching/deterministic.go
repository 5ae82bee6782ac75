package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/rfp-evaluator/internal/taxonomy"
	"github.com/spigell/rfp-evaluator/internal/utils"
)

const (
	lowScoreThreshold     = 0.15
	partialScoreThreshold = 0.45
	minTokenLength        = 3
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "all": {}, "any": {}, "will": {}, "shall": {},
	"must": {}, "should": {}, "including": {}, "include": {}, "our": {}, "your": {}, "their": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "from": {}, "into": {}, "per": {}, "each": {},
	"such": {}, "other": {}, "are": {}, "was": {}, "were": {}, "been": {}, "has": {}, "have": {},
	"not": {}, "but": {}, "can": {}, "may": {}, "also": {}, "via": {}, "using": {}, "within": {},
	"across": {}, "over": {}, "under": {}, "about": {}, "its": {}, "who": {}, "which": {},
	"provide": {}, "provision": {}, "providing": {}, "service": {}, "services": {}, "support": {},
	"required": {}, "requirement": {}, "requirements": {}, "ensure": {}, "deliver": {}, "delivery": {},
	"vendor": {}, "agency": {}, "supplier": {}, "client": {}, "project": {}, "etc": {},
}

type candidate struct {
	entry  taxonomy.Entry
	tokens map[string]struct{}
}

// Deterministic classifies scope items by token overlap against the catalog.
// It never fails and needs no network.
type Deterministic struct {
	candidates []candidate
}

// NewDeterministic precomputes token sets for every catalog entry.
func NewDeterministic(entries []taxonomy.Entry) *Deterministic {
	candidates := make([]candidate, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, candidate{
			entry:  e,
			tokens: Tokenize(taxonomy.Normalize(e.Category) + " " + e.NormalizedText),
		})
	}
	return &Deterministic{candidates: candidates}
}

// Tokenize splits normalized text into a stop-word filtered token set.
func Tokenize(normalized string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		if len([]rune(tok)) < minTokenLength {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// OverlapScore is max(containment*0.8, 0.35*precision + 0.65*recall) where
// precision is relative to a and recall to b.
func OverlapScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	overlap := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}

	o := float64(overlap)
	containment := o / float64(min(len(a), len(b)))
	precision := o / float64(len(a))
	recall := o / float64(len(b))

	return math.Max(containment*0.8, 0.35*precision+0.65*recall)
}

// Best returns the highest scoring entry. Ties keep the first entry in catalog order.
func (d *Deterministic) Best(item string) (taxonomy.Entry, float64, bool) {
	tokens := Tokenize(taxonomy.Normalize(item))

	var (
		best      taxonomy.Entry
		bestScore float64
		found     bool
	)
	for _, c := range d.candidates {
		score := OverlapScore(tokens, c.tokens)
		if !found || score > bestScore {
			best, bestScore, found = c.entry, score, true
		}
	}
	return best, bestScore, found
}

// Match classifies one scope item.
func (d *Deterministic) Match(item string) ScopeMatch {
	entry, score, found := d.Best(item)
	if !found {
		score = 0
	}

	m := ScopeMatch{ScopeItem: item, Source: SourceDeterministic}
	service := entry.ServiceName

	switch {
	case score < lowScoreThreshold:
		if HasAgencySignal(item) {
			m.MatchClass = ClassPartial
			m.Confidence = 0.45
			if score > 0 {
				m.MatchedService = strPtr(service)
			}
			m.Reasoning = strPtr("weak overlap but agency-adjacent wording")
		} else {
			m.MatchClass = ClassNone
			m.Confidence = 0.2
			m.Reasoning = strPtr("no meaningful overlap with the capability catalog")
		}
		return m
	case HasOutOfScopeSignal(item) && score < partialScoreThreshold:
		m.MatchClass = ClassNone
		m.Confidence = noneConfidence(score)
		m.Reasoning = strPtr(fmt.Sprintf("out-of-scope domain; best overlap %.2f with %q", score, service))
		return m
	case HasSupervisorySignal(item) || HasSupervisorySignal(service) || score < partialScoreThreshold:
		m.MatchClass = ClassPartial
		m.Confidence = partialConfidence(score)
	default:
		m.MatchClass = ClassFull
		m.Confidence = fullConfidence(score)
	}

	m.MatchedService = strPtr(service)
	m.Reasoning = strPtr(fmt.Sprintf("token overlap %.2f with %q", score, service))
	return m
}

// MatchAll classifies items in order.
func (d *Deterministic) MatchAll(items []string) []ScopeMatch {
	out := make([]ScopeMatch, 0, len(items))
	for _, item := range items {
		out = append(out, d.Match(item))
	}
	return out
}

func fullConfidence(score float64) float64 {
	return utils.Round3(utils.Clamp(0.6+(score-partialScoreThreshold)/(1-partialScoreThreshold)*0.39, 0.6, 0.99))
}

func partialConfidence(score float64) float64 {
	return utils.Round3(utils.Clamp(0.45+score*0.45, 0.45, 0.9))
}

func noneConfidence(score float64) float64 {
	return utils.Round3(utils.Clamp(0.2+score*0.5, 0.2, 0.7))
}
