package scope

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

// DefaultMinLength is the shortest fragment kept as a scope item.
const DefaultMinLength = 8

var (
	lineSplit      = regexp.MustCompile(`\r\n|\r|\n`)
	fragmentSplit  = regexp.MustCompile(`[;•·▪●◦‣∙■□➢➤►]`)
	leadingMarker  = regexp.MustCompile(`^(?:[-*+>–—]+|\(?\d{1,3}(?:\.\d{1,3})*[.)]|\(?[a-zA-Z][.)]|#{1,6}|\[[ xX]?\])\s+`)
	boldMarker     = regexp.MustCompile(`\*\*|__`)
	calloutPrefix  = regexp.MustCompile(`(?i)^(?:note|important|nb|n\.b\.)\s*:\s*`)
	structuralLine = regexp.MustCompile(`(?i)^(?:` +
		`scope of (?:work|services)|statement of work|sow|terms of reference|` +
		`evaluation criteria|evaluation|deliverables?|requirements?|specifications?|` +
		`background|introduction|overview|objectives?|goals?|context|` +
		`timeline|timelines|schedule|budget|pricing|payment terms|` +
		`submission(?: requirements| guidelines| instructions)?|proposal format|` +
		`terms and conditions|table of contents|contents|appendix(?: [a-z0-9]+)?|annex(?: [a-z0-9]+)?|` +
		`(?:phase|section|part|stage|lot|chapter)\s+(?:\d+(?:\.\d+)*|[ivx]+)(?:\s*[:.\-–]\s*[^\s].{0,30})?` +
		`)\s*[:.\-–]?\s*$`)
	numberingOnly = regexp.MustCompile(`^[\d.\s)(]+$`)
)

// Segmenter splits free-form scope-of-work text into scope items.
type Segmenter struct {
	minLength int
	logger    *zap.Logger
}

// NewSegmenter creates a segmenter. Non-positive minLength takes DefaultMinLength.
func NewSegmenter(minLength int, l *zap.Logger) *Segmenter {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Segmenter{minLength: minLength, logger: logger.OrNop(l)}
}

// Segment returns the cleaned, deduplicated scope items in document order.
func (s *Segmenter) Segment(raw string) []string {
	var fragments []string
	for _, line := range lineSplit.Split(raw, -1) {
		for _, part := range fragmentSplit.Split(line, -1) {
			if cleaned := Clean(part); cleaned != "" {
				fragments = append(fragments, cleaned)
			}
		}
	}

	steps := []Filter{
		&predicateFilter{name: "min_length", keep: func(item string) bool {
			return utf8.RuneCountInString(item) >= s.minLength
		}},
		&predicateFilter{name: "structural", keep: func(item string) bool {
			return !IsStructural(item)
		}},
		&dedupeFilter{key: taxonomy.Normalize},
	}

	items := Run(fragments, steps, s.logger)
	s.logger.Debug("scope segmented", zap.Int("fragments", len(fragments)), zap.Int("items", len(items)))

	return items
}

// Clean strips list markers, bold markers and callout prefixes and collapses whitespace.
func Clean(fragment string) string {
	out := strings.TrimSpace(boldMarker.ReplaceAllString(fragment, ""))
	for {
		next := strings.TrimSpace(leadingMarker.ReplaceAllString(out, ""))
		next = strings.TrimSpace(calloutPrefix.ReplaceAllString(next, ""))
		if next == out {
			break
		}
		out = next
	}
	out = strings.Join(strings.Fields(out), " ")
	return strings.TrimSpace(out)
}

// IsStructural reports whether a cleaned fragment is document scaffolding
// such as a section title rather than a work item.
func IsStructural(item string) bool {
	item = strings.TrimSpace(item)
	return numberingOnly.MatchString(item) || structuralLine.MatchString(item)
}
