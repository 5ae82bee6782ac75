package scope

import (
	"regexp"
	"strconv"
	"strings"
)

// OutputType is one deliverable family.
type OutputType string

const (
	OutputVideoProduction OutputType = "videoProduction"
	OutputMotionGraphics  OutputType = "motionGraphics"
	OutputVisualDesign    OutputType = "visualDesign"
	OutputContentOnly     OutputType = "contentOnly"
)

// AllOutputTypes lists the families in reporting order.
var AllOutputTypes = []OutputType{OutputVideoProduction, OutputMotionGraphics, OutputVisualDesign, OutputContentOnly}

// OutputQuantities holds deliverable counts; nil means no count was found,
// which is not the same as zero.
type OutputQuantities struct {
	VideoProduction *int `json:"videoProduction" mapstructure:"videoProduction"`
	MotionGraphics  *int `json:"motionGraphics" mapstructure:"motionGraphics"`
	VisualDesign    *int `json:"visualDesign" mapstructure:"visualDesign"`
	ContentOnly     *int `json:"contentOnly" mapstructure:"contentOnly"`
}

// Get returns the count for t.
func (q OutputQuantities) Get(t OutputType) *int {
	switch t {
	case OutputVideoProduction:
		return q.VideoProduction
	case OutputMotionGraphics:
		return q.MotionGraphics
	case OutputVisualDesign:
		return q.VisualDesign
	case OutputContentOnly:
		return q.ContentOnly
	}
	return nil
}

// Known reports whether at least one count was extracted.
func (q OutputQuantities) Known() bool {
	for _, t := range AllOutputTypes {
		if q.Get(t) != nil {
			return true
		}
	}
	return false
}

// Total sums the known counts.
func (q OutputQuantities) Total() int {
	total := 0
	for _, t := range AllOutputTypes {
		if v := q.Get(t); v != nil {
			total += *v
		}
	}
	return total
}

const numberExpr = `(\d{1,4}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fifteen|twenty|thirty|forty|fifty)`

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8,
	"nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20, "thirty": 30,
	"forty": 40, "fifty": 50,
}

// Alternatives are tried in order; the first one with any match wins and all
// of its occurrences are summed.
var quantityPatterns = map[OutputType][]*regexp.Regexp{
	OutputVideoProduction: {
		regexp.MustCompile(`(?i)\b` + numberExpr + `\s*(?:x\s*)?(?:(?:short|long|promotional|promo|explainer|social|brand|corporate|testimonial|product|hero|teaser|cutdown|cut-down)[\s-]+)*(?:videos?|films?|commercials?|tvcs?|video spots?)\b`),
		regexp.MustCompile(`(?i)\b(?:videos?|films?|commercials?)\s*[:=\-–]\s*` + numberExpr + `\b`),
	},
	OutputMotionGraphics: {
		regexp.MustCompile(`(?i)\b` + numberExpr + `\s*(?:x\s*)?(?:(?:short|animated|2d|3d|social)[\s-]+)*(?:motion graphics?(?: videos?| pieces?| assets?)?|animations?|animated (?:videos?|assets?|posts?)|gifs?)\b`),
		regexp.MustCompile(`(?i)\b(?:motion graphics?|animations?)\s*[:=\-–]\s*` + numberExpr + `\b`),
	},
	OutputVisualDesign: {
		regexp.MustCompile(`(?i)\b` + numberExpr + `\s*(?:x\s*)?(?:(?:static|print|digital|social|campaign|key|outdoor)[\s-]+)*(?:key visuals?|visuals?|banners?|posters?|infographics?|designs?|flyers?|brochures?|billboards?|static posts?|carousels?)\b`),
		regexp.MustCompile(`(?i)\b(?:key visuals?|visuals?|designs?|banners?|posters?|infographics?)\s*[:=\-–]\s*` + numberExpr + `\b`),
	},
	OutputContentOnly: {
		regexp.MustCompile(`(?i)\b` + numberExpr + `\s*(?:x\s*)?(?:(?:long-form|long form|seo|blog|editorial|written)[\s-]+)*(?:articles?|blog posts?|blogs?|press releases?|newsletters?|scripts?|captions?|copy (?:pieces|assets|decks?)|case studies|white ?papers?)\b`),
		regexp.MustCompile(`(?i)\b(?:articles?|blog posts?|press releases?|newsletters?|captions?)\s*[:=\-–]\s*` + numberExpr + `\b`),
	},
}

// ParseOutputQuantities extracts deliverable counts from raw text.
func ParseOutputQuantities(text string) OutputQuantities {
	return OutputQuantities{
		VideoProduction: parseQuantity(text, quantityPatterns[OutputVideoProduction]),
		MotionGraphics:  parseQuantity(text, quantityPatterns[OutputMotionGraphics]),
		VisualDesign:    parseQuantity(text, quantityPatterns[OutputVisualDesign]),
		ContentOnly:     parseQuantity(text, quantityPatterns[OutputContentOnly]),
	}
}

// ClassifyOutputTypes returns the families with a known count above zero.
func ClassifyOutputTypes(q OutputQuantities) []OutputType {
	types := make([]OutputType, 0, len(AllOutputTypes))
	for _, t := range AllOutputTypes {
		if v := q.Get(t); v != nil && *v > 0 {
			types = append(types, t)
		}
	}
	return types
}

func parseQuantity(text string, patterns []*regexp.Regexp) *int {
	for _, re := range patterns {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		total := 0
		for _, m := range matches {
			total += parseNumber(m[1])
		}
		return &total
	}
	return nil
}

func parseNumber(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, ok := numberWords[s]; ok {
		return n
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
