package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const daysPerMonth = 30.44

var (
	durationExpr = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)(?:\s*(?:-|–|to)\s*(\d+(?:\.\d+)?))?\s*(years?|yrs?|months?|mos?|weeks?|wks?|days?)\b`)
	inlineDate   = regexp.MustCompile(`(?i)\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|\d{1,2}(?:st|nd|rd|th)?\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+\d{4}|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})\b`)
	ordinal      = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
)

// Timeline is the project span inferred from extraction fields.
type Timeline struct {
	Months   float64
	Evidence string
}

// InferTimeline derives the project span. The spread between the earliest
// and latest parseable date wins; a stated duration is used otherwise.
func InferTimeline(ex ExtractedRFP) (Timeline, bool) {
	candidates := append([]string{}, ex.Dates...)
	candidates = append(candidates, inlineDate.FindAllString(ex.Timeline, -1)...)

	var earliest, latest time.Time
	parsed := 0
	for _, raw := range candidates {
		ts, ok := parseDate(raw)
		if !ok {
			continue
		}
		if parsed == 0 || ts.Before(earliest) {
			earliest = ts
		}
		if parsed == 0 || ts.After(latest) {
			latest = ts
		}
		parsed++
	}

	if parsed >= 2 && latest.After(earliest) {
		months := latest.Sub(earliest).Hours() / 24 / daysPerMonth
		return Timeline{
			Months:   months,
			Evidence: fmt.Sprintf("dates span %.1f months (%s to %s)", months, earliest.Format(time.DateOnly), latest.Format(time.DateOnly)),
		}, true
	}

	if months, phrase, ok := statedDuration(ex.Timeline); ok {
		return Timeline{Months: months, Evidence: fmt.Sprintf("stated duration %q", phrase)}, true
	}

	return Timeline{}, false
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(ordinal.ReplaceAllString(raw, "$1"))
	if raw == "" {
		return time.Time{}, false
	}
	ts, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// statedDuration returns the longest duration phrase in text, in months.
func statedDuration(text string) (float64, string, bool) {
	var (
		best   float64
		phrase string
		found  bool
	)
	for _, m := range durationExpr.FindAllStringSubmatch(text, -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			if upper, err := strconv.ParseFloat(m[2], 64); err == nil && upper > n {
				n = upper
			}
		}

		months := toMonths(n, strings.ToLower(m[3]))
		if !found || months > best {
			best, phrase, found = months, m[0], true
		}
	}
	return best, phrase, found
}

func toMonths(n float64, unit string) float64 {
	switch {
	case strings.HasPrefix(unit, "y"):
		return n * 12
	case strings.HasPrefix(unit, "w"):
		return n * 7 / daysPerMonth
	case strings.HasPrefix(unit, "d"):
		return n / daysPerMonth
	default:
		return n
	}
}
