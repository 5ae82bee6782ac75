package matching

import (
	"fmt"

	"github.com/spigell/rfp-evaluator/internal/utils"
)

const (
	contaminationMinCount = 6
	contaminationRatio    = 0.65
)

// Summary is the agency versus outsourcing split of a match set.
type Summary struct {
	Total                   int      `json:"total"`
	Full                    int      `json:"full"`
	Partial                 int      `json:"partial"`
	None                    int      `json:"none"`
	AgencyServicePercentage float64  `json:"agencyServicePercentage"`
	OutsourcingPercentage   float64  `json:"outsourcingPercentage"`
	Warnings                []string `json:"warnings,omitempty"`
}

// Aggregate computes percentages over matches. itemCount is the number of
// scope items segmentation produced.
func Aggregate(itemCount int, matches []ScopeMatch) Summary {
	s := Summary{Total: len(matches)}
	for _, m := range matches {
		switch m.MatchClass {
		case ClassFull:
			s.Full++
		case ClassPartial:
			s.Partial++
		default:
			s.None++
		}
	}

	s.AgencyServicePercentage = utils.Round3((float64(s.Full) + 0.5*float64(s.Partial)) / float64(max(s.Total, 1)))
	s.OutsourcingPercentage = utils.Round3(1 - s.AgencyServicePercentage)

	if itemCount == 0 {
		s.Warnings = append(s.Warnings, "no scope items could be segmented from the scope of work")
	}
	if s.None >= contaminationMinCount && float64(s.None) >= contaminationRatio*float64(s.Total) {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%d of %d scope items matched no capability; scope text may be noisy or outside the catalog", s.None, s.Total))
	}

	return s
}
