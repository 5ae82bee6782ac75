package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/apierr"
	"github.com/spigell/rfp-evaluator/internal/resilience"
	"github.com/spigell/rfp-evaluator/internal/scoring"
)

func validateScore(in scoring.Input) error {
	if strings.TrimSpace(in.AnalysisID) == "" {
		return apierr.Validation("missing required fields: analysisId").WithDetail("fields", []string{"analysisId"})
	}

	var problems []string
	if p := in.ScopeAnalysis.AgencyServicePercentage; p != nil && (math.IsNaN(*p) || *p < 0 || *p > 1) {
		problems = append(problems, "scopeAnalysis.agencyServicePercentage must be within [0,1]")
	}
	if p := in.ExtractedRFP.CompletenessScore; p != nil && math.IsNaN(*p) {
		problems = append(problems, "extractedRfp.completenessScore is not a number")
	}
	if p := in.ExtractedRFP.OCRPages; p != nil && *p < 0 {
		problems = append(problems, "extractedRfp.ocrPages must not be negative")
	}
	if p := in.ClientResearch.EmployeeCount; p != nil && *p < 0 {
		problems = append(problems, "clientResearch.employeeCount must not be negative")
	}
	for i, f := range in.ExtractedRFP.RedFlags {
		switch scoring.Severity(strings.ToLower(strings.TrimSpace(string(f.Severity)))) {
		case scoring.SeverityHigh, scoring.SeverityMedium, scoring.SeverityLow:
		default:
			problems = append(problems, fmt.Sprintf("extractedRfp.redFlags[%d].severity must be high, medium or low", i))
		}
	}

	if len(problems) > 0 {
		return apierr.New(apierr.CodeSchemaValidationFailed, apierr.StageValidate, false, "%s", strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}
	return nil
}

// CalculateScore computes the weighted financial score of an analysis.
func (s *Service) CalculateScore(ctx context.Context, caller Caller, in scoring.Input) Envelope {
	c := s.begin(caller, in.AnalysisID)

	if err := validateScore(in); err != nil {
		return c.fail(err, apierr.StageValidate)
	}
	if err := c.admit(caller); err != nil {
		return c.fail(err, apierr.StageAdmission)
	}
	if err := ctx.Err(); err != nil {
		return c.fail(err, apierr.StageScoring)
	}

	if pages := in.ExtractedRFP.OCRPages; pages != nil && *pages > 0 {
		if _, err := s.governor.RegisterAnalysisUsage(in.AnalysisID, resilience.Usage{OCRPages: *pages}); err != nil {
			return c.fail(err, apierr.StageBudget)
		}
	}

	res := scoring.Calculate(in)

	c.logger.Info("score calculated",
		zap.Float64("base_score", res.Score.BaseScore),
		zap.Float64("final_score", res.Score.FinalScore),
		zap.String("band", string(res.Score.RecommendationBand)),
		zap.Int("unidentified_factors", len(res.Unidentified())),
	)

	return c.succeed(res.Score, res.Warnings, len(res.Unidentified()) > 0)
}
