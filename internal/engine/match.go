package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/apierr"
	"github.com/spigell/rfp-evaluator/internal/matching"
	"github.com/spigell/rfp-evaluator/internal/scope"
)

// MatchRequest is the input of MatchScope.
type MatchRequest struct {
	AnalysisID  string `json:"analysisId" mapstructure:"analysisId"`
	ScopeOfWork string `json:"scopeOfWork" mapstructure:"scopeOfWork"`
	Language    string `json:"language" mapstructure:"language"`
}

// MatchResult is the data of a successful MatchScope envelope.
type MatchResult struct {
	SchemaVersion           string                 `json:"schemaVersion"`
	AnalysisID              string                 `json:"analysisId"`
	TaxonomyVersion         string                 `json:"taxonomyVersion"`
	ScopeItems              []string               `json:"scopeItems"`
	Matches                 []matching.ScopeMatch  `json:"matches"`
	AgencyServicePercentage float64                `json:"agencyServicePercentage"`
	OutsourcingPercentage   float64                `json:"outsourcingPercentage"`
	OutputQuantities        scope.OutputQuantities `json:"outputQuantities"`
	OutputTypes             []scope.OutputType     `json:"outputTypes"`
	Batches                 []matching.Batch       `json:"batches"`
	Warnings                []string               `json:"warnings"`
}

func (r MatchRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.AnalysisID) == "" {
		missing = append(missing, "analysisId")
	}
	if strings.TrimSpace(r.ScopeOfWork) == "" {
		missing = append(missing, "scopeOfWork")
	}
	if len(missing) > 0 {
		return apierr.Validation("missing required fields: %s", strings.Join(missing, ", ")).WithDetail("fields", missing)
	}
	return nil
}

// MatchScope segments the scope of work, matches every item against the
// catalog and summarises the result.
func (s *Service) MatchScope(ctx context.Context, caller Caller, req MatchRequest) Envelope {
	c := s.begin(caller, req.AnalysisID)

	if err := req.validate(); err != nil {
		return c.fail(err, apierr.StageValidate)
	}
	if err := c.admit(caller); err != nil {
		return c.fail(err, apierr.StageAdmission)
	}

	entries, version, err := s.Taxonomy()
	if err != nil {
		return c.fail(err, apierr.StageTaxonomy)
	}

	// The allowance is charged only once the catalog is usable and handed
	// back when matching fails.
	user := strings.TrimSpace(caller.UserID)
	if user != "" {
		if _, err := s.governor.ReserveUserDailyAnalysis(user); err != nil {
			return c.fail(err, apierr.StageAdmission)
		}
	}

	items := s.segmenter.Segment(req.ScopeOfWork)

	res, err := s.matcher.Match(ctx, req.AnalysisID, req.Language, items, entries)
	if err != nil {
		if user != "" {
			s.governor.ReleaseUserDailyAnalysis(user)
		}
		return c.fail(timeoutOr(ctx, err), apierr.StageMatching)
	}

	summary := matching.Aggregate(len(items), res.Matches)
	quantities := scope.ParseOutputQuantities(req.ScopeOfWork)

	warnings := append([]string{}, summary.Warnings...)
	warnings = append(warnings, res.Warnings...)

	c.logger.Info("scope analysed",
		zap.String("taxonomy_version", version),
		zap.Int("items", len(items)),
		zap.Float64("agency_percentage", summary.AgencyServicePercentage),
		zap.Bool("all_fallback", res.AllFallback),
	)

	return c.succeed(MatchResult{
		SchemaVersion:           SchemaVersion,
		AnalysisID:              req.AnalysisID,
		TaxonomyVersion:         version,
		ScopeItems:              items,
		Matches:                 res.Matches,
		AgencyServicePercentage: summary.AgencyServicePercentage,
		OutsourcingPercentage:   summary.OutsourcingPercentage,
		OutputQuantities:        quantities,
		OutputTypes:             scope.ClassifyOutputTypes(quantities),
		Batches:                 res.Batches,
		Warnings:                warnings,
	}, warnings, res.FellBack())
}
