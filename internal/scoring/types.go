package scoring

import (
	"github.com/spigell/rfp-evaluator/internal/scope"
)

// Severity grades a red flag raised during extraction.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// RedFlag is a risk found in the proposal document.
type RedFlag struct {
	Description string   `json:"description" mapstructure:"description"`
	Severity    Severity `json:"severity" mapstructure:"severity"`
}

// ExtractedRFP holds the fields the document parser produced.
type ExtractedRFP struct {
	Deliverables      []string  `json:"deliverables" mapstructure:"deliverables"`
	Dates             []string  `json:"dates" mapstructure:"dates"`
	Timeline          string    `json:"timeline" mapstructure:"timeline"`
	Budget            string    `json:"budget" mapstructure:"budget"`
	RedFlags          []RedFlag `json:"redFlags" mapstructure:"redFlags"`
	CompletenessScore *float64  `json:"completenessScore" mapstructure:"completenessScore"`
	OCRPages          *int      `json:"ocrPages" mapstructure:"ocrPages"`
}

// ScopeAnalysis is the output of scope matching used for scoring.
type ScopeAnalysis struct {
	ScopeItems              []string               `json:"scopeItems" mapstructure:"scopeItems"`
	AgencyServicePercentage *float64               `json:"agencyServicePercentage" mapstructure:"agencyServicePercentage"`
	OutputQuantities        scope.OutputQuantities `json:"outputQuantities" mapstructure:"outputQuantities"`
	OutputTypes             []scope.OutputType     `json:"outputTypes" mapstructure:"outputTypes"`
}

// ClientResearch holds entity, financial and digital presence signals about
// the issuing organisation.
type ClientResearch struct {
	EmployeeCount    *int     `json:"employeeCount" mapstructure:"employeeCount"`
	CompanySize      string   `json:"companySize" mapstructure:"companySize"`
	Revenue          string   `json:"revenue" mapstructure:"revenue"`
	BrandReach       string   `json:"brandReach" mapstructure:"brandReach"`
	HoldingGroup     *bool    `json:"holdingGroup" mapstructure:"holdingGroup"`
	HoldingGroupName string   `json:"holdingGroupName" mapstructure:"holdingGroupName"`
	EntityType       string   `json:"entityType" mapstructure:"entityType"`
	MediaSpend       string   `json:"mediaSpend" mapstructure:"mediaSpend"`
	SocialPlatforms  []string `json:"socialPlatforms" mapstructure:"socialPlatforms"`
	PostsPerWeek     *float64 `json:"postsPerWeek" mapstructure:"postsPerWeek"`
	Followers        *int     `json:"followers" mapstructure:"followers"`
	ContentTypes     []string `json:"contentTypes" mapstructure:"contentTypes"`
}

// Input is everything a score is computed from.
type Input struct {
	AnalysisID     string         `json:"analysisId" mapstructure:"analysisId"`
	ExtractedRFP   ExtractedRFP   `json:"extractedRfp" mapstructure:"extractedRfp"`
	ScopeAnalysis  ScopeAnalysis  `json:"scopeAnalysis" mapstructure:"scopeAnalysis"`
	ClientResearch ClientResearch `json:"clientResearch" mapstructure:"clientResearch"`
}

// Factor names one of the fixed scoring factors.
type Factor string

const (
	FactorScopeMagnitude Factor = "Project Scope Magnitude"
	FactorAgencyServices Factor = "Agency Services %"
	FactorOutputQuantity Factor = "Output Quantities"
	FactorOutputTypes    Factor = "Output Types"
	FactorCompanySize    Factor = "Company/Brand Size"
	FactorBrandReach     Factor = "Brand Reach"
	FactorHoldingGroup   Factor = "Holding-Group Affiliation"
	FactorEntityType     Factor = "Entity Type"
	FactorMediaSpend     Factor = "Media/Ad Spend"
	FactorSocialActivity Factor = "Social Activity"
	FactorContentTypes   Factor = "Content Types"
)

// FactorBreakdownItem is one factor's share of the base score.
type FactorBreakdownItem struct {
	Factor       Factor   `json:"factor"`
	Weight       float64  `json:"weight"`
	Score        float64  `json:"score"`
	Contribution float64  `json:"contribution"`
	Evidence     []string `json:"evidence"`
	Identified   bool     `json:"identified"`
}

// Band is the coarse recommendation derived from the final score.
type Band string

const (
	BandExcellent Band = "EXCELLENT"
	BandGood      Band = "GOOD"
	BandModerate  Band = "MODERATE"
	BandLow       Band = "LOW"
)

// FinancialScore is the decision artifact.
type FinancialScore struct {
	BaseScore           float64               `json:"baseScore"`
	RedFlagPenalty      float64               `json:"redFlagPenalty"`
	CompletenessPenalty float64               `json:"completenessPenalty"`
	FinalScore          float64               `json:"finalScore"`
	RecommendationBand  Band                  `json:"recommendationBand"`
	FactorBreakdown     []FactorBreakdownItem `json:"factorBreakdown"`
	Rationale           string                `json:"rationale"`
}
