package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/apierr"
	"github.com/spigell/rfp-evaluator/internal/matching"
	"github.com/spigell/rfp-evaluator/internal/resilience"
	"github.com/spigell/rfp-evaluator/internal/scoring"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

const scopeOfWork = "Scope of Work\n" +
	"1. Motion graphics for product launch\n" +
	"2. Supply of office furniture and chairs\n" +
	"3. Produce 4 explainer videos\n"

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _ string, prompt string) (*ai.Completion, error) {
	return &ai.Completion{TokensUsed: 50, Text: `{"matches":[
		{"index":0,"matchedService":"Motion Graphics","matchClass":"full","confidence":0.9,"reasoning":"direct"},
		{"index":1,"matchedService":null,"matchClass":"none","confidence":0.1,"reasoning":"furniture"},
		{"index":2,"matchedService":"Animated Explainer Videos","matchClass":"full","confidence":0.85,"reasoning":"direct"}
	]}`}, nil
}

func (echoGenerator) Provider() string { return "echo" }
func (echoGenerator) Model() string    { return "echo-1" }

func defaultConfig() Config {
	return Config{
		RateLimit: resilience.RateLimitConfig{Capacity: 100, RefillPerSecond: 1},
		Budget:    resilience.DefaultBudgetConfig(),
	}
}

func matchRequest() MatchRequest {
	return MatchRequest{AnalysisID: "a-1", ScopeOfWork: scopeOfWork, Language: "en"}
}

func TestMatchScopeDeterministic(t *testing.T) {
	svc := New(defaultConfig(), nil, nil, nil)

	env := svc.MatchScope(context.Background(), Caller{ID: "tester", RequestID: "req-1"}, matchRequest())
	if env.Error != nil {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
	if env.RequestID != "req-1" || env.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected envelope header: %+v", env)
	}
	if _, err := uuid.Parse(env.TraceID); err != nil {
		t.Fatalf("expected generated trace id, got %q", env.TraceID)
	}

	data, ok := env.Data.(MatchResult)
	if !ok {
		t.Fatalf("unexpected data type %T", env.Data)
	}
	if len(data.ScopeItems) != 3 || len(data.Matches) != 3 {
		t.Fatalf("expected 3 scope items, got %q", data.ScopeItems)
	}
	if !strings.HasPrefix(data.TaxonomyVersion, "tx-") {
		t.Fatalf("unexpected taxonomy version %q", data.TaxonomyVersion)
	}
	if data.OutputQuantities.VideoProduction == nil || *data.OutputQuantities.VideoProduction != 4 {
		t.Fatalf("expected 4 videos, got %+v", data.OutputQuantities)
	}
	if !env.PartialResult {
		t.Fatalf("deterministic matching must mark the result partial")
	}
	if len(env.Warnings) == 0 || !strings.Contains(strings.Join(env.Warnings, " "), "deterministic") {
		t.Fatalf("expected a document-level fallback warning, got %v", env.Warnings)
	}
	if d := data.AgencyServicePercentage + data.OutsourcingPercentage; d < 0.9995 || d > 1.0005 {
		t.Fatalf("percentages must sum to one, got %v", d)
	}
}

func TestMatchScopeSemantic(t *testing.T) {
	svc := New(defaultConfig(), nil, echoGenerator{}, nil)

	env := svc.MatchScope(context.Background(), Caller{ID: "tester"}, matchRequest())
	if env.Error != nil {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
	data := env.Data.(MatchResult)

	if env.PartialResult || len(env.Warnings) != 0 {
		t.Fatalf("expected a complete semantic result, got partial=%v warnings=%v", env.PartialResult, env.Warnings)
	}
	for _, m := range data.Matches {
		if m.Source != matching.SourceSemantic {
			t.Fatalf("expected semantic matches, got %+v", m)
		}
	}
	if data.AgencyServicePercentage != 0.667 {
		t.Fatalf("expected 0.667 agency share, got %v", data.AgencyServicePercentage)
	}

	usage := svc.Usage("a-1")
	if usage.Queries != 1 || usage.Tokens != 50 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	svc.Release("a-1")
	if svc.Usage("a-1") != (resilience.Usage{}) {
		t.Fatalf("release must drop the ledger")
	}
}

func TestMatchScopeFailures(t *testing.T) {
	smallCatalog := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(smallCatalog, []byte("Category,Service\nCreative,Copywriting\n"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	tests := []struct {
		name      string
		svc       func() *Service
		req       MatchRequest
		caller    Caller
		calls     int
		code      apierr.Code
		stage     apierr.Stage
		retryable bool
	}{
		{
			name:  "missing fields",
			svc:   func() *Service { return New(defaultConfig(), nil, nil, nil) },
			req:   MatchRequest{AnalysisID: "a-1", ScopeOfWork: "  "},
			calls: 1,
			code:  apierr.CodeValidation,
			stage: apierr.StageValidate,
		},
		{
			name: "caller rate limited",
			svc: func() *Service {
				cfg := defaultConfig()
				cfg.RateLimit = resilience.RateLimitConfig{Capacity: 1}
				return New(cfg, nil, nil, nil)
			},
			req:       matchRequest(),
			calls:     2,
			code:      apierr.CodeRateLimited,
			stage:     apierr.StageAdmission,
			retryable: true,
		},
		{
			name: "daily limit",
			svc: func() *Service {
				cfg := defaultConfig()
				cfg.Budget.DailyAnalyses = 1
				return New(cfg, nil, nil, nil)
			},
			req:       matchRequest(),
			caller:    Caller{UserID: "user-1"},
			calls:     2,
			code:      apierr.CodeDailyLimitExceeded,
			stage:     apierr.StageAdmission,
			retryable: true,
		},
		{
			name:      "truncated catalog",
			svc:       func() *Service { return New(defaultConfig(), taxonomy.NewLoader(smallCatalog, 0, nil), nil, nil) },
			req:       matchRequest(),
			calls:     1,
			code:      apierr.CodeInternal,
			stage:     apierr.StageTaxonomy,
			retryable: true,
		},
		{
			name: "query budget",
			svc: func() *Service {
				cfg := defaultConfig()
				cfg.Budget.MaxQueries = 1
				cfg.Matching = matching.Config{BatchSize: 1, Parallelism: 1}
				return New(cfg, nil, echoGenerator{}, nil)
			},
			req:   matchRequest(),
			calls: 1,
			code:  apierr.CodeBudgetExceeded,
			stage: apierr.StageBudget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := tt.svc()
			var env Envelope
			for i := 0; i < tt.calls; i++ {
				env = svc.MatchScope(context.Background(), tt.caller, tt.req)
			}
			if env.Error == nil {
				t.Fatalf("expected an error, got %+v", env)
			}
			if env.Error.Code != tt.code || env.Error.Stage != tt.stage || env.Error.Retryable != tt.retryable {
				t.Fatalf("expected %s/%s/%v, got %+v", tt.code, tt.stage, tt.retryable, env.Error)
			}
			if env.Data != nil || env.PartialResult {
				t.Fatalf("failed envelopes carry no data: %+v", env)
			}
		})
	}
}

func TestMatchScopeFailuresKeepDailyAllowance(t *testing.T) {
	smallCatalog := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(smallCatalog, []byte("Category,Service\nCreative,Copywriting\n"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cfg := defaultConfig()
	cfg.Budget.DailyAnalyses = 2
	svc := New(cfg, taxonomy.NewLoader(smallCatalog, 0, nil), nil, nil)
	caller := Caller{UserID: "user-1"}

	for i := 0; i < 3; i++ {
		env := svc.MatchScope(context.Background(), caller, matchRequest())
		if env.Error == nil || env.Error.Code != apierr.CodeInternal || env.Error.Stage != apierr.StageTaxonomy {
			t.Fatalf("call %d: expected taxonomy failure, got %+v", i+1, env.Error)
		}
	}

	cfg.Budget.DailyAnalyses = 1
	cfg.Budget.MaxQueries = 1
	cfg.Matching = matching.Config{BatchSize: 1, Parallelism: 1}
	svc = New(cfg, nil, echoGenerator{}, nil)

	for i := 0; i < 2; i++ {
		env := svc.MatchScope(context.Background(), caller, MatchRequest{AnalysisID: "a-budget", ScopeOfWork: scopeOfWork})
		if env.Error == nil || env.Error.Code != apierr.CodeBudgetExceeded {
			t.Fatalf("call %d: expected budget failure, got %+v", i+1, env.Error)
		}
		svc.Release("a-budget")
	}

	if n, err := svc.governor.ReserveUserDailyAnalysis("user-1"); err != nil || n != 1 {
		t.Fatalf("failed analyses must not spend the allowance, got %d, %v", n, err)
	}
}

func TestMatchScopeEmptySegmentation(t *testing.T) {
	svc := New(defaultConfig(), nil, echoGenerator{}, nil)

	env := svc.MatchScope(context.Background(), Caller{}, MatchRequest{AnalysisID: "a-2", ScopeOfWork: "Scope of Work\nDeliverables:\n"})
	if env.Error != nil {
		t.Fatalf("empty segmentation is not an error: %+v", env.Error)
	}
	data := env.Data.(MatchResult)
	if len(data.ScopeItems) != 0 || len(env.Warnings) != 1 {
		t.Fatalf("expected no items and one warning, got %q / %v", data.ScopeItems, env.Warnings)
	}
}

func TestMatchScopeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := New(defaultConfig(), nil, cancelledGenerator{}, nil)
	env := svc.MatchScope(ctx, Caller{}, matchRequest())
	if env.Error == nil || env.Error.Code != apierr.CodeTimeout {
		t.Fatalf("expected timeout, got %+v", env.Error)
	}
}

type cancelledGenerator struct{}

func (cancelledGenerator) Generate(ctx context.Context, _, _ string) (*ai.Completion, error) {
	return nil, ctx.Err()
}

func (cancelledGenerator) Provider() string { return "cancelled" }
func (cancelledGenerator) Model() string    { return "none" }

func TestServiceReset(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit = resilience.RateLimitConfig{Capacity: 1}
	svc := New(cfg, nil, nil, nil)

	svc.MatchScope(context.Background(), Caller{ID: "c"}, matchRequest())
	if env := svc.MatchScope(context.Background(), Caller{ID: "c"}, matchRequest()); env.Error == nil {
		t.Fatalf("expected the second call to be rate limited")
	}

	svc.Reset()
	if env := svc.MatchScope(context.Background(), Caller{ID: "c"}, matchRequest()); env.Error != nil {
		t.Fatalf("reset must refill buckets, got %+v", env.Error)
	}
}

func TestCalculateScoreFromLoosePayload(t *testing.T) {
	payload, err := ReadPayload(strings.NewReader(`{
		"analysisId": "a-1",
		"extractedRfp": {
			"deliverables": ["a","b","c","d","e"],
			"timeline": "4 months",
			"redFlags": [{"description": "unpaid pitch", "severity": "High"}],
			"completenessScore": "0.8",
			"ocrPages": 12
		},
		"scopeAnalysis": {
			"agencyServicePercentage": 0.75,
			"outputQuantities": {"videoProduction": "3", "visualDesign": 10}
		},
		"clientResearch": {"employeeCount": "450", "holdingGroup": "false", "brandReach": "national"}
	}`))
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}

	in, err := DecodeScoreRequest(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.ClientResearch.EmployeeCount == nil || *in.ClientResearch.EmployeeCount != 450 {
		t.Fatalf("weak decoding failed: %+v", in.ClientResearch)
	}

	svc := New(defaultConfig(), nil, nil, nil)
	env := svc.CalculateScore(context.Background(), Caller{}, in)
	if env.Error != nil {
		t.Fatalf("unexpected error: %+v", env.Error)
	}

	score, ok := env.Data.(scoring.FinancialScore)
	if !ok {
		t.Fatalf("unexpected data type %T", env.Data)
	}
	if score.RedFlagPenalty != 8 || score.CompletenessPenalty != 2 {
		t.Fatalf("unexpected penalties: %+v", score)
	}
	if len(score.FactorBreakdown) != 11 {
		t.Fatalf("expected 11 factors, got %d", len(score.FactorBreakdown))
	}
	if !env.PartialResult {
		t.Fatalf("unidentified factors must mark the result partial")
	}
	if svc.Usage("a-1").OCRPages != 12 {
		t.Fatalf("ocr pages must be charged to the analysis")
	}
}

func TestCalculateScoreRejectsBadInput(t *testing.T) {
	svc := New(defaultConfig(), nil, nil, nil)
	bad := 1.5

	tests := []struct {
		name string
		in   scoring.Input
		code apierr.Code
	}{
		{name: "missing analysis", in: scoring.Input{}, code: apierr.CodeValidation},
		{name: "percentage out of range", in: scoring.Input{AnalysisID: "a", ScopeAnalysis: scoring.ScopeAnalysis{AgencyServicePercentage: &bad}}, code: apierr.CodeSchemaValidationFailed},
		{name: "unknown severity", in: scoring.Input{AnalysisID: "a", ExtractedRFP: scoring.ExtractedRFP{RedFlags: []scoring.RedFlag{{Severity: "critical"}}}}, code: apierr.CodeSchemaValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := svc.CalculateScore(context.Background(), Caller{}, tt.in)
			if env.Error == nil || env.Error.Code != tt.code {
				t.Fatalf("expected %s, got %+v", tt.code, env.Error)
			}
		})
	}
}

func TestCalculateScoreOCRBudget(t *testing.T) {
	cfg := defaultConfig()
	cfg.Budget.MaxOCRPages = 10
	svc := New(cfg, nil, nil, nil)

	pages := 11
	env := svc.CalculateScore(context.Background(), Caller{}, scoring.Input{AnalysisID: "a", ExtractedRFP: scoring.ExtractedRFP{OCRPages: &pages}})
	if env.Error == nil || env.Error.Code != apierr.CodeBudgetExceeded || env.Error.Details["resource"] != "ocr_pages" {
		t.Fatalf("expected ocr budget error, got %+v", env.Error)
	}
}

func TestDecodePayloadRejectsWrongShape(t *testing.T) {
	_, err := DecodeScoreRequest(map[string]any{"extractedRfp": map[string]any{"deliverables": map[string]any{"x": 1}}})
	if err == nil {
		t.Fatalf("expected a decode error")
	}
	if e := apierr.From(err, apierr.StageValidate); e.Code != apierr.CodeSchemaValidationFailed {
		t.Fatalf("expected schema validation failure, got %+v", e)
	}
}
