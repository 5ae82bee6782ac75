package matching

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/resilience"
)

var twoItems = []string{
	"Motion graphics for product launch",
	"Supply of office furniture and chairs",
}

const twoItemAnswer = `{"matches":[
 {"index":0,"matchedService":"motion graphics","matchClass":"full","confidence":0.91,"reasoning":"catalog service"},
 {"index":1,"matchedService":null,"matchClass":"none","confidence":0.1,"reasoning":"furniture"}
]}`

func TestMatcherSemanticPath(t *testing.T) {
	entries := catalog(t)
	gen := &stubGenerator{respond: answer(twoItemAnswer, 120)}
	governor := resilience.NewGovernor(resilience.DefaultBudgetConfig())

	m := NewMatcher(Config{}, NewSemantic(gen, Guards{Governor: governor}, nil, 0), nil)
	res, err := m.Match(context.Background(), "a-1", "en", twoItems, entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.AllFallback || res.FellBack() || len(res.Warnings) != 0 {
		t.Fatalf("expected clean semantic result, got %+v", res)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res.Matches))
	}

	first := res.Matches[0]
	if first.MatchClass != ClassFull || first.MatchedService == nil || *first.MatchedService != "Motion Graphics" {
		t.Fatalf("expected canonical service name, got %+v", first)
	}
	if first.Source != SourceSemantic || first.ScopeItem != twoItems[0] {
		t.Fatalf("unexpected first match: %+v", first)
	}
	if res.Matches[1].MatchClass != ClassNone || res.Matches[1].MatchedService != nil {
		t.Fatalf("unexpected second match: %+v", res.Matches[1])
	}

	usage := governor.AnalysisUsage("a-1")
	if usage.Queries != 1 || usage.Tokens != 120 {
		t.Fatalf("unexpected usage: %+v", usage)
	}

	if !strings.Contains(gen.prompts[0], "Video Production: Video Production") {
		t.Fatalf("prompt must list the catalog: %s", gen.prompts[0])
	}
}

func TestMatcherRepairsFencedAnswer(t *testing.T) {
	fenced := "```json\n" + strings.Replace(twoItemAnswer, `"furniture"}`, `“furniture”,}`, 1) + "\n```"
	gen := &stubGenerator{respond: answer(fenced, 0)}

	m := NewMatcher(Config{}, NewSemantic(gen, Guards{}, nil, 0), nil)
	res, err := m.Match(context.Background(), "a-1", "en", twoItems, catalog(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FellBack() {
		t.Fatalf("expected repaired answer to be accepted, got %+v", res.Batches)
	}
	if res.Matches[1].Reasoning == nil || *res.Matches[1].Reasoning != "furniture" {
		t.Fatalf("unexpected reasoning: %+v", res.Matches[1])
	}
}

func TestMatcherFallsBackWholeBatch(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason FallbackReason
	}{
		{name: "one match missing", text: `{"matches":[{"index":0,"matchedService":"Motion Graphics","matchClass":"full","confidence":0.9}]}`, reason: ReasonValidationFailed},
		{name: "unknown service", text: strings.Replace(twoItemAnswer, "motion graphics", "Rocket Science", 1), reason: ReasonValidationFailed},
		{name: "confidence out of range", text: strings.Replace(twoItemAnswer, "0.91", "1.7", 1), reason: ReasonValidationFailed},
		{name: "bad class", text: strings.Replace(twoItemAnswer, `"full"`, `"mostly"`, 1), reason: ReasonValidationFailed},
		{name: "not json", text: "I cannot help with that.", reason: ReasonParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{respond: answer(tt.text, 10)}
			m := NewMatcher(Config{}, NewSemantic(gen, Guards{}, nil, 0), nil)

			res, err := m.Match(context.Background(), "a-1", "en", twoItems, catalog(t))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Batches) != 1 || res.Batches[0].Reason != tt.reason {
				t.Fatalf("expected reason %q, got %+v", tt.reason, res.Batches)
			}
			for _, match := range res.Matches {
				if match.Source != SourceDeterministic {
					t.Fatalf("batch must fall back as a whole, got %+v", res.Matches)
				}
			}
			if !res.AllFallback {
				t.Fatalf("expected document-level fallback flag")
			}
		})
	}
}

func TestMatcherKeepsOrderAcrossBatches(t *testing.T) {
	items := []string{
		"Motion graphics for product launch",
		"Supply of office furniture and chairs",
		"Social media management and community engagement",
		"Annual elevator inspection",
		"Drone filming of the new campus",
	}

	gen := &stubGenerator{respond: func(prompt string) (*ai.Completion, error) {
		if promptHas(prompt, items[2]) {
			return nil, errors.New("upstream exploded")
		}
		if promptHas(prompt, items[4]) {
			return &ai.Completion{Text: `{"matches":[{"index":0,"matchedService":"Drone Filming","matchClass":"full","confidence":0.95}]}`}, nil
		}
		return &ai.Completion{Text: twoItemAnswer}, nil
	}}
	breakers := resilience.NewBreakers(resilience.CircuitConfig{}, nil)

	core, logs := observer.New(zapcore.WarnLevel)
	m := NewMatcher(Config{BatchSize: 2, Parallelism: 3}, NewSemantic(gen, Guards{Breakers: breakers}, nil, 0), zap.New(core))

	res, err := m.Match(context.Background(), "a-1", "en", items, catalog(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Matches) != len(items) {
		t.Fatalf("expected %d matches, got %d", len(items), len(res.Matches))
	}
	for i, match := range res.Matches {
		if match.ScopeItem != items[i] {
			t.Fatalf("match %d out of order: %q", i, match.ScopeItem)
		}
	}

	wantSources := []Source{SourceSemantic, SourceSemantic, SourceDeterministic, SourceDeterministic, SourceSemantic}
	for i, want := range wantSources {
		if res.Matches[i].Source != want {
			t.Fatalf("match %d: expected source %s, got %s", i, want, res.Matches[i].Source)
		}
	}

	if res.Batches[1].Reason != ReasonProviderError || res.AllFallback {
		t.Fatalf("unexpected batches: %+v", res.Batches)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "batch 2") {
		t.Fatalf("expected one batch warning, got %v", res.Warnings)
	}
	if snap := breakers.Snapshot("stub"); snap.FailureCount != 1 {
		t.Fatalf("expected one recorded failure, got %+v", snap)
	}
	if logs.FilterMessage("batch matched deterministically").Len() != 1 {
		t.Fatalf("expected one fallback log entry, got %d", logs.Len())
	}
}

func TestMatcherWithoutGenerator(t *testing.T) {
	m := NewMatcher(Config{}, NewSemantic(nil, Guards{}, nil, 0), nil)

	res, err := m.Match(context.Background(), "a-1", "", twoItems, catalog(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.AllFallback || res.Batches[0].Reason != ReasonDisabled {
		t.Fatalf("expected disabled fallback, got %+v", res)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected only the document warning, got %v", res.Warnings)
	}
}

func TestMatcherGuardsFallBack(t *testing.T) {
	t.Run("provider rate limited", func(t *testing.T) {
		gen := &stubGenerator{respond: answer(twoItemAnswer, 0)}
		limiter := resilience.NewLimiter(resilience.RateLimitConfig{Capacity: 1})
		if err := limiter.Allow("provider:stub"); err != nil {
			t.Fatalf("drain bucket: %v", err)
		}

		m := NewMatcher(Config{}, NewSemantic(gen, Guards{Limiter: limiter}, nil, 0), nil)
		res, err := m.Match(context.Background(), "a-1", "en", twoItems, catalog(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Batches[0].Reason != ReasonProviderRateLimited || gen.callCount() != 0 {
			t.Fatalf("expected rate limited fallback without a call, got %+v (calls=%d)", res.Batches, gen.callCount())
		}
	})

	t.Run("circuit open", func(t *testing.T) {
		gen := &stubGenerator{respond: answer(twoItemAnswer, 0)}
		breakers := resilience.NewBreakers(resilience.CircuitConfig{FailureThreshold: 1}, nil)
		breakers.RecordFailure("stub")

		m := NewMatcher(Config{}, NewSemantic(gen, Guards{Breakers: breakers}, nil, 0), nil)
		res, err := m.Match(context.Background(), "a-1", "en", twoItems, catalog(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Batches[0].Reason != ReasonCircuitOpen || gen.callCount() != 0 {
			t.Fatalf("expected circuit open fallback without a call, got %+v", res.Batches)
		}
	})
}

func TestMatcherBudgetExceededIsFatal(t *testing.T) {
	gen := &stubGenerator{respond: answer(twoItemAnswer, 0)}
	governor := resilience.NewGovernor(resilience.BudgetConfig{MaxQueries: 1})

	m := NewMatcher(Config{BatchSize: 1, Parallelism: 1}, NewSemantic(gen, Guards{Governor: governor}, nil, 0), nil)
	_, err := m.Match(context.Background(), "a-1", "en", twoItems, catalog(t))
	if !errors.Is(err, resilience.ErrBudgetExceeded) {
		t.Fatalf("expected budget error, got %v", err)
	}
}

func TestMatcherCancelledContextIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &stubGenerator{respond: func(string) (*ai.Completion, error) {
		cancel()
		return nil, context.Canceled
	}}

	m := NewMatcher(Config{}, NewSemantic(gen, Guards{}, nil, 0), nil)
	_, err := m.Match(ctx, "a-1", "en", twoItems, catalog(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestMatcherEmptyInput(t *testing.T) {
	m := NewMatcher(Config{}, NewSemantic(nil, Guards{}, nil, 0), nil)
	res, err := m.Match(context.Background(), "a-1", "en", nil, catalog(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Matches) != 0 || res.AllFallback {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
