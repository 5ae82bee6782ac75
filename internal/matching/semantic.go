package matching

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/resilience"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
	"github.com/spigell/rfp-evaluator/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	systemInstruction   = "You classify requested work against a fixed service catalog and answer with strict JSON."
	defaultMaxLogLength = 200
)

var errValidation = errors.New("semantic response failed validation")

// Guards are the shared resilience primitives a semantic call goes through.
// Any of them may be nil.
type Guards struct {
	Limiter  *resilience.Limiter
	Breakers *resilience.Breakers
	Governor *resilience.Governor
}

// Semantic asks a language model to classify a batch of scope items.
type Semantic struct {
	generator ai.Generator
	guards    Guards
	logger    *zap.Logger
	maxLogLen int
}

// NewSemantic creates a semantic matcher. A nil generator makes every batch fall back.
func NewSemantic(generator ai.Generator, guards Guards, l *zap.Logger, maxLogLength int) *Semantic {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	s := &Semantic{generator: generator, guards: guards, maxLogLen: maxLogLength}
	if generator != nil {
		s.logger = logger.WithCommonFields(l, generator.Provider(), generator.Model())
	} else {
		s.logger = logger.OrNop(l)
	}
	return s
}

// Outcome is the semantic answer for one batch. Either Matches holds one
// model match per item or Reason says why the batch must fall back.
type Outcome struct {
	Matches []ScopeMatch
	Reason  FallbackReason
	Detail  string
}

// OK reports whether the model answered the whole batch.
func (o Outcome) OK() bool { return o.Reason == ReasonNone }

func fallback(reason FallbackReason, detail string) (Outcome, error) {
	return Outcome{Reason: reason, Detail: detail}, nil
}

// MatchBatch classifies items. A non-nil error aborts the analysis; any other
// failure comes back as a fallback Outcome.
func (s *Semantic) MatchBatch(ctx context.Context, analysisID, language string, items []string, entries []taxonomy.Entry) (Outcome, error) {
	if s == nil || s.generator == nil {
		return fallback(ReasonDisabled, "no language model configured")
	}

	provider := s.generator.Provider()

	if s.guards.Limiter != nil {
		if err := s.guards.Limiter.Allow("provider:" + provider); err != nil {
			return fallback(ReasonProviderRateLimited, err.Error())
		}
	}

	if s.guards.Breakers != nil {
		if err := s.guards.Breakers.Allow(provider); err != nil {
			return fallback(ReasonCircuitOpen, err.Error())
		}
	}

	if s.guards.Governor != nil {
		if _, err := s.guards.Governor.RegisterAnalysisUsage(analysisID, resilience.Usage{Queries: 1}); err != nil {
			return Outcome{}, err
		}
	}

	prompt := buildPrompt(language, items, entries)
	s.logger.Debug("semantic match request",
		zap.String(logger.FieldAnalysisID, analysisID),
		zap.Int("items", len(items)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	completion, err := s.generator.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		if s.guards.Breakers != nil {
			s.guards.Breakers.RecordFailure(provider)
		}
		return fallback(ReasonProviderError, err.Error())
	}

	if s.guards.Breakers != nil {
		s.guards.Breakers.RecordSuccess(provider)
	}

	if s.guards.Governor != nil && completion.TokensUsed > 0 {
		if _, err := s.guards.Governor.RegisterAnalysisUsage(analysisID, resilience.Usage{Tokens: completion.TokensUsed}); err != nil {
			return Outcome{}, err
		}
	}

	s.logger.Debug("semantic match response",
		zap.String(logger.FieldAnalysisID, analysisID),
		zap.Int("response_length", utf8.RuneCountInString(completion.Text)),
		zap.Int("tokens_used", completion.TokensUsed),
		zap.String("response_preview", utils.TruncateForLog(completion.Text, s.maxLogLen)),
	)

	matches, err := ParseResponse(completion.Text, items, entries)
	if err != nil {
		reason := ReasonParseFailed
		if errors.Is(err, errValidation) {
			reason = ReasonValidationFailed
		}
		return fallback(reason, err.Error())
	}

	return Outcome{Matches: matches}, nil
}

func buildPrompt(language string, items []string, entries []taxonomy.Entry) string {
	var catalog strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&catalog, "- %s: %s\n", e.Category, e.ServiceName)
	}

	var list strings.Builder
	for i, item := range items {
		fmt.Fprintf(&list, "%d. %s\n", i, item)
	}

	if language = strings.TrimSpace(language); language == "" {
		language = "unspecified"
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{LANGUAGE}}", language)
	prompt = strings.ReplaceAll(prompt, "{{TAXONOMY}}", strings.TrimRight(catalog.String(), "\n"))
	prompt = strings.ReplaceAll(prompt, "{{ITEMS}}", strings.TrimRight(list.String(), "\n"))
	return prompt
}

// ParseResponse decodes and validates a model answer for items. The raw text
// is tried as-is first and once more after RepairJSON.
func ParseResponse(raw string, items []string, entries []taxonomy.Entry) ([]ScopeMatch, error) {
	matches, err := parseStrict(raw, items, entries)
	if err == nil {
		return matches, nil
	}

	repaired := RepairJSON(raw)
	if repaired == strings.TrimSpace(raw) {
		return nil, err
	}

	matches, repairErr := parseStrict(repaired, items, entries)
	if repairErr != nil {
		return nil, repairErr
	}
	return matches, nil
}

func parseStrict(raw string, items []string, entries []taxonomy.Entry) ([]ScopeMatch, error) {
	data, err := decodeObject(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse semantic response: %w", err)
	}

	rawMatches, ok := data["matches"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing matches array", errValidation)
	}
	if len(rawMatches) != len(items) {
		return nil, fmt.Errorf("%w: got %d matches for %d items", errValidation, len(rawMatches), len(items))
	}

	out := make([]ScopeMatch, len(items))
	filled := make([]bool, len(items))

	for pos, rm := range rawMatches {
		obj, ok := rm.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: match %d is not an object", errValidation, pos)
		}

		idx := pos
		if v, present := obj["index"]; present {
			n, ok := coerceInt(v)
			if !ok {
				return nil, fmt.Errorf("%w: match %d has invalid index", errValidation, pos)
			}
			idx = n
		}
		if idx < 0 || idx >= len(items) || filled[idx] {
			return nil, fmt.Errorf("%w: index %d out of range or repeated", errValidation, idx)
		}

		class, ok := ParseMatchClass(coerceString(obj["matchClass"]))
		if !ok {
			return nil, fmt.Errorf("%w: match %d has unknown class %q", errValidation, idx, coerceString(obj["matchClass"]))
		}

		confidence := coerceFloat(obj["confidence"])
		if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
			return nil, fmt.Errorf("%w: match %d confidence out of range", errValidation, idx)
		}

		m := ScopeMatch{
			ScopeItem:  items[idx],
			MatchClass: class,
			Confidence: confidence,
			Source:     SourceSemantic,
		}

		if class != ClassNone {
			name := coerceString(obj["matchedService"])
			entry, known := taxonomy.FindService(entries, name)
			if !known {
				return nil, fmt.Errorf("%w: match %d names unknown service %q", errValidation, idx, name)
			}
			m.MatchedService = strPtr(entry.ServiceName)
		}

		if reasoning := coerceString(obj["reasoning"]); reasoning != "" {
			m.Reasoning = strPtr(reasoning)
		}

		out[idx] = m
		filled[idx] = true
	}

	return out, nil
}
