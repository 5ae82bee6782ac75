package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

const (
	DefaultBatchSize   = 14
	DefaultParallelism = 2
)

// Config controls batching.
type Config struct {
	BatchSize   int `mapstructure:"batch-size"`
	Parallelism int `mapstructure:"parallelism"`
}

// Batch records how one batch of scope items was matched.
type Batch struct {
	Index  int            `json:"index"`
	Start  int            `json:"start"`
	Size   int            `json:"size"`
	Source Source         `json:"source"`
	Reason FallbackReason `json:"fallbackReason,omitempty"`
	Detail string         `json:"detail,omitempty"`
}

// Result is the ordered match set for a whole document.
type Result struct {
	Matches     []ScopeMatch `json:"matches"`
	Batches     []Batch      `json:"batches"`
	Warnings    []string     `json:"warnings,omitempty"`
	AllFallback bool         `json:"allFallback"`
}

// FellBack reports whether any batch was matched deterministically.
func (r Result) FellBack() bool {
	for _, b := range r.Batches {
		if b.Source == SourceDeterministic {
			return true
		}
	}
	return false
}

// Matcher splits scope items into batches and matches each batch with the
// semantic path, or entirely with the deterministic path when that fails.
type Matcher struct {
	cfg      Config
	semantic *Semantic
	logger   *zap.Logger
}

func NewMatcher(cfg Config, semantic *Semantic, l *zap.Logger) *Matcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	return &Matcher{cfg: cfg, semantic: semantic, logger: logger.OrNop(l)}
}

// Match classifies items against entries. Matches keep the order of items.
// The returned error is set only for cancellation and budget exhaustion.
func (m *Matcher) Match(ctx context.Context, analysisID, language string, items []string, entries []taxonomy.Entry) (Result, error) {
	if len(items) == 0 {
		return Result{Matches: []ScopeMatch{}, Batches: []Batch{}}, nil
	}

	deterministic := NewDeterministic(entries)
	batches := split(items, m.cfg.BatchSize)
	outcomes := make([][]ScopeMatch, len(batches))
	meta := make([]Batch, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Parallelism)

	for i, b := range batches {
		g.Go(func() error {
			outcome, err := m.semantic.MatchBatch(gctx, analysisID, language, b.items, entries)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}

			meta[i] = Batch{Index: i, Start: b.start, Size: len(b.items)}
			if outcome.OK() {
				meta[i].Source = SourceSemantic
				outcomes[i] = outcome.Matches
				return nil
			}

			meta[i].Source = SourceDeterministic
			meta[i].Reason = outcome.Reason
			meta[i].Detail = outcome.Detail
			outcomes[i] = deterministic.MatchAll(b.items)

			m.logger.Warn("batch matched deterministically",
				zap.String(logger.FieldAnalysisID, analysisID),
				zap.Int("batch", i),
				zap.Int("items", len(b.items)),
				zap.String("reason", string(outcome.Reason)),
				zap.String("detail", outcome.Detail),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Batches: meta, Matches: make([]ScopeMatch, 0, len(items))}
	fallbacks := 0
	for i, matches := range outcomes {
		res.Matches = append(res.Matches, matches...)
		if meta[i].Source == SourceDeterministic {
			fallbacks++
			if meta[i].Reason != ReasonDisabled {
				res.Warnings = append(res.Warnings, fmt.Sprintf("batch %d (%d items) used deterministic matching: %s", i+1, meta[i].Size, meta[i].Reason))
			}
		}
	}
	ApplyPolicyAll(res.Matches)

	if fallbacks == len(batches) {
		res.AllFallback = true
		res.Warnings = append(res.Warnings, "semantic matching unavailable; every scope item was matched with deterministic token overlap")
	}

	m.logger.Info("scope matched",
		zap.String(logger.FieldAnalysisID, analysisID),
		zap.Int("items", len(items)),
		zap.Int("batches", len(batches)),
		zap.Int("fallback_batches", fallbacks),
	)

	return res, nil
}

type batch struct {
	start int
	items []string
}

func split(items []string, size int) []batch {
	out := make([]batch, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, batch{start: start, items: items[start:end]})
	}
	return out
}
