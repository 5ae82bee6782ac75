package scope

import (
	"go.uber.org/zap"
)

// Filter is one segmentation step over the candidate fragments.
type Filter interface {
	Name() string
	Apply(items []string) ([]string, Step)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Run executes the supplied filters sequentially.
func Run(items []string, steps []Filter, logger *zap.Logger) []string {
	for _, step := range steps {
		next, info := step.Apply(items)
		if logger != nil && info.Dropped > 0 {
			logger.Debug("segment filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}
		items = next
	}
	return items
}

type predicateFilter struct {
	name string
	keep func(string) bool
}

func (f *predicateFilter) Name() string { return f.name }

func (f *predicateFilter) Apply(items []string) ([]string, Step) {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if f.keep(item) {
			kept = append(kept, item)
		}
	}
	return kept, Step{Initial: len(items), Dropped: len(items) - len(kept), Left: len(kept)}
}

// dedupeFilter keeps the first fragment of every normalized key.
type dedupeFilter struct {
	key func(string) string
}

func (f *dedupeFilter) Name() string { return "dedupe" }

func (f *dedupeFilter) Apply(items []string) ([]string, Step) {
	seen := make(map[string]struct{}, len(items))
	kept := make([]string, 0, len(items))
	for _, item := range items {
		k := f.key(item)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, item)
	}
	return kept, Step{Initial: len(items), Dropped: len(items) - len(kept), Left: len(kept)}
}
