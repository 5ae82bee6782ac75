package matching

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

func catalog(t *testing.T) []taxonomy.Entry {
	t.Helper()
	entries, err := taxonomy.NewLoader("", 0, nil).Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return entries
}

type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	respond func(prompt string) (*ai.Completion, error)
}

func (s *stubGenerator) Generate(_ context.Context, _ string, prompt string) (*ai.Completion, error) {
	s.mu.Lock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.respond(prompt)
}

func (s *stubGenerator) Provider() string { return "stub" }
func (s *stubGenerator) Model() string    { return "stub-model" }

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func answer(text string, tokens int) func(string) (*ai.Completion, error) {
	return func(string) (*ai.Completion, error) {
		return &ai.Completion{Text: text, TokensUsed: tokens}, nil
	}
}

func promptHas(prompt, item string) bool {
	return strings.Contains(prompt, ". "+item+"\n") || strings.HasSuffix(prompt, ". "+item)
}
