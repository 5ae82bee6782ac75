package ai

import "context"

// Completion is one model answer.
type Completion struct {
	Text       string
	TokensUsed int
}

// Generator sends a system instruction and a user prompt to a language model.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (*Completion, error)
	Provider() string
	Model() string
}
