package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/resilience"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.5-flash"
)

var retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(s|sec|secs|seconds?)\b`)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client. Transient API errors are retried
// under the configured policy.
type Generator struct {
	models modelsAPI
	model  string
	policy resilience.Policy
	logger *zap.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, policy resilience.Policy, l *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Generator{
		models: client.Models,
		model:  model,
		policy: policy,
		logger: logger.WithCommonFields(l, providerName, model),
	}, nil
}

// Generate sends the prompt with the system instruction and returns the joined text parts.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (*ai.Completion, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
	if system = strings.TrimSpace(system); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	attempt := 0
	resp, err := resilience.Retry(ctx, g.policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		attempt++
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
		if err != nil {
			g.logger.Debug("gemini attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return resp, err
	}, g.retryable)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return nil, errors.New("gemini api returned empty response")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &ai.Completion{Text: output, TokensUsed: tokens}, nil
}

func (g *Generator) Provider() string { return providerName }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// retryable accepts 429 and 5xx API errors, except quota errors asking for a
// wait longer than the policy would ever sleep.
func (g *Generator) retryable(err error) bool {
	code, message, ok := apiError(err)
	if !ok {
		return !errors.Is(err, context.Canceled)
	}

	if !resilience.RetryableStatus(code) {
		return false
	}

	if code == http.StatusTooManyRequests {
		if delay, found := retryDelay(message); found && delay > g.policy.MaxDelay {
			g.logger.Warn("gemini quota delay exceeds retry budget",
				zap.Duration("requested_delay", delay),
				zap.Duration("max_delay", g.policy.MaxDelay),
			)
			return false
		}
	}

	return true
}

func apiError(err error) (int, string, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value.Code, value.Message, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message, true
	}
	return 0, "", false
}

func retryDelay(message string) (time.Duration, bool) {
	m := retryDelayPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
