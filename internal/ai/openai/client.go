package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/resilience"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	contentType    = "application/json"
	userAgent      = "spigell/rfp-evaluator"
)

// Config locates an OpenAI-compatible chat completions endpoint.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client talks to /chat/completions through resilience.Fetch.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	baseURL string
	model   string
	apiKey  string
	policy  resilience.Policy
	logger  *zap.Logger
}

var _ ai.Generator = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// New creates a client. The API key is required.
func New(cfg Config, policy resilience.Policy, l *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		baseURL:    baseURL,
		model:      model,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		policy:     policy,
		logger:     logger.WithCommonFields(l, providerName, model),
	}, nil
}

// Generate posts one chat completion and returns the first choice.
func (c *Client) Generate(ctx context.Context, system, prompt string) (*ai.Completion, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt must not be empty")
	}

	messages := make([]chatMessage, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	c.logger.Debug("make request", zap.String("url", url), zap.Int("payload_bytes", len(payload)))

	resp, err := resilience.Fetch(ctx, c.HTTPClient, c.policy, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		return c.setHeaders(req), nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decode chat completion (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, msg)
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, errors.New("openai api returned empty response")
	}

	return &ai.Completion{
		Text:       strings.TrimSpace(parsed.Choices[0].Message.Content),
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}

func (c *Client) Provider() string { return providerName }

func (c *Client) Model() string { return c.model }

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", "gzip")

	return req
}
