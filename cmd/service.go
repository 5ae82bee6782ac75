package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/ai/gemini"
	"github.com/spigell/rfp-evaluator/internal/ai/openai"
	"github.com/spigell/rfp-evaluator/internal/engine"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/secrets"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

// setup builds the logger and loads the config.
func setup() (*zap.Logger, *Config) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		l.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return l, config
}

func newLoader(config *Config, l *zap.Logger) *taxonomy.Loader {
	return taxonomy.NewLoader(config.Taxonomy.File, config.Taxonomy.MinEntries, l)
}

func newService(ctx context.Context, config *Config, l *zap.Logger) *engine.Service {
	generator, err := newGenerator(ctx, config, l)
	if err != nil {
		l.Warn("semantic matching disabled, using deterministic matching only", zap.Error(err))
		generator = nil
	}

	maxLogLength := 0
	if config.AI != nil {
		maxLogLength = config.AI.MaxLogLength
	}

	return engine.New(engine.Config{
		Matching:          config.Matching,
		RateLimit:         config.Resilience.RateLimit,
		ProviderRateLimit: config.Resilience.ProviderRateLimit,
		Circuit:           config.Resilience.Circuit,
		Budget:            config.Budget,
		MaxLogLength:      maxLogLength,
	}, newLoader(config, l), generator, l)
}

// newGenerator returns nil without an error when AI is switched off.
func newGenerator(ctx context.Context, config *Config, l *zap.Logger) (ai.Generator, error) {
	cfg := config.AI
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	policy := config.Resilience.Retry

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("ai.gemini section is required for the gemini provider")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.Gemini.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		if cfg.Gemini.MaxRetries > 0 {
			policy.MaxAttempts = cfg.Gemini.MaxRetries
		}

		genLogger := l.With(zap.Int("ai_retry_attempts", policy.MaxAttempts))
		return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, policy, genLogger)
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &OpenAIConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "openai api key",
			File: oc.APIKeyFile,
			Env:  "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			APIKey:  apiKey,
			Timeout: oc.Timeout,
		}, policy, l)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func dumpToTmpFile(v any) (string, error) {
	file, err := os.CreateTemp("", "rfp_evaluation_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}
