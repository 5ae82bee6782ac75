package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/rfp-evaluator/internal/matching"
	"github.com/spigell/rfp-evaluator/internal/resilience"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

const (
	app = "rfp-evaluator"
)

type Config struct {
	Taxonomy   TaxonomyConfig          `mapstructure:"taxonomy"`
	Matching   matching.Config         `mapstructure:"matching"`
	AI         *AIConfig               `mapstructure:"ai"`
	Resilience ResilienceConfig        `mapstructure:"resilience"`
	Budget     resilience.BudgetConfig `mapstructure:"budget"`
}

type TaxonomyConfig struct {
	File       string `mapstructure:"file"`
	MinEntries int    `mapstructure:"min-entries"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	BaseURL    string        `mapstructure:"base-url"`
	Model      string        `mapstructure:"model"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ResilienceConfig struct {
	RateLimit         resilience.RateLimitConfig `mapstructure:"rate-limit"`
	ProviderRateLimit resilience.RateLimitConfig `mapstructure:"provider-rate-limit"`
	Circuit           resilience.CircuitConfig   `mapstructure:"circuit"`
	Retry             resilience.Policy          `mapstructure:"retry"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "rfp-evaluator matches proposal scope against the agency catalog and scores go/no-go fitness",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("config", "RFP_EVALUATOR_CONFIG"); err != nil {
		log.Fatalf("binding RFP_EVALUATOR_CONFIG environment variable: %v", err)
	}

	setDefaults()
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is rfp-evaluator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	retry := resilience.DefaultPolicy()
	circuit := resilience.DefaultCircuitConfig()
	budget := resilience.DefaultBudgetConfig()

	defaults := map[string]any{
		"taxonomy.min-entries":                             taxonomy.DefaultMinEntries,
		"matching.batch-size":                              matching.DefaultBatchSize,
		"matching.parallelism":                             matching.DefaultParallelism,
		"ai.provider":                                      "gemini",
		"ai.max-log-length":                                200,
		"resilience.rate-limit.capacity":                   10,
		"resilience.rate-limit.refill-per-second":          1,
		"resilience.provider-rate-limit.capacity":          30,
		"resilience.provider-rate-limit.refill-per-second": 2,
		"resilience.circuit.failure-threshold":             circuit.FailureThreshold,
		"resilience.circuit.failure-window":                circuit.FailureWindow,
		"resilience.circuit.open-state":                    circuit.OpenState,
		"resilience.circuit.half-open-successes":           circuit.HalfOpenSuccesses,
		"resilience.retry.max-attempts":                    retry.MaxAttempts,
		"resilience.retry.base-delay":                      retry.BaseDelay,
		"resilience.retry.max-delay":                       retry.MaxDelay,
		"resilience.retry.jitter":                          retry.JitterRatio,
		"resilience.retry.attempt-timeout":                 retry.AttemptTimeout,
		"budget.max-tokens":                                budget.MaxTokens,
		"budget.max-ocr-pages":                             budget.MaxOCRPages,
		"budget.max-queries":                               budget.MaxQueries,
		"budget.daily-analyses":                            budget.DailyAnalyses,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = viper.GetString("config")
	}

	explicit := cfgFile != ""
	if explicit {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every key has a default, so a missing implicit config is fine. An
	// explicit one must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
