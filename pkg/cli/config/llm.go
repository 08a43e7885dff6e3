package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/urfave/cli/v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LLM holds configuration for the generation and embedding provider
type LLM struct {
	provider       string
	geminiProject  string
	geminiLocation string
	openaiAPIKey   string
	rateLimit      float64
	rateBurst      int
	maxRetries     int
	retryWait      time.Duration
}

// Flags returns CLI flags for LLM configuration
func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Category:    "LLM",
			Usage:       "LLM provider (gemini or openai)",
			Value:       ProviderGemini,
			Sources:     cli.EnvVars("MNEMOSYNE_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Category:    "LLM",
			Usage:       "Google Cloud project ID for Gemini API",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_PROJECT"),
			Destination: &x.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Category:    "LLM",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Category:    "LLM",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("MNEMOSYNE_OPENAI_API_KEY"),
			Destination: &x.openaiAPIKey,
		},
		&cli.FloatFlag{
			Name:        "llm-rate-limit",
			Category:    "LLM",
			Usage:       "Maximum LLM calls per second (0 disables the limit)",
			Value:       5,
			Sources:     cli.EnvVars("MNEMOSYNE_LLM_RATE_LIMIT"),
			Destination: &x.rateLimit,
		},
		&cli.IntFlag{
			Name:        "llm-rate-burst",
			Category:    "LLM",
			Usage:       "Burst size of the LLM rate limit",
			Value:       5,
			Sources:     cli.EnvVars("MNEMOSYNE_LLM_RATE_BURST"),
			Destination: &x.rateBurst,
		},
		&cli.IntFlag{
			Name:        "llm-max-retries",
			Category:    "LLM",
			Usage:       "Retries after a failed LLM call",
			Value:       2,
			Sources:     cli.EnvVars("MNEMOSYNE_LLM_MAX_RETRIES"),
			Destination: &x.maxRetries,
		},
		&cli.DurationFlag{
			Name:        "llm-retry-wait",
			Category:    "LLM",
			Usage:       "Base wait between LLM retries",
			Value:       500 * time.Millisecond,
			Sources:     cli.EnvVars("MNEMOSYNE_LLM_RETRY_WAIT"),
			Destination: &x.retryWait,
		},
	}
}

func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("gemini_project", x.geminiProject),
		slog.String("gemini_location", x.geminiLocation),
		slog.Bool("openai_key_set", x.openaiAPIKey != ""),
		slog.Float64("rate_limit", x.rateLimit),
		slog.Int("max_retries", x.maxRetries),
	)
}

// Client creates the provider client from the configured flags
func (x *LLM) Client(ctx context.Context) (gollem.LLMClient, error) {
	switch x.provider {
	case ProviderGemini:
		if x.geminiProject == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "gemini-project is required when using gemini")
		}
		client, err := gemini.New(ctx, x.geminiProject, x.geminiLocation)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case ProviderOpenAI:
		if x.openaiAPIKey == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "openai-api-key is required when using openai")
		}
		client, err := openai.New(ctx, x.openaiAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid llm provider", goerr.V("provider", x.provider))
	}
}

// Configure builds the llm.Service with rate limiting, retries and token counting
func (x *LLM) Configure(ctx context.Context) (llm.Service, error) {
	client, err := x.Client(ctx)
	if err != nil {
		return nil, err
	}

	counter, err := llm.NewTiktokenCounter()
	if err != nil {
		return nil, err
	}

	opts := []llm.Option{
		llm.WithMaxRetries(x.maxRetries),
		llm.WithRetryWait(x.retryWait),
		llm.WithTokenCounter(counter),
	}
	if x.rateLimit > 0 {
		opts = append(opts, llm.WithRateLimit(x.rateLimit, max(x.rateBurst, 1)))
	}

	return llm.New(client, opts...)
}
