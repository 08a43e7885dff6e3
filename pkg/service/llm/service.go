package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries = 2
	defaultRetryWait  = 500 * time.Millisecond
)

type client struct {
	llmClient  gollem.LLMClient
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	counter    TokenCounter
}

// Option is a functional option for client configuration
type Option func(*client)

// WithRateLimit paces upstream calls to rps requests per second with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithMaxRetries sets how many times a failed call is retried
func WithMaxRetries(n int) Option {
	return func(c *client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryWait sets the base wait between retries. The wait grows linearly per attempt.
func WithRetryWait(d time.Duration) Option {
	return func(c *client) {
		c.retryWait = d
	}
}

// WithTokenCounter replaces the default rune based counter
func WithTokenCounter(counter TokenCounter) Option {
	return func(c *client) {
		if counter != nil {
			c.counter = counter
		}
	}
}

// New creates a Service on top of a gollem LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &client{
		llmClient:  llmClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: defaultMaxRetries,
		retryWait:  defaultRetryWait,
		counter:    NewApproxCounter(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *client) Generate(ctx context.Context, req Request) (string, error) {
	logger := logging.From(ctx).With(slog.String("call", req.Name))

	promptTokens := c.counter.Count(req.SystemPrompt) + c.counter.Count(req.Prompt)
	logger.Debug("generating content",
		slog.Int("prompt_tokens", promptTokens),
		slog.Float64("temperature", req.Params.Temperature),
		slog.Int("max_tokens", req.Params.MaxTokens),
	)

	opts := []gollem.SessionOption{
		gollem.WithSessionSystemPrompt(req.SystemPrompt),
	}
	if req.Schema != nil {
		opts = append(opts,
			gollem.WithSessionContentType(gollem.ContentTypeJSON),
			gollem.WithSessionResponseSchema(req.Schema),
		)
	}

	genOpts := []gollem.GenerateOption{
		gollem.WithTemperature(req.Params.Temperature),
	}
	if req.Params.MaxTokens > 0 {
		genOpts = append(genOpts, gollem.WithMaxTokens(req.Params.MaxTokens))
	}

	var text string
	err := c.retry(ctx, req.Name, func(ctx context.Context) error {
		session, err := c.llmClient.NewSession(ctx, opts...)
		if err != nil {
			return goerr.Wrap(err, "failed to create LLM session")
		}

		resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(req.Prompt)}, genOpts...)
		if err != nil {
			return goerr.Wrap(err, "failed to generate content from LLM")
		}
		if resp == nil || len(resp.Texts) == 0 {
			return goerr.New("LLM returned no text")
		}

		text = strings.Join(resp.Texts, "")
		return nil
	})
	if err != nil {
		return "", err
	}

	if limit := req.Params.MaxTokens; limit > 0 {
		if n := c.counter.Count(text); n > limit {
			if req.Schema != nil {
				// cutting JSON would only break the parse
				logger.Warn("generated content exceeds token bound", slog.Int("tokens", n), slog.Int("max_tokens", limit))
			} else {
				text = c.counter.Truncate(text, limit)
			}
		}
	}

	return text, nil
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "embedding text is empty")
	}

	var vector []float32
	err := c.retry(ctx, "embedding", func(ctx context.Context) error {
		embeddings, err := c.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
		if err != nil {
			return goerr.Wrap(err, "failed to generate embedding")
		}
		if len(embeddings) == 0 {
			return goerr.New("no embedding returned")
		}
		if len(embeddings[0]) != model.EmbeddingDimension {
			return goerr.New("unexpected embedding dimension", goerr.V("dimension", len(embeddings[0])))
		}

		vector = make([]float32, len(embeddings[0]))
		for i, v := range embeddings[0] {
			vector[i] = float32(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// retry runs fn until it succeeds, the context ends or the retry budget is spent.
// The last failure is reported as an upstream service error.
func (c *client) retry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return upstreamError(ctx, "upstream call cancelled", name, ctx.Err())
			case <-time.After(c.retryWait * time.Duration(attempt)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return upstreamError(ctx, "upstream call cancelled", name, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		logging.From(ctx).Warn("upstream call failed",
			slog.String("call", name),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr),
		)
		if ctx.Err() != nil {
			break
		}
	}

	return upstreamError(ctx, "upstream call failed", name, lastErr)
}

// upstreamError tags cause as an upstream failure. A context error is kept in the
// chain so callers can still tell a deadline from a provider failure.
func upstreamError(ctx context.Context, msg, name string, cause error) error {
	errs := []error{model.ErrUpstreamService, cause}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(cause, ctxErr) {
		errs = append(errs, ctxErr)
	}
	return goerr.Wrap(errors.Join(errs...), msg, goerr.V("call", name))
}
