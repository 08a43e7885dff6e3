package llm

import (
	"context"

	"github.com/m-mizutani/gollem"
)

// Service is the generation and embedding backend used by the interview, refine and
// synthesis flows. Every failure wraps model.ErrUpstreamService.
type Service interface {
	// Generate runs one generation call and returns the produced text
	Generate(ctx context.Context, req Request) (string, error)

	// Embed returns the embedding of text with model.EmbeddingDimension elements
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Params bounds a generation call
type Params struct {
	Temperature float64
	// MaxTokens limits the length of text output. Zero means unbounded.
	MaxTokens int
}

// Request is one generation call
type Request struct {
	// Name identifies the call in logs, e.g. "interview_question"
	Name         string
	SystemPrompt string
	Prompt       string
	Params       Params
	// Schema requests JSON output validated by the provider when set
	Schema *gollem.Parameter
}
