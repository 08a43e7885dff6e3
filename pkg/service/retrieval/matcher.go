package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Embedder turns query text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Matcher finds the fragments of a project most similar to a query text
type Matcher struct {
	fragments interfaces.FragmentRepository
	embedder  Embedder
	threshold float64
}

// MatcherOption is a functional option for Matcher
type MatcherOption func(*Matcher)

// WithThreshold overrides model.SimilarityThreshold
func WithThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

func NewMatcher(fragments interfaces.FragmentRepository, embedder Embedder, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		fragments: fragments,
		embedder:  embedder,
		threshold: model.SimilarityThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Search returns at most limit fragments of (authorID, projectID) with similarity
// strictly above the threshold, most similar first and newest first on ties.
// Embedding or search failures degrade to an empty result; only invalid arguments
// are reported as errors.
func (m *Matcher) Search(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, queryText string, limit int) ([]*model.RetrievalResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "query text is empty", goerr.V(model.ProjectIDKey, projectID))
	}
	if limit < 1 {
		return nil, goerr.Wrap(model.ErrValidation, "limit must be positive", goerr.V("limit", limit))
	}

	logger := logging.From(ctx)

	vector, err := m.embedder.Embed(ctx, queryText)
	if err != nil {
		logger.Warn("failed to embed query, continuing without context",
			slog.String(model.ProjectIDKey, projectID.String()),
			slog.Any("error", err),
		)
		return []*model.RetrievalResult{}, nil
	}

	results, err := m.fragments.FindSimilar(ctx, model.SimilarityQuery{
		AuthorID:  authorID,
		ProjectID: projectID,
		Vector:    vector,
		Threshold: m.threshold,
		Limit:     limit,
	})
	if err != nil {
		logger.Warn("failed to search similar fragments, continuing without context",
			slog.String(model.ProjectIDKey, projectID.String()),
			slog.Any("error", err),
		)
		return []*model.RetrievalResult{}, nil
	}

	logger.Debug("retrieved similar fragments",
		slog.String(model.ProjectIDKey, projectID.String()),
		slog.Int("count", len(results)),
	)
	return results, nil
}
