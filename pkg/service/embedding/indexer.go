package embedding

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Embedder turns fragment text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer computes and stores fragment embeddings
type Indexer struct {
	fragments interfaces.FragmentRepository
	embedder  Embedder
	failures  atomic.Int64
}

func New(fragments interfaces.FragmentRepository, embedder Embedder) *Indexer {
	return &Indexer{
		fragments: fragments,
		embedder:  embedder,
	}
}

// Dispatch indexes fragment in the background. The caller's cancellation does not
// stop it. The channel delivers the single outcome and may be ignored.
func (x *Indexer) Dispatch(ctx context.Context, fragment *model.Fragment) <-chan async.Result[*model.FragmentEmbedding] {
	f := fragment.Copy()
	return async.Run(ctx, func(ctx context.Context) (*model.FragmentEmbedding, error) {
		return x.Index(ctx, f)
	})
}

// Index embeds the fragment's answer and stores the vector. When the answer was
// edited while the embedding was computed the stale vector is dropped and nil is
// returned; the edit dispatches its own indexing.
func (x *Indexer) Index(ctx context.Context, fragment *model.Fragment) (*model.FragmentEmbedding, error) {
	text := fragment.EmbeddingText()

	vector, err := x.embedder.Embed(ctx, text)
	if err != nil {
		x.failures.Add(1)
		return nil, goerr.Wrap(err, "failed to embed fragment",
			goerr.V(model.ProjectIDKey, fragment.ProjectID),
			goerr.V(model.FragmentIDKey, fragment.ID),
		)
	}

	emb := &model.FragmentEmbedding{FragmentID: fragment.ID, Vector: vector}
	if err := emb.Validate(); err != nil {
		x.failures.Add(1)
		return nil, err
	}

	current, err := x.fragments.Get(ctx, fragment.AuthorID, fragment.ProjectID, fragment.ID)
	if err != nil {
		x.failures.Add(1)
		return nil, goerr.Wrap(err, "fragment vanished before its embedding was stored")
	}
	if current.EmbeddingText() != text {
		logging.From(ctx).Info("dropping embedding of edited fragment",
			slog.String(model.FragmentIDKey, fragment.ID.String()),
		)
		return nil, nil
	}

	if err := x.fragments.PutEmbedding(ctx, fragment.ProjectID, emb); err != nil {
		x.failures.Add(1)
		return nil, goerr.Wrap(err, "failed to store fragment embedding", goerr.V(model.FragmentIDKey, fragment.ID))
	}

	logging.From(ctx).Debug("fragment indexed",
		slog.String(model.ProjectIDKey, fragment.ProjectID.String()),
		slog.String(model.FragmentIDKey, fragment.ID.String()),
	)
	return emb, nil
}

// Failures is the number of indexing attempts that did not store an embedding
func (x *Indexer) Failures() int64 {
	return x.failures.Load()
}
