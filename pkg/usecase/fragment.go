package usecase

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

type FragmentUseCase struct {
	repo    interfaces.Repository
	indexer *embedding.Indexer
	matcher *retrieval.Matcher
	cfg     Config
}

func NewFragmentUseCase(repo interfaces.Repository, indexer *embedding.Indexer, matcher *retrieval.Matcher, cfg Config) *FragmentUseCase {
	return &FragmentUseCase{
		repo:    repo,
		indexer: indexer,
		matcher: matcher,
		cfg:     cfg,
	}
}

// FragmentInput is the content of a new fragment. An empty Question makes a standalone memo.
type FragmentInput struct {
	Question string
	Answer   string
	AudioURL string
}

// ReindexResult summarizes a Reindex run
type ReindexResult struct {
	// Pending is the number of fragments that lacked an embedding
	Pending int
	Indexed int
	Failed  int
}

// CreateFragment stores the fragment and dispatches its embedding. The embedding
// outcome never affects the result.
func (uc *FragmentUseCase) CreateFragment(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, input FragmentInput) (*model.Fragment, error) {
	if _, err := uc.repo.Project().Get(ctx, authorID, projectID); err != nil {
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}

	fragment := &model.Fragment{
		ProjectID: projectID,
		AuthorID:  authorID,
		Question:  strings.TrimSpace(input.Question),
		Answer:    strings.TrimSpace(input.Answer),
		AudioURL:  input.AudioURL,
	}
	if err := fragment.Validate(); err != nil {
		return nil, err
	}

	created, err := uc.repo.Fragment().Create(ctx, fragment)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create fragment", goerr.V(model.ProjectIDKey, projectID))
	}

	uc.indexer.Dispatch(ctx, created)
	return created, nil
}

func (uc *FragmentUseCase) GetFragment(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) (*model.Fragment, error) {
	fragment, err := uc.repo.Fragment().Get(ctx, authorID, projectID, fragmentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}
	return fragment, nil
}

// ListFragments returns the project's fragments newest first
func (uc *FragmentUseCase) ListFragments(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Fragment, error) {
	if _, err := uc.repo.Project().Get(ctx, authorID, projectID); err != nil {
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}

	fragments, err := uc.repo.Fragment().List(ctx, authorID, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list fragments", goerr.V(model.ProjectIDKey, projectID))
	}
	slices.Reverse(fragments)
	return fragments, nil
}

// UpdateFragment applies update. A changed answer invalidates the stored embedding
// and dispatches a new one.
func (uc *FragmentUseCase) UpdateFragment(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID, update model.FragmentUpdate) (*model.Fragment, error) {
	fragment, err := uc.GetFragment(ctx, authorID, projectID, fragmentID)
	if err != nil {
		return nil, err
	}

	if update.Answer != nil {
		trimmed := strings.TrimSpace(*update.Answer)
		update.Answer = &trimmed
	}
	answerChanged := update.Apply(fragment)
	if err := fragment.Validate(); err != nil {
		return nil, err
	}

	updated, err := uc.repo.Fragment().Update(ctx, fragment, answerChanged)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}

	if answerChanged {
		uc.indexer.Dispatch(ctx, updated)
	}
	return updated, nil
}

// DeleteFragment removes the fragment and its embedding. Chapters are not touched.
func (uc *FragmentUseCase) DeleteFragment(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) error {
	if err := uc.repo.Fragment().Delete(ctx, authorID, projectID, fragmentID); err != nil {
		return goerr.Wrap(err, "failed to delete fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}
	return nil
}

// Reindex embeds every fragment of the project that has no embedding. Individual
// failures are counted, not returned.
func (uc *FragmentUseCase) Reindex(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) (*ReindexResult, error) {
	fragments, err := uc.ListFragments(ctx, authorID, projectID)
	if err != nil {
		return nil, err
	}

	var pending []*model.Fragment
	for _, f := range fragments {
		if !f.Embedded {
			pending = append(pending, f)
		}
	}

	var indexed, failed atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(uc.cfg.ReindexConcurrency, 1))
	for _, f := range pending {
		eg.Go(func() error {
			if _, err := uc.indexer.Index(egCtx, f); err != nil {
				failed.Add(1)
				logging.From(ctx).Warn("failed to index fragment",
					slog.String(model.FragmentIDKey, f.ID.String()),
					slog.Any("error", err),
				)
				return nil
			}
			indexed.Add(1)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "reindex interrupted", goerr.V(model.ProjectIDKey, projectID))
	}

	return &ReindexResult{
		Pending: len(pending),
		Indexed: int(indexed.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

// Search runs the similarity matcher over the project's fragments
func (uc *FragmentUseCase) Search(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, query string, limit int) ([]*model.RetrievalResult, error) {
	if _, err := uc.repo.Project().Get(ctx, authorID, projectID); err != nil {
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}

	if strings.TrimSpace(query) == "" {
		query = uc.cfg.SeedTopic
	}
	if limit <= 0 {
		limit = uc.cfg.RetrievalLimit
	}
	return uc.matcher.Search(ctx, authorID, projectID, query, limit)
}
