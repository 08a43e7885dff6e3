package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/service/synthesis"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

type SynthesisUseCase struct {
	repo  interfaces.Repository
	llm   llm.Service
	cfg   Config
	locks *keyedLock
}

func NewSynthesisUseCase(repo interfaces.Repository, llmService llm.Service, cfg Config) *SynthesisUseCase {
	return &SynthesisUseCase{
		repo:  repo,
		llm:   llmService,
		cfg:   cfg,
		locks: newKeyedLock(),
	}
}

type editorPromptData struct {
	Episodes string
}

// Synthesize generates the project's chapter draft from all of its fragments and
// replaces the previous draft. The previous draft survives every failure. Calls
// for the same project run one at a time.
func (uc *SynthesisUseCase) Synthesize(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Chapter, error) {
	release, err := uc.locks.Lock(ctx, string(projectID))
	if err != nil {
		return nil, err
	}
	defer release()

	logger := logging.From(ctx).With(slog.String(model.ProjectIDKey, projectID.String()))

	project, err := uc.repo.Project().Get(ctx, authorID, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}

	fragments, err := uc.repo.Fragment().List(ctx, authorID, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list fragments", goerr.V(model.ProjectIDKey, projectID))
	}
	if len(fragments) == 0 {
		return nil, goerr.Wrap(model.ErrEmptySource, "nothing to synthesize", goerr.V(model.ProjectIDKey, projectID))
	}

	prompt, err := renderPrompt(editorUser, editorPromptData{Episodes: synthesis.RenderEpisodes(fragments)})
	if err != nil {
		return nil, err
	}

	genCtx, cancel := withTimeout(ctx, uc.cfg.SynthesisTimeout)
	defer cancel()

	generated, err := uc.llm.Generate(genCtx, llm.Request{
		Name:         "chapter_synthesis",
		SystemPrompt: editorSystemPrompt,
		Prompt:       prompt,
		Params:       uc.cfg.Synthesis,
		Schema:       synthesis.Schema(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate chapters", goerr.V(model.ProjectIDKey, projectID))
	}

	drafts, err := synthesis.ParseChapters(generated)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse generated chapters", goerr.V(model.ProjectIDKey, projectID))
	}
	chapters := synthesis.BuildChapters(drafts)
	for _, c := range chapters {
		c.ProjectID = projectID
		c.AuthorID = authorID
	}

	stored, err := uc.repo.Chapter().Replace(ctx, authorID, projectID, chapters)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to replace chapters", goerr.V(model.ProjectIDKey, projectID))
	}

	// The new draft is already stored, so a failed status advance is reported but not returned
	if project.Status.Normalize() == types.ProjectStatusDraft {
		if _, err := project.Advance(types.ProjectStatusInProgress); err != nil {
			_ = errutil.Handle(ctx, err, "failed to advance project status")
		} else if _, err := uc.repo.Project().Update(ctx, project); err != nil {
			_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to update project status", goerr.V(model.ProjectIDKey, projectID)),
				"failed to advance project status")
		}
	}

	logger.Info("chapters synthesized",
		slog.Int("fragments", len(fragments)),
		slog.Int("chapters", len(stored)),
	)
	return stored, nil
}
