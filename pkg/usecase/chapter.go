package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/render"
)

type ChapterUseCase struct {
	repo interfaces.Repository
}

func NewChapterUseCase(repo interfaces.Repository) *ChapterUseCase {
	return &ChapterUseCase{repo: repo}
}

// ListChapters returns the project's chapters by order
func (uc *ChapterUseCase) ListChapters(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Chapter, error) {
	if _, err := uc.repo.Project().Get(ctx, authorID, projectID); err != nil {
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}

	chapters, err := uc.repo.Chapter().List(ctx, authorID, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chapters", goerr.V(model.ProjectIDKey, projectID))
	}
	return chapters, nil
}

func (uc *ChapterUseCase) GetChapter(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (*model.Chapter, error) {
	chapter, err := uc.repo.Chapter().Get(ctx, authorID, projectID, chapterID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get chapter", goerr.V(model.ChapterIDKey, chapterID))
	}
	return chapter, nil
}

// UpdateChapter saves an edit of title or content. Order is owned by synthesis.
func (uc *ChapterUseCase) UpdateChapter(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID, update model.ChapterUpdate) (*model.Chapter, error) {
	chapter, err := uc.GetChapter(ctx, authorID, projectID, chapterID)
	if err != nil {
		return nil, err
	}

	update.Apply(chapter)
	if err := chapter.Validate(); err != nil {
		return nil, err
	}
	if chapter.Content == nil || chapter.Content.Type != model.NodeDoc {
		return nil, goerr.Wrap(model.ErrValidation, "chapter content must be a doc node", goerr.V(model.ChapterIDKey, chapterID))
	}

	updated, err := uc.repo.Chapter().Update(ctx, chapter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update chapter", goerr.V(model.ChapterIDKey, chapterID))
	}
	return updated, nil
}

// PreviewChapter renders the chapter as HTML
func (uc *ChapterUseCase) PreviewChapter(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (string, error) {
	chapter, err := uc.GetChapter(ctx, authorID, projectID, chapterID)
	if err != nil {
		return "", err
	}
	return render.HTML(chapter)
}

// ChapterText returns the chapter body as plain text
func (uc *ChapterUseCase) ChapterText(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (string, error) {
	chapter, err := uc.GetChapter(ctx, authorID, projectID, chapterID)
	if err != nil {
		return "", err
	}
	return render.Text(chapter), nil
}
