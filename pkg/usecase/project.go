package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type ProjectUseCase struct {
	repo interfaces.Repository
	cfg  Config
}

func NewProjectUseCase(repo interfaces.Repository, cfg Config) *ProjectUseCase {
	return &ProjectUseCase{
		repo: repo,
		cfg:  cfg,
	}
}

// ProjectUpdate holds the editable fields of a project. Nil fields are left untouched.
type ProjectUpdate struct {
	Title       *string
	Description *string
	Status      *types.ProjectStatus
}

func (uc *ProjectUseCase) CreateProject(ctx context.Context, authorID model.AuthorID, title, description string) (*model.Project, error) {
	outline := make([]model.OutlineItem, len(uc.cfg.Outline))
	copy(outline, uc.cfg.Outline)

	project := &model.Project{
		AuthorID:    authorID,
		Title:       strings.TrimSpace(title),
		Description: description,
		Outline:     outline,
		Status:      types.ProjectStatusDraft,
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	created, err := uc.repo.Project().Create(ctx, project)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create project")
	}
	return created, nil
}

func (uc *ProjectUseCase) GetProject(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) (*model.Project, error) {
	project, err := uc.repo.Project().Get(ctx, authorID, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}
	return project, nil
}

func (uc *ProjectUseCase) ListProjects(ctx context.Context, authorID model.AuthorID) ([]*model.Project, error) {
	projects, err := uc.repo.Project().List(ctx, authorID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list projects", goerr.V(model.AuthorIDKey, authorID))
	}
	return projects, nil
}

// UpdateProject applies update. A status change must follow the lifecycle
// draft, in_progress, completed one step at a time.
func (uc *ProjectUseCase) UpdateProject(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, update ProjectUpdate) (*model.Project, error) {
	project, err := uc.GetProject(ctx, authorID, projectID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		project.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		project.Description = *update.Description
	}
	if update.Status != nil {
		if !update.Status.IsValid() {
			return nil, goerr.Wrap(model.ErrValidation, "invalid project status", goerr.V(model.StatusKey, *update.Status))
		}
		if _, err := project.Advance(*update.Status); err != nil {
			return nil, err
		}
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	updated, err := uc.repo.Project().Update(ctx, project)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update project", goerr.V(model.ProjectIDKey, projectID))
	}
	return updated, nil
}
