package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type projectRepository struct {
	mu       sync.RWMutex
	projects map[model.ProjectID]*model.Project
}

func newProjectRepository() *projectRepository {
	return &projectRepository{
		projects: make(map[model.ProjectID]*model.Project),
	}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := project.Copy()
	if created.ID == "" {
		created.ID = model.NewProjectID()
	}
	if created.Status == "" {
		created.Status = types.ProjectStatusDraft
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.projects[created.ID] = created
	return created.Copy(), nil
}

func (r *projectRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) (*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.projects[projectID]
	if !exists || p.AuthorID != authorID {
		return nil, goerr.Wrap(ErrNotFound, "project not found", goerr.V(model.ProjectIDKey, projectID))
	}
	return p.Copy(), nil
}

func (r *projectRepository) List(ctx context.Context, authorID model.AuthorID) ([]*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Project, 0)
	for _, p := range r.projects {
		if p.AuthorID == authorID {
			result = append(result, p.Copy())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *projectRepository) Update(ctx context.Context, project *model.Project) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.projects[project.ID]
	if !exists || existing.AuthorID != project.AuthorID {
		return nil, goerr.Wrap(ErrNotFound, "project not found", goerr.V(model.ProjectIDKey, project.ID))
	}

	updated := project.Copy()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.projects[updated.ID] = updated
	return updated.Copy(), nil
}
