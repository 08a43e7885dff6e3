package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type chapterRepository struct {
	mu sync.RWMutex
	// sets holds the whole chapter set of each project; Replace swaps the slice
	sets map[model.ProjectID][]*model.Chapter
}

func newChapterRepository() *chapterRepository {
	return &chapterRepository{
		sets: make(map[model.ProjectID][]*model.Chapter),
	}
}

func (r *chapterRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (*model.Chapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.sets[projectID] {
		if c.ID == chapterID && c.AuthorID == authorID {
			return c.Copy(), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "chapter not found",
		goerr.V(model.ProjectIDKey, projectID),
		goerr.V(model.ChapterIDKey, chapterID),
	)
}

func (r *chapterRepository) List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Chapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Chapter, 0, len(r.sets[projectID]))
	for _, c := range r.sets[projectID] {
		if c.AuthorID == authorID {
			result = append(result, c.Copy())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Order < result[j].Order
	})
	return result, nil
}

func (r *chapterRepository) Update(ctx context.Context, chapter *model.Chapter) (*model.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.sets[chapter.ProjectID]
	for i, c := range set {
		if c.ID != chapter.ID || c.AuthorID != chapter.AuthorID {
			continue
		}
		updated := c.Copy()
		updated.Title = chapter.Title
		updated.Content = chapter.Content.Copy()
		updated.UpdatedAt = time.Now().UTC()
		set[i] = updated
		return updated.Copy(), nil
	}

	return nil, goerr.Wrap(ErrNotFound, "chapter not found",
		goerr.V(model.ProjectIDKey, chapter.ProjectID),
		goerr.V(model.ChapterIDKey, chapter.ID),
	)
}

func (r *chapterRepository) Replace(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapters []*model.Chapter) ([]*model.Chapter, error) {
	now := time.Now().UTC()
	next := make([]*model.Chapter, len(chapters))
	for i, c := range chapters {
		created := c.Copy()
		created.ID = model.NewChapterID()
		created.ProjectID = projectID
		created.AuthorID = authorID
		created.CreatedAt = now
		created.UpdatedAt = now
		next[i] = created
	}

	r.mu.Lock()
	r.sets[projectID] = next
	r.mu.Unlock()

	result := make([]*model.Chapter, len(next))
	for i, c := range next {
		result[i] = c.Copy()
	}
	return result, nil
}
