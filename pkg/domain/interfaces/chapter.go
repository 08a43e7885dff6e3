package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// ChapterRepository defines the interface for Chapter data persistence
type ChapterRepository interface {
	// Get retrieves a chapter of a project owned by authorID
	Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (*model.Chapter, error)

	// List retrieves all chapters of a project sorted by Order asc
	List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Chapter, error)

	// Update overwrites title and content of an existing chapter
	Update(ctx context.Context, chapter *model.Chapter) (*model.Chapter, error)

	// Replace deletes every chapter of the project and stores chapters in their place
	// as one atomic step: readers observe either the old set or the new set, never an
	// empty intermediate state. IDs and timestamps are assigned by the repository.
	Replace(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapters []*model.Chapter) ([]*model.Chapter, error)
}
