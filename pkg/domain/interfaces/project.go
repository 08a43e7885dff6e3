package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// ProjectRepository defines the interface for Project data persistence.
// Every method is scoped by author; a project of another author is reported as not found.
type ProjectRepository interface {
	// Create stores a new project. ID, CreatedAt and UpdatedAt are assigned by the repository.
	Create(ctx context.Context, project *model.Project) (*model.Project, error)

	// Get retrieves a project by ID
	Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) (*model.Project, error)

	// List retrieves all projects of an author sorted by CreatedAt desc
	List(ctx context.Context, authorID model.AuthorID) ([]*model.Project, error)

	// Update overwrites title, description, outline and status of an existing project
	Update(ctx context.Context, project *model.Project) (*model.Project, error)
}
