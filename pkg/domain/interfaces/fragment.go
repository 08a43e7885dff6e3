package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// FragmentRepository defines the interface for Fragment and FragmentEmbedding persistence
type FragmentRepository interface {
	// Create stores a new fragment. ID, CreatedAt and UpdatedAt are assigned by the repository.
	Create(ctx context.Context, fragment *model.Fragment) (*model.Fragment, error)

	// Get retrieves a fragment owned by authorID
	Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) (*model.Fragment, error)

	// List retrieves all fragments of a project owned by authorID sorted by CreatedAt asc
	List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Fragment, error)

	// Update overwrites question, answer and audio URL. When clearEmbedding is true the
	// stored embedding is removed in the same write.
	Update(ctx context.Context, fragment *model.Fragment, clearEmbedding bool) (*model.Fragment, error)

	// Delete removes a fragment and its embedding
	Delete(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) error

	// PutEmbedding stores or replaces the embedding of a fragment
	PutEmbedding(ctx context.Context, projectID model.ProjectID, embedding *model.FragmentEmbedding) error

	// FindSimilar returns fragments of (AuthorID, ProjectID) whose cosine similarity to
	// Vector is strictly greater than Threshold, sorted by similarity desc then CreatedAt
	// desc, at most Limit entries. Fragments without an embedding never match.
	FindSimilar(ctx context.Context, query model.SimilarityQuery) ([]*model.RetrievalResult, error)
}
