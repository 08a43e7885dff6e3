package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/firestore"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/repository/postgres"
)

func newMemoryRepo(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newFirestoreRepo(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	// Standard collection names keep the vector index usable; isolation comes from random IDs
	repo, err := firestore.New(ctx, projectID, databaseID)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newPostgresRepo(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	gt.NoError(t, postgres.Migrate(ctx, dsn)).Required()

	repo, err := postgres.New(ctx, dsn)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

// backends lists every repository implementation the suites run against
var backends = []struct {
	name    string
	newRepo func(t *testing.T) interfaces.Repository
}{
	{name: "Memory", newRepo: newMemoryRepo},
	{name: "Firestore", newRepo: newFirestoreRepo},
	{name: "Postgres", newRepo: newPostgresRepo},
}

func newAuthorID() model.AuthorID {
	return model.AuthorID(fmt.Sprintf("author-%d", time.Now().UnixNano()))
}

// createProject stores a project so that child rows satisfy foreign keys
func createProject(t *testing.T, repo interfaces.Repository, authorID model.AuthorID) *model.Project {
	t.Helper()

	p, err := repo.Project().Create(context.Background(), &model.Project{
		AuthorID: authorID,
		Title:    "나의 이야기",
		Outline:  model.DefaultOutline(),
	})
	gt.NoError(t, err).Required()
	return p
}

// unitVector returns a vector of EmbeddingDimension with weight on axis a and b
func unitVector(a, b float32) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[0] = a
	v[1] = b
	return v
}
