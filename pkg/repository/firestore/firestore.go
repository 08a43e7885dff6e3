package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// ErrNotFound is returned when a document does not exist in the caller's scope
var ErrNotFound = model.ErrNotFound

const (
	collectionProjects  = "projects"
	collectionFragments = "fragments"
	collectionChapters  = "chapters"
)

type Firestore struct {
	client   *firestore.Client
	project  *projectRepository
	fragment *fragmentRepository
	chapter  *chapterRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes the root collection name, e.g. to isolate test runs
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.project.prefix = prefix
		f.fragment.prefix = prefix
		f.chapter.prefix = prefix
	}
}

// New creates a Firestore repository. An empty databaseID selects the default database.
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	f := &Firestore{
		client:   client,
		project:  &projectRepository{client: client},
		fragment: &fragmentRepository{client: client},
		chapter:  &chapterRepository{client: client},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Project() interfaces.ProjectRepository {
	return f.project
}

func (f *Firestore) Fragment() interfaces.FragmentRepository {
	return f.fragment
}

func (f *Firestore) Chapter() interfaces.ChapterRepository {
	return f.chapter
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// projectDoc returns projects/{projectID}
func projectDoc(client *firestore.Client, prefix string, projectID model.ProjectID) *firestore.DocumentRef {
	return client.Collection(prefix + collectionProjects).Doc(string(projectID))
}
