package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type outlineDoc struct {
	Title       string `firestore:"Title"`
	Description string `firestore:"Description"`
	Order       int    `firestore:"Order"`
}

type projectDocument struct {
	ID          string       `firestore:"ID"`
	AuthorID    string       `firestore:"AuthorID"`
	Title       string       `firestore:"Title"`
	Description string       `firestore:"Description"`
	Outline     []outlineDoc `firestore:"Outline"`
	Status      string       `firestore:"Status"`
	CreatedAt   time.Time    `firestore:"CreatedAt"`
	UpdatedAt   time.Time    `firestore:"UpdatedAt"`
}

func toProjectDoc(p *model.Project) *projectDocument {
	doc := &projectDocument{
		ID:          string(p.ID),
		AuthorID:    string(p.AuthorID),
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, item := range p.Outline {
		doc.Outline = append(doc.Outline, outlineDoc(item))
	}
	return doc
}

func fromProjectDoc(d *projectDocument) *model.Project {
	p := &model.Project{
		ID:          model.ProjectID(d.ID),
		AuthorID:    model.AuthorID(d.AuthorID),
		Title:       d.Title,
		Description: d.Description,
		Status:      types.ProjectStatus(d.Status).Normalize(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, item := range d.Outline {
		p.Outline = append(p.Outline, model.OutlineItem(item))
	}
	return p
}

type projectRepository struct {
	client *firestore.Client
	prefix string
}

func (r *projectRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.prefix + collectionProjects)
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) (*model.Project, error) {
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

	if _, err := r.collection().Doc(string(created.ID)).Create(ctx, toProjectDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create project", goerr.V(model.ProjectIDKey, created.ID))
	}
	return created, nil
}

func (r *projectRepository) get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) (*projectDocument, error) {
	snap, err := r.collection().Doc(string(projectID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "project not found", goerr.V(model.ProjectIDKey, projectID))
		}
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}

	var d projectDocument
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal project", goerr.V(model.ProjectIDKey, projectID))
	}
	if d.AuthorID != string(authorID) {
		return nil, goerr.Wrap(ErrNotFound, "project not found", goerr.V(model.ProjectIDKey, projectID))
	}
	return &d, nil
}

func (r *projectRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) (*model.Project, error) {
	d, err := r.get(ctx, authorID, projectID)
	if err != nil {
		return nil, err
	}
	return fromProjectDoc(d), nil
}

func (r *projectRepository) List(ctx context.Context, authorID model.AuthorID) ([]*model.Project, error) {
	iter := r.collection().
		Where("AuthorID", "==", string(authorID)).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	projects := make([]*model.Project, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate projects")
		}

		var d projectDocument
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal project")
		}
		projects = append(projects, fromProjectDoc(&d))
	}
	return projects, nil
}

func (r *projectRepository) Update(ctx context.Context, project *model.Project) (*model.Project, error) {
	existing, err := r.get(ctx, project.AuthorID, project.ID)
	if err != nil {
		return nil, err
	}

	updated := project.Copy()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if _, err := r.collection().Doc(string(updated.ID)).Set(ctx, toProjectDoc(updated)); err != nil {
		return nil, goerr.Wrap(err, "failed to update project", goerr.V(model.ProjectIDKey, updated.ID))
	}
	return updated, nil
}
