package firestore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// chapterDoc keeps the document tree as the editor's JSON string so that node
// attributes survive unchanged.
type chapterDoc struct {
	ID        string    `firestore:"ID"`
	ProjectID string    `firestore:"ProjectID"`
	AuthorID  string    `firestore:"AuthorID"`
	Title     string    `firestore:"Title"`
	Content   string    `firestore:"Content"`
	Order     int       `firestore:"Order"`
	CreatedAt time.Time `firestore:"CreatedAt"`
	UpdatedAt time.Time `firestore:"UpdatedAt"`
}

func toChapterDoc(c *model.Chapter) (*chapterDoc, error) {
	content := c.Content
	if content == nil {
		content = model.NewDocument()
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal chapter content", goerr.V(model.ChapterIDKey, c.ID))
	}
	return &chapterDoc{
		ID:        string(c.ID),
		ProjectID: string(c.ProjectID),
		AuthorID:  string(c.AuthorID),
		Title:     c.Title,
		Content:   string(raw),
		Order:     c.Order,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func fromChapterDoc(d *chapterDoc) (*model.Chapter, error) {
	var content model.Document
	if err := json.Unmarshal([]byte(d.Content), &content); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal chapter content", goerr.V(model.ChapterIDKey, d.ID))
	}
	return &model.Chapter{
		ID:        model.ChapterID(d.ID),
		ProjectID: model.ProjectID(d.ProjectID),
		AuthorID:  model.AuthorID(d.AuthorID),
		Title:     d.Title,
		Content:   &content,
		Order:     d.Order,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type chapterRepository struct {
	client *firestore.Client
	prefix string
}

// chapters returns the subcollection path: projects/{projectID}/chapters
func (r *chapterRepository) chapters(projectID model.ProjectID) *firestore.CollectionRef {
	return projectDoc(r.client, r.prefix, projectID).Collection(collectionChapters)
}

func (r *chapterRepository) get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (*chapterDoc, error) {
	snap, err := r.chapters(projectID).Doc(string(chapterID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "chapter not found", goerr.V(model.ChapterIDKey, chapterID))
		}
		return nil, goerr.Wrap(err, "failed to get chapter", goerr.V(model.ChapterIDKey, chapterID))
	}

	var d chapterDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal chapter", goerr.V(model.ChapterIDKey, chapterID))
	}
	if d.AuthorID != string(authorID) {
		return nil, goerr.Wrap(ErrNotFound, "chapter not found", goerr.V(model.ChapterIDKey, chapterID))
	}
	return &d, nil
}

func (r *chapterRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (*model.Chapter, error) {
	d, err := r.get(ctx, authorID, projectID, chapterID)
	if err != nil {
		return nil, err
	}
	return fromChapterDoc(d)
}

func (r *chapterRepository) List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Chapter, error) {
	snaps, err := r.chapters(projectID).
		Where("AuthorID", "==", string(authorID)).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chapters", goerr.V(model.ProjectIDKey, projectID))
	}

	chapters := make([]*model.Chapter, 0, len(snaps))
	for _, snap := range snaps {
		var d chapterDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chapter")
		}
		c, err := fromChapterDoc(&d)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Order < chapters[j].Order
	})
	return chapters, nil
}

func (r *chapterRepository) Update(ctx context.Context, chapter *model.Chapter) (*model.Chapter, error) {
	existing, err := r.get(ctx, chapter.AuthorID, chapter.ProjectID, chapter.ID)
	if err != nil {
		return nil, err
	}

	updated, err := fromChapterDoc(existing)
	if err != nil {
		return nil, err
	}
	updated.Title = chapter.Title
	updated.Content = chapter.Content.Copy()
	updated.UpdatedAt = time.Now().UTC()

	d, err := toChapterDoc(updated)
	if err != nil {
		return nil, err
	}
	if _, err := r.chapters(chapter.ProjectID).Doc(d.ID).Set(ctx, d); err != nil {
		return nil, goerr.Wrap(err, "failed to update chapter", goerr.V(model.ChapterIDKey, chapter.ID))
	}
	return updated, nil
}

// Replace swaps the chapter set inside a single transaction
func (r *chapterRepository) Replace(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapters []*model.Chapter) ([]*model.Chapter, error) {
	now := time.Now().UTC()
	created := make([]*model.Chapter, len(chapters))
	docs := make([]*chapterDoc, len(chapters))
	for i, c := range chapters {
		nc := c.Copy()
		nc.ID = model.NewChapterID()
		nc.ProjectID = projectID
		nc.AuthorID = authorID
		nc.CreatedAt = now
		nc.UpdatedAt = now

		d, err := toChapterDoc(nc)
		if err != nil {
			return nil, err
		}
		created[i] = nc
		docs[i] = d
	}

	col := r.chapters(projectID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(col.Where("AuthorID", "==", string(authorID))).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to read existing chapters")
		}
		for _, snap := range existing {
			if err := tx.Delete(snap.Ref); err != nil {
				return goerr.Wrap(err, "failed to delete chapter", goerr.V(model.ChapterIDKey, snap.Ref.ID))
			}
		}
		for _, d := range docs {
			if err := tx.Create(col.Doc(d.ID), d); err != nil {
				return goerr.Wrap(err, "failed to create chapter", goerr.V(model.ChapterIDKey, d.ID))
			}
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to replace chapters", goerr.V(model.ProjectIDKey, projectID))
	}

	return created, nil
}
