package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	fieldEmbedding      = "Embedding"
	fieldVectorDistance = "VectorDistance"

	// nearestMargin is fetched beyond the requested limit so that similarity ties can
	// be ordered by recency before truncation.
	nearestMargin = 5
)

// fragmentDoc is the Firestore document representation of model.Fragment.
// The embedding is stored on the same document as firestore.Vector32 for FindNearest.
type fragmentDoc struct {
	ID             string             `firestore:"ID"`
	ProjectID      string             `firestore:"ProjectID"`
	AuthorID       string             `firestore:"AuthorID"`
	Question       string             `firestore:"Question"`
	Answer         string             `firestore:"Answer"`
	AudioURL       string             `firestore:"AudioURL"`
	Embedding      firestore.Vector32 `firestore:"Embedding,omitempty"`
	VectorDistance float64            `firestore:"VectorDistance,omitempty"`
	CreatedAt      time.Time          `firestore:"CreatedAt"`
	UpdatedAt      time.Time          `firestore:"UpdatedAt"`
}

func toFragmentDoc(f *model.Fragment) *fragmentDoc {
	return &fragmentDoc{
		ID:        string(f.ID),
		ProjectID: string(f.ProjectID),
		AuthorID:  string(f.AuthorID),
		Question:  f.Question,
		Answer:    f.Answer,
		AudioURL:  f.AudioURL,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func fromFragmentDoc(d *fragmentDoc) *model.Fragment {
	return &model.Fragment{
		ID:        model.FragmentID(d.ID),
		ProjectID: model.ProjectID(d.ProjectID),
		AuthorID:  model.AuthorID(d.AuthorID),
		Question:  d.Question,
		Answer:    d.Answer,
		AudioURL:  d.AudioURL,
		Embedded:  len(d.Embedding) > 0,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type fragmentRepository struct {
	client *firestore.Client
	prefix string
}

// fragments returns the subcollection path: projects/{projectID}/fragments
func (r *fragmentRepository) fragments(projectID model.ProjectID) *firestore.CollectionRef {
	return projectDoc(r.client, r.prefix, projectID).Collection(collectionFragments)
}

func (r *fragmentRepository) get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) (*fragmentDoc, error) {
	snap, err := r.fragments(projectID).Doc(string(fragmentID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "fragment not found", goerr.V(model.FragmentIDKey, fragmentID))
		}
		return nil, goerr.Wrap(err, "failed to get fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}

	var d fragmentDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}
	if d.AuthorID != string(authorID) {
		return nil, goerr.Wrap(ErrNotFound, "fragment not found", goerr.V(model.FragmentIDKey, fragmentID))
	}
	return &d, nil
}

func (r *fragmentRepository) Create(ctx context.Context, fragment *model.Fragment) (*model.Fragment, error) {
	created := fragment.Copy()
	if created.ID == "" {
		created.ID = model.NewFragmentID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.Embedded = false

	docRef := r.fragments(created.ProjectID).Doc(string(created.ID))
	if _, err := docRef.Create(ctx, toFragmentDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create fragment", goerr.V(model.FragmentIDKey, created.ID))
	}
	return created, nil
}

func (r *fragmentRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) (*model.Fragment, error) {
	d, err := r.get(ctx, authorID, projectID, fragmentID)
	if err != nil {
		return nil, err
	}
	return fromFragmentDoc(d), nil
}

func (r *fragmentRepository) List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Fragment, error) {
	iter := r.fragments(projectID).
		Where("AuthorID", "==", string(authorID)).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	fragments := make([]*model.Fragment, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate fragments", goerr.V(model.ProjectIDKey, projectID))
		}

		var d fragmentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal fragment")
		}
		fragments = append(fragments, fromFragmentDoc(&d))
	}
	return fragments, nil
}

func (r *fragmentRepository) Update(ctx context.Context, fragment *model.Fragment, clearEmbedding bool) (*model.Fragment, error) {
	existing, err := r.get(ctx, fragment.AuthorID, fragment.ProjectID, fragment.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := []firestore.Update{
		{Path: "Question", Value: fragment.Question},
		{Path: "Answer", Value: fragment.Answer},
		{Path: "AudioURL", Value: fragment.AudioURL},
		{Path: "UpdatedAt", Value: now},
	}
	if clearEmbedding {
		updates = append(updates, firestore.Update{Path: fieldEmbedding, Value: firestore.Delete})
	}

	if _, err := r.fragments(fragment.ProjectID).Doc(string(fragment.ID)).Update(ctx, updates); err != nil {
		return nil, goerr.Wrap(err, "failed to update fragment", goerr.V(model.FragmentIDKey, fragment.ID))
	}

	updated := fromFragmentDoc(existing)
	updated.Question = fragment.Question
	updated.Answer = fragment.Answer
	updated.AudioURL = fragment.AudioURL
	updated.UpdatedAt = now
	if clearEmbedding {
		updated.Embedded = false
	}
	return updated, nil
}

func (r *fragmentRepository) Delete(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) error {
	if _, err := r.get(ctx, authorID, projectID, fragmentID); err != nil {
		return err
	}

	if _, err := r.fragments(projectID).Doc(string(fragmentID)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}
	return nil
}

func (r *fragmentRepository) PutEmbedding(ctx context.Context, projectID model.ProjectID, embedding *model.FragmentEmbedding) error {
	docRef := r.fragments(projectID).Doc(string(embedding.FragmentID))
	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: fieldEmbedding, Value: firestore.Vector32(embedding.Vector)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "fragment not found", goerr.V(model.FragmentIDKey, embedding.FragmentID))
		}
		return goerr.Wrap(err, "failed to store embedding", goerr.V(model.FragmentIDKey, embedding.FragmentID))
	}
	return nil
}

func (r *fragmentRepository) FindSimilar(ctx context.Context, query model.SimilarityQuery) ([]*model.RetrievalResult, error) {
	// cosine distance = 1 - similarity
	maxDistance := 1 - query.Threshold
	vq := r.fragments(query.ProjectID).
		Where("AuthorID", "==", string(query.AuthorID)).
		FindNearest(fieldEmbedding, firestore.Vector32(query.Vector), query.Limit+nearestMargin,
			firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{
				DistanceThreshold:   &maxDistance,
				DistanceResultField: fieldVectorDistance,
			})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	results := make([]*model.RetrievalResult, 0, query.Limit)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate fragment vector search results")
		}

		var d fragmentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal fragment from vector search")
		}

		similarity := 1 - d.VectorDistance
		if similarity <= query.Threshold {
			continue
		}
		results = append(results, &model.RetrievalResult{
			FragmentID: model.FragmentID(d.ID),
			Question:   d.Question,
			Answer:     d.Answer,
			Similarity: similarity,
			CreatedAt:  d.CreatedAt,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}
