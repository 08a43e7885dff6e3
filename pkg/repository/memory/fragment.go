package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type fragmentRecord struct {
	fragment *model.Fragment
	vector   []float32
	seq      uint64
}

type fragmentRepository struct {
	mu      sync.RWMutex
	seq     uint64
	entries map[model.ProjectID]map[model.FragmentID]*fragmentRecord
}

func newFragmentRepository() *fragmentRepository {
	return &fragmentRepository{
		entries: make(map[model.ProjectID]map[model.FragmentID]*fragmentRecord),
	}
}

func (r *fragmentRepository) lookup(authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) (*fragmentRecord, error) {
	rec, exists := r.entries[projectID][fragmentID]
	if !exists || rec.fragment.AuthorID != authorID {
		return nil, goerr.Wrap(ErrNotFound, "fragment not found",
			goerr.V(model.ProjectIDKey, projectID),
			goerr.V(model.FragmentIDKey, fragmentID),
		)
	}
	return rec, nil
}

func (r *fragmentRepository) Create(ctx context.Context, fragment *model.Fragment) (*model.Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := fragment.Copy()
	if created.ID == "" {
		created.ID = model.NewFragmentID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.Embedded = false

	bucket, exists := r.entries[created.ProjectID]
	if !exists {
		bucket = make(map[model.FragmentID]*fragmentRecord)
		r.entries[created.ProjectID] = bucket
	}
	r.seq++
	bucket[created.ID] = &fragmentRecord{fragment: created, seq: r.seq}

	return created.Copy(), nil
}

func (r *fragmentRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) (*model.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.lookup(authorID, projectID, fragmentID)
	if err != nil {
		return nil, err
	}
	return rec.fragment.Copy(), nil
}

func (r *fragmentRepository) List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*fragmentRecord, 0)
	for _, rec := range r.entries[projectID] {
		if rec.fragment.AuthorID == authorID {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.fragment.CreatedAt.Equal(b.fragment.CreatedAt) {
			return a.fragment.CreatedAt.Before(b.fragment.CreatedAt)
		}
		return a.seq < b.seq
	})

	result := make([]*model.Fragment, len(records))
	for i, rec := range records {
		result[i] = rec.fragment.Copy()
	}
	return result, nil
}

func (r *fragmentRepository) Update(ctx context.Context, fragment *model.Fragment, clearEmbedding bool) (*model.Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.lookup(fragment.AuthorID, fragment.ProjectID, fragment.ID)
	if err != nil {
		return nil, err
	}

	updated := rec.fragment.Copy()
	updated.Question = fragment.Question
	updated.Answer = fragment.Answer
	updated.AudioURL = fragment.AudioURL
	updated.UpdatedAt = time.Now().UTC()
	if clearEmbedding {
		rec.vector = nil
		updated.Embedded = false
	}
	rec.fragment = updated

	return updated.Copy(), nil
}

func (r *fragmentRepository) Delete(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(authorID, projectID, fragmentID); err != nil {
		return err
	}
	delete(r.entries[projectID], fragmentID)
	return nil
}

func (r *fragmentRepository) PutEmbedding(ctx context.Context, projectID model.ProjectID, embedding *model.FragmentEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.entries[projectID][embedding.FragmentID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "fragment not found",
			goerr.V(model.ProjectIDKey, projectID),
			goerr.V(model.FragmentIDKey, embedding.FragmentID),
		)
	}

	rec.vector = make([]float32, len(embedding.Vector))
	copy(rec.vector, embedding.Vector)
	rec.fragment.Embedded = true
	return nil
}

func (r *fragmentRepository) FindSimilar(ctx context.Context, query model.SimilarityQuery) ([]*model.RetrievalResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		result *model.RetrievalResult
		seq    uint64
	}

	var candidates []scored
	for _, rec := range r.entries[query.ProjectID] {
		if rec.fragment.AuthorID != query.AuthorID || len(rec.vector) == 0 {
			continue
		}
		s := cosineSimilarity(query.Vector, rec.vector)
		if s <= query.Threshold {
			continue
		}
		candidates = append(candidates, scored{
			result: &model.RetrievalResult{
				FragmentID: rec.fragment.ID,
				Question:   rec.fragment.Question,
				Answer:     rec.fragment.Answer,
				Similarity: s,
				CreatedAt:  rec.fragment.CreatedAt,
			},
			seq: rec.seq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.result.Similarity != b.result.Similarity {
			return a.result.Similarity > b.result.Similarity
		}
		if !a.result.CreatedAt.Equal(b.result.CreatedAt) {
			return a.result.CreatedAt.After(b.result.CreatedAt)
		}
		return a.seq > b.seq
	})

	limit := query.Limit
	if limit > len(candidates) {
		limit = len(candidates)
	}

	result := make([]*model.RetrievalResult, limit)
	for i := 0; i < limit; i++ {
		result[i] = candidates[i].result
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
