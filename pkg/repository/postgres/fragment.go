package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pgvector/pgvector-go"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

const fragmentColumns = `id, project_id, author_id, question, answer, audio_url, embedding IS NOT NULL, created_at, updated_at`

type fragmentRepository struct {
	pool *pgxpool.Pool
}

func scanFragment(row pgx.Row) (*model.Fragment, error) {
	var f model.Fragment
	if err := row.Scan(&f.ID, &f.ProjectID, &f.AuthorID, &f.Question, &f.Answer, &f.AudioURL, &f.Embedded, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
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

	_, err := r.pool.Exec(ctx,
		`INSERT INTO fragments (id, project_id, author_id, question, answer, audio_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		created.ID, created.ProjectID, created.AuthorID, created.Question, created.Answer,
		created.AudioURL, created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert fragment", goerr.V(model.FragmentIDKey, created.ID))
	}
	return created, nil
}

func (r *fragmentRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) (*model.Fragment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE id = $1 AND project_id = $2 AND author_id = $3`,
		fragmentID, projectID, authorID,
	)
	f, err := scanFragment(row)
	if err != nil {
		if isNoRows(err) {
			return nil, goerr.Wrap(ErrNotFound, "fragment not found", goerr.V(model.FragmentIDKey, fragmentID))
		}
		return nil, goerr.Wrap(err, "failed to get fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}
	return f, nil
}

func (r *fragmentRepository) List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Fragment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+fragmentColumns+` FROM fragments
		 WHERE project_id = $1 AND author_id = $2
		 ORDER BY created_at ASC, seq ASC`,
		projectID, authorID,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list fragments", goerr.V(model.ProjectIDKey, projectID))
	}
	defer rows.Close()

	fragments := make([]*model.Fragment, 0)
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan fragment")
		}
		fragments = append(fragments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate fragments")
	}
	return fragments, nil
}

func (r *fragmentRepository) Update(ctx context.Context, fragment *model.Fragment, clearEmbedding bool) (*model.Fragment, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE fragments
		 SET question = $4, answer = $5, audio_url = $6, updated_at = $7,
		     embedding = CASE WHEN $8 THEN NULL ELSE embedding END
		 WHERE id = $1 AND project_id = $2 AND author_id = $3
		 RETURNING `+fragmentColumns,
		fragment.ID, fragment.ProjectID, fragment.AuthorID, fragment.Question, fragment.Answer,
		fragment.AudioURL, time.Now().UTC(), clearEmbedding,
	)
	f, err := scanFragment(row)
	if err != nil {
		if isNoRows(err) {
			return nil, goerr.Wrap(ErrNotFound, "fragment not found", goerr.V(model.FragmentIDKey, fragment.ID))
		}
		return nil, goerr.Wrap(err, "failed to update fragment", goerr.V(model.FragmentIDKey, fragment.ID))
	}
	return f, nil
}

func (r *fragmentRepository) Delete(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, fragmentID model.FragmentID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM fragments WHERE id = $1 AND project_id = $2 AND author_id = $3`,
		fragmentID, projectID, authorID,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to delete fragment", goerr.V(model.FragmentIDKey, fragmentID))
	}
	if tag.RowsAffected() == 0 {
		return goerr.Wrap(ErrNotFound, "fragment not found", goerr.V(model.FragmentIDKey, fragmentID))
	}
	return nil
}

func (r *fragmentRepository) PutEmbedding(ctx context.Context, projectID model.ProjectID, embedding *model.FragmentEmbedding) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE fragments SET embedding = $3 WHERE id = $1 AND project_id = $2`,
		embedding.FragmentID, projectID, pgvector.NewVector(embedding.Vector),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to store embedding", goerr.V(model.FragmentIDKey, embedding.FragmentID))
	}
	if tag.RowsAffected() == 0 {
		return goerr.Wrap(ErrNotFound, "fragment not found", goerr.V(model.FragmentIDKey, embedding.FragmentID))
	}
	return nil
}

func (r *fragmentRepository) FindSimilar(ctx context.Context, query model.SimilarityQuery) ([]*model.RetrievalResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question, answer, 1 - (embedding <=> $3) AS similarity, created_at
		 FROM fragments
		 WHERE project_id = $1 AND author_id = $2 AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $3) > $4
		 ORDER BY similarity DESC, created_at DESC, seq DESC
		 LIMIT $5`,
		query.ProjectID, query.AuthorID, pgvector.NewVector(query.Vector), query.Threshold, query.Limit,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search fragments", goerr.V(model.ProjectIDKey, query.ProjectID))
	}
	defer rows.Close()

	results := make([]*model.RetrievalResult, 0, query.Limit)
	for rows.Next() {
		var res model.RetrievalResult
		if err := rows.Scan(&res.FragmentID, &res.Question, &res.Answer, &res.Similarity, &res.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan search result")
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate search results")
	}
	return results, nil
}
