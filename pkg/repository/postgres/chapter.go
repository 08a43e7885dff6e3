package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

const chapterColumns = `id, project_id, author_id, title, content, chapter_order, created_at, updated_at`

type chapterRepository struct {
	pool *pgxpool.Pool
}

func scanChapter(row pgx.Row) (*model.Chapter, error) {
	var (
		c       model.Chapter
		content []byte
	)
	if err := row.Scan(&c.ID, &c.ProjectID, &c.AuthorID, &c.Title, &content, &c.Order, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal chapter content", goerr.V(model.ChapterIDKey, c.ID))
	}
	c.Content = &doc
	return &c, nil
}

func marshalContent(c *model.Chapter) ([]byte, error) {
	content := c.Content
	if content == nil {
		content = model.NewDocument()
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal chapter content", goerr.V(model.ChapterIDKey, c.ID))
	}
	return raw, nil
}

func (r *chapterRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapterID model.ChapterID) (*model.Chapter, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE id = $1 AND project_id = $2 AND author_id = $3`,
		chapterID, projectID, authorID,
	)
	c, err := scanChapter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, goerr.Wrap(ErrNotFound, "chapter not found", goerr.V(model.ChapterIDKey, chapterID))
		}
		return nil, goerr.Wrap(err, "failed to get chapter", goerr.V(model.ChapterIDKey, chapterID))
	}
	return c, nil
}

func (r *chapterRepository) List(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) ([]*model.Chapter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+chapterColumns+` FROM chapters
		 WHERE project_id = $1 AND author_id = $2
		 ORDER BY chapter_order ASC, created_at ASC`,
		projectID, authorID,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chapters", goerr.V(model.ProjectIDKey, projectID))
	}
	defer rows.Close()

	chapters := make([]*model.Chapter, 0)
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan chapter")
		}
		chapters = append(chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate chapters")
	}
	return chapters, nil
}

func (r *chapterRepository) Update(ctx context.Context, chapter *model.Chapter) (*model.Chapter, error) {
	content, err := marshalContent(chapter)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE chapters SET title = $4, content = $5, updated_at = $6
		 WHERE id = $1 AND project_id = $2 AND author_id = $3
		 RETURNING `+chapterColumns,
		chapter.ID, chapter.ProjectID, chapter.AuthorID, chapter.Title, content, time.Now().UTC(),
	)
	c, err := scanChapter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, goerr.Wrap(ErrNotFound, "chapter not found", goerr.V(model.ChapterIDKey, chapter.ID))
		}
		return nil, goerr.Wrap(err, "failed to update chapter", goerr.V(model.ChapterIDKey, chapter.ID))
	}
	return c, nil
}

// Replace deletes and inserts inside one transaction. The advisory lock serializes
// concurrent replacements of the same project.
func (r *chapterRepository) Replace(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID, chapters []*model.Chapter) ([]*model.Chapter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(projectID)); err != nil {
		return nil, goerr.Wrap(err, "failed to lock project chapters", goerr.V(model.ProjectIDKey, projectID))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chapters WHERE project_id = $1 AND author_id = $2`, projectID, authorID); err != nil {
		return nil, goerr.Wrap(err, "failed to delete chapters", goerr.V(model.ProjectIDKey, projectID))
	}

	now := time.Now().UTC()
	created := make([]*model.Chapter, len(chapters))
	batch := &pgx.Batch{}
	for i, c := range chapters {
		nc := c.Copy()
		nc.ID = model.NewChapterID()
		nc.ProjectID = projectID
		nc.AuthorID = authorID
		nc.CreatedAt = now
		nc.UpdatedAt = now

		content, err := marshalContent(nc)
		if err != nil {
			return nil, err
		}
		batch.Queue(
			`INSERT INTO chapters (`+chapterColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			nc.ID, nc.ProjectID, nc.AuthorID, nc.Title, content, nc.Order, nc.CreatedAt, nc.UpdatedAt,
		)
		created[i] = nc
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, goerr.Wrap(err, "failed to insert chapters", goerr.V(model.ProjectIDKey, projectID))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to commit chapters", goerr.V(model.ProjectIDKey, projectID))
	}
	return created, nil
}
