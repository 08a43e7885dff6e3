package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

const projectColumns = `id, author_id, title, description, outline, status, created_at, updated_at`

type projectRepository struct {
	pool *pgxpool.Pool
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		p       model.Project
		outline []byte
		status  string
	)
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Description, &outline, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(outline, &p.Outline); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal outline", goerr.V(model.ProjectIDKey, p.ID))
	}
	p.Status = types.ProjectStatus(status)
	return &p, nil
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) (*model.Project, error) {
	created := project.Copy()
	if created.ID == "" {
		created.ID = model.NewProjectID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Outline == nil {
		created.Outline = []model.OutlineItem{}
	}

	outline, err := json.Marshal(created.Outline)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal outline")
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		created.ID, created.AuthorID, created.Title, created.Description, outline,
		string(created.Status.Normalize()), created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert project", goerr.V(model.ProjectIDKey, created.ID))
	}
	created.Status = created.Status.Normalize()
	return created, nil
}

func (r *projectRepository) Get(ctx context.Context, authorID model.AuthorID, projectID model.ProjectID) (*model.Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND author_id = $2`,
		projectID, authorID,
	)
	p, err := scanProject(row)
	if err != nil {
		if isNoRows(err) {
			return nil, goerr.Wrap(ErrNotFound, "project not found", goerr.V(model.ProjectIDKey, projectID))
		}
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(model.ProjectIDKey, projectID))
	}
	return p, nil
}

func (r *projectRepository) List(ctx context.Context, authorID model.AuthorID) ([]*model.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE author_id = $1 ORDER BY created_at DESC`,
		authorID,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list projects", goerr.V(model.AuthorIDKey, authorID))
	}
	defer rows.Close()

	projects := make([]*model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan project")
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate projects")
	}
	return projects, nil
}

func (r *projectRepository) Update(ctx context.Context, project *model.Project) (*model.Project, error) {
	updated := project.Copy()
	updated.UpdatedAt = time.Now().UTC()
	if updated.Outline == nil {
		updated.Outline = []model.OutlineItem{}
	}

	outline, err := json.Marshal(updated.Outline)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal outline")
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE projects SET title = $3, description = $4, outline = $5, status = $6, updated_at = $7
		 WHERE id = $1 AND author_id = $2
		 RETURNING created_at`,
		updated.ID, updated.AuthorID, updated.Title, updated.Description, outline,
		string(updated.Status.Normalize()), updated.UpdatedAt,
	)
	if err := row.Scan(&updated.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, goerr.Wrap(ErrNotFound, "project not found", goerr.V(model.ProjectIDKey, updated.ID))
		}
		return nil, goerr.Wrap(err, "failed to update project", goerr.V(model.ProjectIDKey, updated.ID))
	}
	updated.Status = updated.Status.Normalize()
	return updated, nil
}
