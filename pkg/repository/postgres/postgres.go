package postgres

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// ErrNotFound is returned when a row does not exist in the caller's scope
var ErrNotFound = model.ErrNotFound

//go:embed schema.sql
var schemaSQL string

// Postgres is a repository backed by PostgreSQL with the pgvector extension
type Postgres struct {
	pool     *pgxpool.Pool
	project  *projectRepository
	fragment *fragmentRepository
	chapter  *chapterRepository
}

var _ interfaces.Repository = &Postgres{}

// New connects to dsn and registers the pgvector types on every pooled connection
func New(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse postgres dsn")
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to connect to postgres")
	}

	return &Postgres{
		pool:     pool,
		project:  &projectRepository{pool: pool},
		fragment: &fragmentRepository{pool: pool},
		chapter:  &chapterRepository{pool: pool},
	}, nil
}

// Migrate creates the vector extension, tables and indexes if they do not exist
func Migrate(ctx context.Context, dsn string) error {
	// The vector type must exist before AfterConnect can register it, so the schema
	// is applied over a plain connection.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to postgres")
	}
	defer func() {
		_ = conn.Close(context.WithoutCancel(ctx))
	}()

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return goerr.Wrap(err, "failed to apply schema")
	}
	return nil
}

// Schema returns the DDL applied by Migrate
func Schema() string {
	return schemaSQL
}

func (p *Postgres) Project() interfaces.ProjectRepository {
	return p.project
}

func (p *Postgres) Fragment() interfaces.FragmentRepository {
	return p.fragment
}

func (p *Postgres) Chapter() interfaces.ChapterRepository {
	return p.chapter
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
