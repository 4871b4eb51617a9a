package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/livepeer/catalyst-vod/config"
)

// Postgres error code for unique_violation
const pqUniqueViolation = "23505"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS vod_assets (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL,
		base_name     TEXT NOT NULL UNIQUE,
		author_id     TEXT NOT NULL,
		visibility    TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vod_job_results (
		job_id     TEXT PRIMARY KEY,
		video_id   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

const assetColumns = "id, title, description, thumbnail_url, base_name, author_id, visibility, created_at, updated_at"

type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with lib/pq and creates the tables if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening postgres: %w", err)
	}
	p := NewPostgres(db)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := p.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("error running migration: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func (p *Postgres) CreateAsset(ctx context.Context, a Asset) error {
	if err := validateAsset(a); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO vod_assets (`+assetColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Title, a.Description, a.ThumbnailURL, a.BaseName, a.AuthorID, string(a.Visibility), a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("asset %s: %w", a.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error inserting asset: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (Asset, error) {
	var a Asset
	var vis string
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.ThumbnailURL, &a.BaseName, &a.AuthorID, &vis, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Asset{}, err
	}
	a.Visibility = Visibility(vis)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (p *Postgres) getAsset(ctx context.Context, column, value string) (Asset, error) {
	a, err := scanAsset(p.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM vod_assets WHERE `+column+` = $1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("asset %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("error reading asset: %w", err)
	}
	return a, nil
}

func (p *Postgres) GetAsset(ctx context.Context, id string) (Asset, error) {
	return p.getAsset(ctx, "id", id)
}

func (p *Postgres) GetAssetByKey(ctx context.Context, baseName string) (Asset, error) {
	return p.getAsset(ctx, "base_name", baseName)
}

func (p *Postgres) UpdateAsset(ctx context.Context, id string, u AssetUpdate) (Asset, error) {
	var title, description, visibility sql.NullString
	if u.Title != nil {
		title = sql.NullString{String: *u.Title, Valid: true}
	}
	if u.Description != nil {
		description = sql.NullString{String: *u.Description, Valid: true}
	}
	if u.Visibility != nil {
		visibility = sql.NullString{String: string(*u.Visibility), Valid: true}
	}
	a, err := scanAsset(p.db.QueryRowContext(ctx,
		`UPDATE vod_assets SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			visibility = COALESCE($4, visibility),
			updated_at = $5
		WHERE id = $1 RETURNING `+assetColumns,
		id, title, description, visibility, config.Clock.Now(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("error updating asset: %w", err)
	}
	return a, nil
}

func (p *Postgres) DeleteAsset(ctx context.Context, id string) (Asset, error) {
	a, err := scanAsset(p.db.QueryRowContext(ctx, `DELETE FROM vod_assets WHERE id = $1 RETURNING `+assetColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("error deleting asset: %w", err)
	}
	return a, nil
}

func (p *Postgres) CreateJobResult(ctx context.Context, r JobResult) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO vod_job_results (job_id, video_id, created_at) VALUES ($1, $2, $3)`,
		r.JobID, r.VideoID, r.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("job result %s: %w", r.JobID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error inserting job result: %w", err)
	}
	return nil
}

func (p *Postgres) GetJobResult(ctx context.Context, jobID string) (JobResult, error) {
	var r JobResult
	err := p.db.QueryRowContext(ctx,
		`SELECT job_id, video_id, created_at FROM vod_job_results WHERE job_id = $1`, jobID,
	).Scan(&r.JobID, &r.VideoID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JobResult{}, fmt.Errorf("job result %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return JobResult{}, fmt.Errorf("error reading job result: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
