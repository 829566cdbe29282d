package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, p Project) error {
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}
	const upsert = `
		INSERT INTO projects (id, name, template_id, snapshot, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    template_id = EXCLUDED.template_id,
		    snapshot = EXCLUDED.snapshot,
		    saved_at = EXCLUDED.saved_at
	`
	if _, err := s.db.ExecContext(ctx, upsert, p.ID, p.Name, p.TemplateID, p.Data, p.SavedAt); err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (Project, error) {
	const query = `SELECT id, name, template_id, snapshot, saved_at FROM projects WHERE id = $1`
	var p Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.TemplateID, &p.Data, &p.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("load project %s: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]ProjectInfo, error) {
	const query = `SELECT id, name, template_id, saved_at FROM projects ORDER BY saved_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var infos []ProjectInfo
	for rows.Next() {
		var info ProjectInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.TemplateID, &info.SavedAt); err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return infos, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
