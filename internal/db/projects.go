package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/types"
)

// SaveProject stores rec under name, replacing any previous version
func (db *DB) SaveProject(ctx context.Context, name string, rec types.Record) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	doc, err := project.Encode(rec, project.FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO cv_projects (name, document)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET document = $2, updated_at = NOW()`,
		name, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// LoadProject merges the stored project into a copy of base, with the same
// rules as loading a project file
func (db *DB) LoadProject(ctx context.Context, name string, base types.Record) (types.Record, error) {
	var doc []byte
	err := db.pool.QueryRow(ctx,
		`SELECT document FROM cv_projects WHERE name = $1`,
		name,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Record{}, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
		}
		return types.Record{}, fmt.Errorf("failed to load project: %w", err)
	}

	rec, err := project.Decode(doc, project.FormatJSON, base)
	if err != nil {
		return types.Record{}, fmt.Errorf("stored project %s is invalid: %w", name, err)
	}
	return rec, nil
}

// ListProjects returns stored projects, most recently updated first
func (db *DB) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT name, created_at, updated_at FROM cv_projects ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and its compile history
func (db *DB) DeleteProject(ctx context.Context, name string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM cv_projects WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM compile_runs WHERE project = $1`, name); err != nil {
		return fmt.Errorf("failed to delete compile history: %w", err)
	}
	return tx.Commit(ctx)
}
