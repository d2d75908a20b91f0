package db

import (
	"context"
	"fmt"
)

// RecordCompile stores the outcome of a compile session
func (db *DB) RecordCompile(ctx context.Context, run CompileRun) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO compile_runs (id, project, status, diagnostic, compiler, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET status = $3, diagnostic = $4, compiler = $5, duration_ms = $6`,
		run.ID, run.Project, run.Status, run.Diagnostic, run.Compiler, run.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record compile: %w", err)
	}
	return nil
}

// ListCompiles returns recent compile sessions for a project, newest first.
// An empty project lists sessions across all projects.
func (db *DB) ListCompiles(ctx context.Context, projectName string, limit int) ([]CompileRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, project, status, diagnostic, compiler, duration_ms, created_at
		 FROM compile_runs
		 WHERE $1 = '' OR project = $1
		 ORDER BY created_at DESC LIMIT $2`,
		projectName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list compiles: %w", err)
	}
	defer rows.Close()

	var runs []CompileRun
	for rows.Next() {
		var run CompileRun
		if err := rows.Scan(&run.ID, &run.Project, &run.Status, &run.Diagnostic, &run.Compiler, &run.DurationMS, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan compile run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
