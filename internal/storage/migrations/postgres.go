package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/storage/postgres"
)

const createVersionsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Result lists the migration files applied and skipped by a run.
type Result struct {
	Applied []string
	Skipped []string
}

// RunPostgresMigrations applies every embedded SQL file not yet recorded in
// schema_migrations, in lexical order. Each file runs in its own transaction
// together with its version row.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("migrations")

	if _, err := pool.Exec(ctx, createVersionsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}

	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, file := range files {
		if _, ok := applied[file]; ok {
			res.Skipped = append(res.Skipped, file)
			continue
		}
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return res, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := applyPostgres(ctx, pool, file, string(data)); err != nil {
			return res, err
		}
		res.Applied = append(res.Applied, file)
		log.Infow("applied migration", "database", "postgres", "file", file)
	}
	return res, nil
}

func appliedVersions(ctx context.Context, pool *postgres.Pool) (map[string]struct{}, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		out[v] = struct{}{}
	}
	return out, rows.Err()
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, file, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", file, err)
	}
	defer tx.Rollback(ctx)

	if strings.TrimSpace(sql) != "" {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, file); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	return tx.Commit(ctx)
}

// sqlFiles lists the .sql files of dir in lexical order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
