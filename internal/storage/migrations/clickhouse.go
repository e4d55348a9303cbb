package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"wallet-signal-lab/internal/logger"
	chstore "wallet-signal-lab/internal/storage/clickhouse"
)

// ErrSemicolonInString marks a migration the statement splitter cannot handle.
var ErrSemicolonInString = errors.New("semicolon inside string literal")

// RunClickhouseMigrations creates the DSN's database if needed and applies
// every embedded ClickHouse file. ClickHouse DDL here is IF NOT EXISTS, so
// files are re-applied on every run. Returns a connection to the database.
func RunClickhouseMigrations(ctx context.Context, dsn string, log *logger.Logger) (*chstore.Conn, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("migrations")

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, err
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		stmts, err := splitStatements(string(data))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("migration %s: %w", file, err)
		}
		// the driver has no multi-statement Exec
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		log.Infow("applied migration", "database", "clickhouse", "file", file, "statements", len(stmts))
	}

	return conn, nil
}

// splitStatements drops -- comment lines and splits on semicolons.
// Semicolons inside single-quoted literals are rejected rather than parsed.
func splitStatements(input string) ([]string, error) {
	if hasSemicolonInString(input) {
		return nil, ErrSemicolonInString
	}

	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(filtered, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

func hasSemicolonInString(sql string) bool {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++ // '' escape
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return true
			}
		}
	}
	return false
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", errors.New("clickhouse dsn missing database")
	}
	return db, nil
}
