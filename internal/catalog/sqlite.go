// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/ManuGH/m3umerge/internal/persistence/sqlite"
)

// SQLiteSource reads the catalog from an SQLite database.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the catalog database at path and
// makes sure the schema exists and the file passes a quick integrity check.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	src := &SQLiteSource{db: db}
	if err := src.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	issues, err := sqlite.QuickCheck(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if issues != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog database %s failed integrity check: %v", path, issues)
	}
	return src, nil
}

// DB exposes the underlying handle, for seeding.
func (s *SQLiteSource) DB() *sql.DB { return s.db }

// Close implements io.Closer.
func (s *SQLiteSource) Close() error { return s.db.Close() }

// EnsureSchema creates the catalog tables if they are missing.
func (s *SQLiteSource) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return nil
}

func querySQL[T any](ctx context.Context, db *sql.DB, query string, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func scanAlias(r rowScanner) ([2]string, error) {
	var p [2]string
	if err := r.Scan(&p[0], &p[1]); err != nil {
		return p, fmt.Errorf("scan alias: %w", err)
	}
	return p, nil
}

// ChannelDefinitions implements Source.
func (s *SQLiteSource) ChannelDefinitions(ctx context.Context) ([]model.ChannelDefinition, error) {
	defs, err := querySQL(ctx, s.db, queryChannels, scanChannel)
	if err != nil {
		return nil, err
	}
	pairs, err := querySQL(ctx, s.db, queryAliases, scanAlias)
	if err != nil {
		return nil, err
	}
	attachAliases(defs, pairs)
	return defs, nil
}

// Groups implements Source.
func (s *SQLiteSource) Groups(ctx context.Context) ([]model.Group, error) {
	return querySQL(ctx, s.db, queryGroups, scanGroup)
}

// Providers implements Source.
func (s *SQLiteSource) Providers(ctx context.Context) ([]model.Provider, error) {
	return querySQL(ctx, s.db, queryProviders, scanProvider)
}
