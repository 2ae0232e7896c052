// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"fmt"

	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads the catalog from PostgreSQL.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and makes sure the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	src := &PostgresSource{pool: pool}
	if err := src.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return src, nil
}

// Pool exposes the underlying pool, for seeding.
func (p *PostgresSource) Pool() *pgxpool.Pool { return p.pool }

// Close implements io.Closer.
func (p *PostgresSource) Close() error {
	p.pool.Close()
	return nil
}

// EnsureSchema creates the catalog tables if they are missing.
func (p *PostgresSource) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return nil
}

func queryPG[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
}

// ChannelDefinitions implements Source.
func (p *PostgresSource) ChannelDefinitions(ctx context.Context) ([]model.ChannelDefinition, error) {
	defs, err := queryPG(ctx, p.pool, queryChannels, scanChannel)
	if err != nil {
		return nil, err
	}
	pairs, err := queryPG(ctx, p.pool, queryAliases, scanAlias)
	if err != nil {
		return nil, err
	}
	attachAliases(defs, pairs)
	return defs, nil
}

// Groups implements Source.
func (p *PostgresSource) Groups(ctx context.Context) ([]model.Group, error) {
	return queryPG(ctx, p.pool, queryGroups, scanGroup)
}

// Providers implements Source.
func (p *PostgresSource) Providers(ctx context.Context) ([]model.Provider, error) {
	return queryPG(ctx, p.pool, queryProviders, scanProvider)
}
