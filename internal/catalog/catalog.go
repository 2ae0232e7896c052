// SPDX-License-Identifier: MIT

// Package catalog reads the curated reference data of a run: channel
// definitions, groups and providers. Sources are read once per run into an
// immutable Snapshot.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/spf13/afero"
)

// ErrUnsupportedLocation is returned by Open for a location it cannot map to
// a Source.
var ErrUnsupportedLocation = errors.New("catalog: unsupported location")

// Source supplies catalog records.
type Source interface {
	ChannelDefinitions(ctx context.Context) ([]model.ChannelDefinition, error)
	Groups(ctx context.Context) ([]model.Group, error)
	Providers(ctx context.Context) ([]model.Provider, error)
}

// Snapshot is the catalog as read at the start of a run.
type Snapshot struct {
	Definitions []model.ChannelDefinition
	Groups      []model.Group
	Providers   []model.Provider
}

// Open picks a Source for location: a postgres:// URL, an SQLite file
// (.db, .sqlite, .sqlite3) or a YAML file (.yaml, .yml). The returned
// Closer releases the source.
func Open(ctx context.Context, location string) (Source, io.Closer, error) {
	location = strings.TrimSpace(location)
	lower := strings.ToLower(location)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		src, err := OpenPostgres(ctx, location)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		src, err := OpenSQLite(ctx, location)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	case ".yaml", ".yml":
		src, err := OpenFile(afero.NewOsFs(), location)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedLocation, location)
}

// Load reads every record from src and normalises it: priorities, alias
// sets, and duplicate ids (the first declaration wins).
func Load(ctx context.Context, src Source) (Snapshot, error) {
	logger := log.WithComponentFromContext(ctx, "catalog")

	defs, err := src.ChannelDefinitions(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load channel definitions: %w", err)
	}
	groups, err := src.Groups(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load groups: %w", err)
	}
	providers, err := src.Providers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load providers: %w", err)
	}

	var snap Snapshot
	seen := map[string]struct{}{}
	for _, d := range defs {
		if dup(seen, "channel:"+d.ID) {
			logger.Warn().Str(log.FieldDefinition, d.ID).Msg("duplicate channel definition id ignored")
			continue
		}
		d.Normalize()
		snap.Definitions = append(snap.Definitions, d)
	}
	for _, g := range groups {
		if dup(seen, "group:"+g.ID) {
			logger.Warn().Str("group", g.ID).Msg("duplicate group id ignored")
			continue
		}
		g.Priority = model.NormalizePriority(g.Priority)
		snap.Groups = append(snap.Groups, g)
	}
	for _, p := range providers {
		if dup(seen, "provider:"+p.ID) {
			logger.Warn().Str(log.FieldProvider, p.ID).Msg("duplicate provider id ignored")
			continue
		}
		p.Priority = model.NormalizePriority(p.Priority)
		p.URLTemplate = strings.TrimSpace(p.URLTemplate)
		snap.Providers = append(snap.Providers, p)
	}

	logger.Info().
		Str(log.FieldEvent, "catalog.loaded").
		Int("definitions", len(snap.Definitions)).
		Int("groups", len(snap.Groups)).
		Int("providers", len(snap.Providers)).
		Msg("catalog snapshot loaded")
	return snap, nil
}

func dup(seen map[string]struct{}, key string) bool {
	if _, ok := seen[key]; ok {
		return true
	}
	seen[key] = struct{}{}
	return false
}
