// SPDX-License-Identifier: MIT

package catalog

import (
	"database/sql"
	"fmt"

	"github.com/ManuGH/m3umerge/internal/model"
)

// schema is valid for both SQLite and PostgreSQL. "groups" is quoted since
// both treat GROUPS as a keyword. position keeps declaration order;
// allow_caching is nullable and NULL reads as false.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS "groups" (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 0,
		enabled  BOOLEAN NOT NULL DEFAULT TRUE,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS providers (
		id            TEXT PRIMARY KEY,
		url_template  TEXT NOT NULL,
		priority      INTEGER NOT NULL DEFAULT 0,
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		allow_caching BOOLEAN,
		country       TEXT,
		channel_name  TEXT,
		position      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		country  TEXT,
		group_id TEXT,
		logo_url TEXT,
		enabled  BOOLEAN NOT NULL DEFAULT TRUE,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS channel_aliases (
		channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		alias      TEXT NOT NULL,
		position   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (channel_id, alias)
	)`,
}

const (
	queryGroups = `SELECT id, name, priority, enabled FROM "groups" ORDER BY position, id`

	queryProviders = `SELECT id, url_template, priority, enabled, allow_caching, country, channel_name
		FROM providers ORDER BY position, id`

	queryChannels = `SELECT id, name, country, group_id, logo_url, enabled
		FROM channels ORDER BY position, id`

	queryAliases = `SELECT channel_id, alias FROM channel_aliases ORDER BY channel_id, position, alias`
)

// rowScanner is satisfied by *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(r rowScanner) (model.Group, error) {
	var g model.Group
	var name sql.NullString
	if err := r.Scan(&g.ID, &name, &g.Priority, &g.Enabled); err != nil {
		return model.Group{}, fmt.Errorf("scan group: %w", err)
	}
	g.Name = name.String
	return g, nil
}

func scanProvider(r rowScanner) (model.Provider, error) {
	var p model.Provider
	var allowCaching sql.NullBool
	var country, channelName sql.NullString
	if err := r.Scan(&p.ID, &p.URLTemplate, &p.Priority, &p.Enabled, &allowCaching, &country, &channelName); err != nil {
		return model.Provider{}, fmt.Errorf("scan provider: %w", err)
	}
	p.AllowCaching = allowCaching.Valid && allowCaching.Bool
	p.Country = country.String
	p.ChannelName = channelName.String
	return p, nil
}

func scanChannel(r rowScanner) (model.ChannelDefinition, error) {
	var d model.ChannelDefinition
	var country, groupID, logo sql.NullString
	if err := r.Scan(&d.ID, &d.Name, &country, &groupID, &logo, &d.Enabled); err != nil {
		return model.ChannelDefinition{}, fmt.Errorf("scan channel: %w", err)
	}
	d.Country = country.String
	d.GroupID = groupID.String
	d.LogoURL = logo.String
	return d, nil
}

// attachAliases fills each definition's aliases from (channel_id, alias)
// pairs already in order.
func attachAliases(defs []model.ChannelDefinition, pairs [][2]string) {
	byID := make(map[string][]string, len(defs))
	for _, p := range pairs {
		byID[p[0]] = append(byID[p[0]], p[1])
	}
	for i := range defs {
		defs[i].Aliases = byID[defs[i].ID]
	}
}
