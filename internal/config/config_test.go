// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsNeedCatalog(t *testing.T) {
	_, err := NewLoader("", "1.2.3").Load()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "catalog must be set")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("M3UMERGE_CATALOG", "catalog.yaml")

	cfg, err := NewLoader("", "1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "playlist.m3u", cfg.OutputPath)
	assert.Equal(t, "cache", cfg.CacheDir)
	assert.Equal(t, 7, cfg.LookbackDays)
	assert.True(t, cfg.EmitGuideTags)
	assert.False(t, cfg.EmitProviderTags)
	assert.Equal(t, TTLConfig{AliveMinutes: 360, DeadMinutes: 60, UnauthorisedMinutes: 1440, NotFoundMinutes: 1440}, cfg.TTL)
	assert.Equal(t, 8*time.Second, cfg.HTTP.DownloadTimeout)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ProbeTimeout)
	assert.Equal(t, "m3umerge/1.2.3", cfg.HTTP.UserAgent)
	assert.Equal(t, 20.0, cfg.HTTP.ProbeRate)
	assert.Equal(t, 3, cfg.Checker.MaxDepth)
	assert.Equal(t, ConcurrencyConfig{Providers: 4, Definitions: 16}, cfg.Concurrency)
	assert.Equal(t, "1.2.3", cfg.Version)
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := writeConfig(t, `
output_path: /srv/out.m3u
catalog: /etc/m3umerge/catalog.yaml
lookback_days: 3
include_unmatched: true
ttl:
  alive_minutes: 30
http:
  download_timeout: 4s
  probe_rate: 0
checker:
  deny_list: [bad.tv, http://worse.tv/live/]
concurrency:
  providers: 99
`)
	t.Setenv("M3UMERGE_LOOKBACK_DAYS", "5")
	t.Setenv("M3UMERGE_CDN_HOSTS", " edge.test , ,cdn.test")
	t.Setenv("M3UMERGE_TTL_DEAD_MINUTES", "0")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/out.m3u", cfg.OutputPath)
	assert.Equal(t, "/etc/m3umerge/catalog.yaml", cfg.Catalog)
	assert.Equal(t, 5, cfg.LookbackDays)
	assert.True(t, cfg.IncludeUnmatched)
	assert.Equal(t, 30, cfg.TTL.AliveMinutes)
	assert.Equal(t, 0, cfg.TTL.DeadMinutes)
	assert.Equal(t, 4*time.Second, cfg.HTTP.DownloadTimeout)
	assert.Zero(t, cfg.HTTP.ProbeRate)
	assert.Equal(t, []string{"bad.tv", "http://worse.tv/live/"}, cfg.Checker.DenyList)
	assert.Equal(t, []string{"edge.test", "cdn.test"}, cfg.Checker.CDNHosts)
	assert.Equal(t, 32, cfg.Concurrency.Providers)
}

func TestLoad_InvalidEnvValueFallsBack(t *testing.T) {
	t.Setenv("M3UMERGE_CATALOG", "catalog.db")
	t.Setenv("M3UMERGE_LOOKBACK_DAYS", "many")
	t.Setenv("M3UMERGE_INCLUDE_UNMATCHED", "")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.LookbackDays)
	assert.False(t, cfg.IncludeUnmatched)
}

func TestLoad_StrictFile(t *testing.T) {
	_, err := NewLoader(writeConfig(t, "catalog: a.yaml\noutput: x\n"), "").Load()
	assert.ErrorIs(t, err, ErrUnknownConfigField)

	_, err = NewLoader(writeConfig(t, "catalog: a.yaml\n---\ncatalog: b.yaml\n"), "").Load()
	assert.Error(t, err)

	_, err = NewLoader(filepath.Join(t.TempDir(), "config.json"), "").Load()
	assert.Error(t, err)

	cfg, err := NewLoader(writeConfig(t, ""), "").Load()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, cfg.OutputPath)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Catalog = "x.yaml"
	cfg.OutputPath = "out/playlist.txt"
	cfg.LookbackDays = -1
	cfg.TTL.NotFoundMinutes = -5
	cfg.HTTP.ProbeTimeout = 12 * time.Second
	cfg.HTTP.DownloadTimeout = 0
	cfg.HTTP.ProbeRate = -1
	cfg.Checker.MaxDepth = 0
	cfg.LogLevel = "loud"

	err := Validate(&cfg)
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{
		"output_path must end with .m3u",
		"lookback_days",
		"ttl.not_found_minutes",
		"http.probe_timeout",
		"http.download_timeout",
		"http.probe_rate",
		"checker.max_depth",
		"log_level",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_PlaylistExtension(t *testing.T) {
	for _, out := range []string{"merged.m3u", "out/LIVE.M3U8"} {
		cfg := Defaults()
		cfg.Catalog = "x.yaml"
		cfg.OutputPath = out
		assert.NoError(t, Validate(&cfg), out)
	}
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, 4, clampConcurrency(0, 4, 32))
	assert.Equal(t, 1, clampConcurrency(-3, 0, 32))
	assert.Equal(t, 32, clampConcurrency(100, 4, 32))
	assert.Equal(t, 7, clampConcurrency(7, 4, 32))
}

func TestParseList(t *testing.T) {
	t.Setenv("M3UMERGE_TEST_LIST", "a, b,,c ")
	assert.Equal(t, []string{"a", "b", "c"}, ParseList("M3UMERGE_TEST_LIST", nil))
	assert.Equal(t, []string{"d"}, ParseList("M3UMERGE_TEST_UNSET_LIST", []string{"d"}))
}
