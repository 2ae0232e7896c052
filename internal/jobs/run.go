// SPDX-License-Identifier: MIT

// Package jobs runs one aggregation: load the cache and catalog, fetch every
// provider, match and verify, and write the playlist.
package jobs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/m3umerge/internal/aggregator"
	"github.com/ManuGH/m3umerge/internal/cache"
	"github.com/ManuGH/m3umerge/internal/catalog"
	"github.com/ManuGH/m3umerge/internal/checker"
	"github.com/ManuGH/m3umerge/internal/config"
	"github.com/ManuGH/m3umerge/internal/download"
	"github.com/ManuGH/m3umerge/internal/fetcher"
	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/matcher"
	"github.com/ManuGH/m3umerge/internal/metrics"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/ManuGH/m3umerge/internal/platform/httpx"
	"github.com/ManuGH/m3umerge/internal/playlist"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	// maxProbeRedirects bounds redirects followed while probing a stream.
	maxProbeRedirects = 5
	// maxConnsPerHost caps parallel connections to one provider or stream host.
	maxConnsPerHost = 8
)

// Status reports a finished run.
type Status struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Providers  int           `json:"providers"`
	PoolSize   int           `json:"pool_size"`
	Channels   int           `json:"channels"`
	Unmatched  int           `json:"unmatched"`
	OutputPath string        `json:"output_path"`
}

// Deps are the collaborators of a run. Zero values select production
// defaults.
type Deps struct {
	// Fs holds the cache directory. Defaults to the OS filesystem.
	Fs afero.Fs
	// Catalog replaces opening cfg.Catalog.
	Catalog catalog.Source
	// Client replaces both the download and the probe client.
	Client *http.Client
	Now    func() time.Time
}

// Run performs one aggregation. Only catalog and output failures are
// returned; everything per provider or per stream degrades to fewer
// channels. The cache is flushed on every path, fatal ones included.
func Run(ctx context.Context, cfg config.AppConfig, deps Deps) (*Status, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}

	runID := log.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = log.ContextWithRunID(ctx, runID)
	}
	logger := log.WithComponentFromContext(ctx, "jobs")
	start := deps.Now()
	logger.Info().
		Str(log.FieldEvent, "run.start").
		Str(log.FieldCatalog, redactLocation(cfg.Catalog)).
		Str(log.FieldCacheDir, cfg.CacheDir).
		Msg("starting run")

	store := cache.New(cache.Options{
		Dir: cfg.CacheDir,
		Fs:  deps.Fs,
		TTL: cache.NewTTLPolicy(cfg.TTL.TTLs()),
		Now: deps.Now,
	})
	defer finish(ctx, cfg, store)

	if err := store.Load(ctx); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "cache.load.failed").Msg("starting with an empty stream status cache")
	}

	snap, err := loadCatalog(ctx, cfg, deps)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "run.failed").Msg("catalog unavailable")
		return nil, err
	}

	downloadClient, probeClient := deps.Client, deps.Client
	if deps.Client == nil {
		downloadClient = httpx.NewClient(cfg.HTTP.DownloadTimeout,
			httpx.WithUserAgent(cfg.HTTP.UserAgent),
			httpx.WithMaxConnsPerHost(maxConnsPerHost))
		probeClient = httpx.NewClient(cfg.HTTP.ProbeTimeout,
			httpx.WithUserAgent(cfg.HTTP.UserAgent),
			httpx.WithMaxRedirects(maxProbeRedirects),
			httpx.WithMaxConnsPerHost(maxConnsPerHost))
		defer downloadClient.CloseIdleConnections()
		defer probeClient.CloseIdleConnections()
	}
	dl := download.NewCaching(download.NewHTTP(download.HTTPOptions{Client: downloadClient}), store)

	f := fetcher.New(fetcher.Options{
		Downloader:  dl,
		Store:       store,
		Lookback:    cfg.LookbackDays,
		Concurrency: cfg.Concurrency.Providers,
		Now:         deps.Now,
		OnReport: func(r fetcher.Report) {
			metrics.RecordProviderFetch(r.ProviderID, r.Outcome.String(), r.Channels)
		},
	})
	pool := f.Fetch(ctx, snap.Providers)

	chk := checker.New(checker.Options{
		Store:      store,
		Downloader: dl,
		Client:     probeClient,
		Timeout:    cfg.HTTP.ProbeTimeout,
		Rate:       cfg.HTTP.ProbeRate,
		MaxDepth:   cfg.Checker.MaxDepth,
		DenyList:   cfg.Checker.DenyList,
		CDNHosts:   cfg.Checker.CDNHosts,
		Now:        deps.Now,
		OnCheck: func(s model.StreamState) {
			metrics.RecordStreamCheck(s.String())
		},
	})
	agg := aggregator.New(aggregator.Options{
		Matcher:          matcher.New(store),
		Checker:          chk,
		IncludeUnmatched: cfg.IncludeUnmatched,
		Concurrency:      cfg.Concurrency.Definitions,
	})
	pl, stats := agg.Aggregate(ctx, aggregator.Input{
		Definitions: snap.Definitions,
		Groups:      snap.Groups,
		Pool:        pool,
	})

	opts := playlist.BuildOptions{GuideTags: cfg.EmitGuideTags, ProviderTags: cfg.EmitProviderTags}
	if err := writeOutput(ctx, cfg.OutputPath, pl, opts); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "run.failed").Msg("could not write playlist")
		return nil, err
	}

	finished := deps.Now()
	status := &Status{
		RunID:      runID,
		StartedAt:  start,
		Duration:   finished.Sub(start),
		Providers:  countEnabled(snap.Providers),
		PoolSize:   stats.PoolSize,
		Channels:   pl.Len(),
		Unmatched:  stats.Unmatched,
		OutputPath: cfg.OutputPath,
	}
	metrics.RecordChannelsEmitted(stats.Matched, stats.Unmatched)
	metrics.RecordRun(status.Duration, finished)

	logger.Info().
		Str(log.FieldEvent, "run.success").
		Str(log.FieldOutput, cfg.OutputPath).
		Int(log.FieldChannels, status.Channels).
		Int("unmatched", status.Unmatched).
		Int("pool", status.PoolSize).
		Int64(log.FieldDurationMS, status.Duration.Milliseconds()).
		Msg("run completed")
	return status, nil
}

// finish flushes the cache and exports metrics. Failures are logged only.
func finish(ctx context.Context, cfg config.AppConfig, store *cache.Store) {
	logger := log.WithComponentFromContext(ctx, "jobs")
	ctx = context.WithoutCancel(ctx)

	if err := store.Flush(ctx); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "cache.flush.failed").Msg("stream status cache not saved")
	}
	stats := store.Stats()
	metrics.RecordCacheStats(stats)
	logger.Info().
		Str(log.FieldEvent, "cache.stats").
		Int64("status_hits", stats.Statuses.Hits).
		Int64("status_misses", stats.Statuses.Misses).
		Int64("download_hits", stats.Downloads.Hits).
		Int64("parsed_hits", stats.Parsed.Hits).
		Int64("name_hits", stats.Names.Hits).
		Int64("snapshot_hits", stats.Snapshots.Hits).
		Msg("cache usage")

	if cfg.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "metrics.write.failed").Str(log.FieldPath, cfg.MetricsTextfile).Msg("metrics textfile not written")
	}
}

func loadCatalog(ctx context.Context, cfg config.AppConfig, deps Deps) (catalog.Snapshot, error) {
	src := deps.Catalog
	if src == nil {
		opened, closer, err := catalog.Open(ctx, cfg.Catalog)
		if err != nil {
			return catalog.Snapshot{}, fmt.Errorf("open catalog: %w", err)
		}
		defer closer.Close()
		src = opened
	}
	return catalog.Load(ctx, src)
}

func writeOutput(ctx context.Context, path string, pl *model.Playlist, opts playlist.BuildOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return writeM3U(ctx, path, pl, opts)
}

func countEnabled(providers []model.Provider) int {
	n := 0
	for _, p := range providers {
		if p.Enabled {
			n++
		}
	}
	return n
}
