// SPDX-License-Identifier: MIT

// Package fetcher downloads every enabled provider's playlist and merges the
// results into one priority-ordered channel pool.
package fetcher

import (
	"context"
	"sort"
	"time"

	"github.com/ManuGH/m3umerge/internal/cache"
	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	platformnet "github.com/ManuGH/m3umerge/internal/platform/net"
	"github.com/ManuGH/m3umerge/internal/playlist"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLookback    = 7
	DefaultConcurrency = 4
)

// Outcome describes where a provider's channels came from.
type Outcome int

const (
	// OutcomeEmpty means the provider contributed nothing.
	OutcomeEmpty Outcome = iota
	// OutcomeFresh means today's playlist was downloaded.
	OutcomeFresh
	// OutcomeSnapshot means an earlier day's saved playlist was used.
	OutcomeSnapshot
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomeSnapshot:
		return "snapshot"
	default:
		return "empty"
	}
}

// Downloader returns playlist content. *download.Caching satisfies it.
type Downloader interface {
	Get(ctx context.Context, url string) (string, cache.Result)
}

// Store is the slice of the cache the fetcher uses. *cache.Store satisfies it.
type Store interface {
	Snapshot(providerID string, day time.Time) (string, bool)
	SaveSnapshot(providerID string, day time.Time, content string) error
	playlist.ParsedStore
}

// Report summarises one provider's fetch.
type Report struct {
	ProviderID string
	Outcome    Outcome
	// Day is the date the channels belong to; zero for OutcomeEmpty.
	Day      time.Time
	Channels int
}

// Options configures a Fetcher.
type Options struct {
	Downloader Downloader
	Store      Store
	// Lookback is how many earlier days of snapshots a dated provider may
	// fall back to. Negative disables the fallback.
	Lookback    int
	Concurrency int
	Now         func() time.Time
	// OnReport is called once per provider, from the provider's goroutine.
	OnReport func(Report)
}

// Fetcher loads provider playlists.
type Fetcher struct {
	dl          Downloader
	store       Store
	lookback    int
	concurrency int
	now         func() time.Time
	onReport    func(Report)
}

// New returns a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Lookback < 0 {
		opts.Lookback = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		dl:          opts.Downloader,
		store:       opts.Store,
		lookback:    opts.Lookback,
		concurrency: opts.Concurrency,
		now:         opts.Now,
		onReport:    opts.OnReport,
	}
}

// Fetch loads every enabled provider concurrently and returns their channels
// ordered by provider priority, then declaration order. Providers that yield
// nothing are left out.
func (f *Fetcher) Fetch(ctx context.Context, providers []model.Provider) []model.Channel {
	enabled := make([]model.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return model.NormalizePriority(enabled[i].Priority) < model.NormalizePriority(enabled[j].Priority)
	})

	today := f.now().UTC()
	slots := make([][]model.Channel, len(enabled))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, p := range enabled {
		g.Go(func() error {
			slots[i] = f.fetchProvider(ctx, p, today)
			return nil
		})
	}
	_ = g.Wait()

	var total int
	for _, s := range slots {
		total += len(s)
	}
	pool := make([]model.Channel, 0, total)
	for _, s := range slots {
		pool = append(pool, s...)
	}

	logger := log.WithComponentFromContext(ctx, "fetcher")
	logger.Info().
		Str(log.FieldEvent, "fetch.done").
		Int("providers", len(enabled)).
		Int(log.FieldChannels, len(pool)).
		Msg("provider playlists fetched")
	return pool
}

func (f *Fetcher) fetchProvider(ctx context.Context, p model.Provider, today time.Time) []model.Channel {
	logger := log.WithComponentFromContext(ctx, "fetcher").With().
		Str(log.FieldProvider, p.ID).
		Logger()

	report := Report{ProviderID: p.ID}
	defer func() {
		if f.onReport != nil {
			f.onReport(report)
		}
	}()

	url := p.URLFor(today)
	content, res := f.dl.Get(ctx, url)
	pl := playlist.ParseCached(f.store, content)

	switch {
	case !pl.IsEmpty():
		report.Outcome, report.Day = OutcomeFresh, today
		if res == cache.KnownSuccess && p.AllowCaching {
			if err := f.store.SaveSnapshot(p.ID, today, content); err != nil {
				logger.Warn().Err(err).Str(log.FieldEvent, "fetch.snapshot.failed").Msg("could not save playlist snapshot")
			}
		}
	case p.HasDatePlaceholder():
		pl, report.Day = f.fromSnapshots(p, today)
		if !pl.IsEmpty() {
			report.Outcome = OutcomeSnapshot
		}
	}

	if pl.IsEmpty() {
		logger.Warn().
			Str(log.FieldEvent, "fetch.empty").
			Str(log.FieldURL, platformnet.SanitizeURL(url)).
			Msg("provider yielded no channels")
		report.Day = time.Time{}
		return nil
	}

	channels := tag(pl.Channels, p)
	report.Channels = len(channels)
	logger.Info().
		Str(log.FieldEvent, "fetch.provider").
		Str(log.FieldOutcome, report.Outcome.String()).
		Str("day", report.Day.Format(model.DefaultDateLayout)).
		Int(log.FieldChannels, len(channels)).
		Msg("provider playlist loaded")
	return channels
}

// fromSnapshots walks back from yesterday and returns the first non-empty
// saved playlist. It never touches the network.
func (f *Fetcher) fromSnapshots(p model.Provider, today time.Time) (*model.Playlist, time.Time) {
	for back := 1; back <= f.lookback; back++ {
		day := today.AddDate(0, 0, -back)
		content, ok := f.store.Snapshot(p.ID, day)
		if !ok {
			continue
		}
		if pl := playlist.ParseCached(f.store, content); !pl.IsEmpty() {
			return pl, day
		}
	}
	return nil, time.Time{}
}

// tag copies channels, stamping provider identity and overrides. Parsed
// playlists are shared through the cache and must not be mutated.
func tag(in []model.Channel, p model.Provider) []model.Channel {
	out := make([]model.Channel, len(in))
	for i, ch := range in {
		ch.ProviderID = p.ID
		ch.OriginalName = ch.Name
		if p.Country != "" {
			ch.Country = p.Country
		}
		if p.ChannelName != "" {
			ch.Name = p.ChannelName
		}
		out[i] = ch
	}
	return out
}
