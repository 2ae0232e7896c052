// SPDX-License-Identifier: MIT

// Package aggregator turns the merged provider pool into the final playlist:
// one live stream per catalog definition, in catalog order.
package aggregator

import (
	"context"
	"sort"

	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/ManuGH/m3umerge/internal/normalize"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the definitions matched and verified at once.
const DefaultConcurrency = 16

// Matcher decides whether a provider channel is an instance of a definition.
type Matcher interface {
	DoesMatch(def model.ChannelDefinition, name, country string) bool
}

// Checker reports whether a stream URL is live.
type Checker interface {
	IsPlayable(ctx context.Context, url string) bool
}

// Options configures an Aggregator.
type Options struct {
	Matcher          Matcher
	Checker          Checker
	IncludeUnmatched bool
	Concurrency      int
}

// Input is the immutable data of one run.
type Input struct {
	Definitions []model.ChannelDefinition
	Groups      []model.Group
	// Pool is the merged provider channel list in priority order.
	Pool []model.Channel
}

// Stats summarises one aggregation.
type Stats struct {
	// Definitions counts the enabled definitions in enabled groups.
	Definitions int
	Matched     int
	Unmatched   int
	// PoolSize is the pool size after deduplication by URL.
	PoolSize int
}

// Aggregator builds the output playlist.
type Aggregator struct {
	matcher          Matcher
	checker          Checker
	includeUnmatched bool
	concurrency      int
}

// New returns an Aggregator.
func New(opts Options) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Aggregator{
		matcher:          opts.Matcher,
		checker:          opts.Checker,
		includeUnmatched: opts.IncludeUnmatched,
		concurrency:      opts.Concurrency,
	}
}

type candidate struct {
	def   model.ChannelDefinition
	group model.Group
}

// Aggregate matches every enabled definition against the pool, keeps the
// first live match in pool order, and numbers the result in catalog order.
// The output does not depend on the order in which checks complete.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (*model.Playlist, Stats) {
	logger := log.WithComponentFromContext(ctx, "aggregator")

	pool := dedupeByURL(in.Pool)
	groups := indexGroups(in.Groups)

	var defs []candidate
	for _, def := range in.Definitions {
		if !def.Enabled {
			continue
		}
		g := resolveGroup(groups, def.GroupID)
		if !g.Enabled {
			continue
		}
		defs = append(defs, candidate{def: def, group: g})
	}
	sort.SliceStable(defs, func(i, j int) bool {
		pi, pj := model.NormalizePriority(defs[i].group.Priority), model.NormalizePriority(defs[j].group.Priority)
		if pi != pj {
			return pi < pj
		}
		return defs[i].def.Name < defs[j].def.Name
	})

	slots := make([]*model.Channel, len(defs))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, c := range defs {
		g.Go(func() error {
			slots[i] = a.resolve(ctx, c, pool)
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{Definitions: len(defs), PoolSize: len(pool)}
	out := &model.Playlist{Channels: make([]model.Channel, 0, len(defs))}
	for _, ch := range slots {
		if ch == nil {
			continue
		}
		ch.Number = len(out.Channels) + 1
		out.Channels = append(out.Channels, *ch)
		stats.Matched++
	}

	if a.includeUnmatched {
		for _, ch := range a.unmatched(ctx, in.Definitions, pool) {
			ch.Number = len(out.Channels) + 1
			out.Channels = append(out.Channels, ch)
			stats.Unmatched++
		}
	}

	logger.Info().
		Str(log.FieldEvent, "aggregate.done").
		Int("definitions", stats.Definitions).
		Int("matched", stats.Matched).
		Int("unmatched", stats.Unmatched).
		Int("pool", stats.PoolSize).
		Msg("playlist aggregated")
	return out, stats
}

// resolve returns the first live pool channel matching c, or nil.
func (a *Aggregator) resolve(ctx context.Context, c candidate, pool []model.Channel) *model.Channel {
	for _, ch := range pool {
		if ctx.Err() != nil {
			return nil
		}
		if !a.matcher.DoesMatch(c.def, ch.Name, ch.Country) {
			continue
		}
		if !a.checker.IsPlayable(ctx, ch.URL) {
			continue
		}

		logger := log.WithComponentFromContext(ctx, "aggregator")
		logger.Debug().
			Str(log.FieldEvent, "aggregate.match").
			Str(log.FieldDefinition, c.def.ID).
			Str(log.FieldProvider, ch.ProviderID).
			Msg("definition matched")

		out := model.Channel{
			Name:         c.def.Name,
			Country:      c.def.Country,
			URL:          ch.URL,
			ProviderID:   ch.ProviderID,
			OriginalName: ch.OriginalName,
			ID:           c.def.ID,
			LogoURL:      c.def.LogoURL,
			Group:        c.group.Name,
		}
		if out.Country == "" {
			out.Country = ch.Country
		}
		if out.OriginalName == "" {
			out.OriginalName = ch.Name
		}
		return &out
	}
	return nil
}

// unmatched returns live pool channels that match no definition, enabled or
// not, one per display name, sorted by name.
func (a *Aggregator) unmatched(ctx context.Context, defs []model.ChannelDefinition, pool []model.Channel) []model.Channel {
	var (
		order  []string
		byName = map[string][]model.Channel{}
	)
	for _, ch := range pool {
		if a.matchesAny(defs, ch) {
			continue
		}
		if _, ok := byName[ch.Name]; !ok {
			order = append(order, ch.Name)
		}
		byName[ch.Name] = append(byName[ch.Name], ch)
	}

	slots := make([]*model.Channel, len(order))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, name := range order {
		g.Go(func() error {
			for _, ch := range byName[name] {
				if ctx.Err() != nil {
					return nil
				}
				if a.checker.IsPlayable(ctx, ch.URL) {
					ch.OriginalName = ch.Name
					slots[i] = &ch
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Channel, 0, len(slots))
	for _, ch := range slots {
		if ch != nil {
			out = append(out, *ch)
		}
	}
	sortByDisplayName(out)
	return out
}

// sortByDisplayName orders channels by their case- and spacing-insensitive
// name, falling back to the raw name.
func sortByDisplayName(chs []model.Channel) {
	sort.SliceStable(chs, func(i, j int) bool {
		ti, tj := normalize.Token(chs[i].Name), normalize.Token(chs[j].Name)
		if ti != tj {
			return ti < tj
		}
		return chs[i].Name < chs[j].Name
	})
}

func (a *Aggregator) matchesAny(defs []model.ChannelDefinition, ch model.Channel) bool {
	for _, def := range defs {
		if a.matcher.DoesMatch(def, ch.Name, ch.Country) {
			return true
		}
	}
	return false
}

// dedupeByURL keeps the first channel per URL and drops channels without one.
func dedupeByURL(in []model.Channel) []model.Channel {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Channel, 0, len(in))
	for _, ch := range in {
		if ch.URL == "" {
			continue
		}
		if _, ok := seen[ch.URL]; ok {
			continue
		}
		seen[ch.URL] = struct{}{}
		out = append(out, ch)
	}
	return out
}

func indexGroups(groups []model.Group) map[string]model.Group {
	m := make(map[string]model.Group, len(groups))
	for _, g := range groups {
		if _, ok := m[g.ID]; !ok {
			m[g.ID] = g
		}
	}
	return m
}

func resolveGroup(groups map[string]model.Group, id string) model.Group {
	if g, ok := groups[id]; ok {
		return g
	}
	return model.UnknownGroup()
}
