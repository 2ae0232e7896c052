// SPDX-License-Identifier: MIT

package aggregator

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/m3umerge/internal/cache"
	"github.com/ManuGH/m3umerge/internal/matcher"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeChecker struct {
	live   map[string]bool
	jitter bool

	mu    sync.Mutex
	calls []string
}

func (c *fakeChecker) IsPlayable(_ context.Context, url string) bool {
	if c.jitter {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
	}
	c.mu.Lock()
	c.calls = append(c.calls, url)
	c.mu.Unlock()
	return c.live[url]
}

func (c *fakeChecker) checked(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.calls, url)
}

// nameMatcher matches a channel when its name is one of the definition's aliases.
type nameMatcher struct{}

func (nameMatcher) DoesMatch(def model.ChannelDefinition, name, _ string) bool {
	return name == def.Name || slices.Contains(def.Aliases, name)
}

func def(id, name, group string, aliases ...string) model.ChannelDefinition {
	d := model.ChannelDefinition{ID: id, Enabled: true, Name: name, GroupID: group, Aliases: aliases}
	d.Normalize()
	return d
}

func ch(provider, name, url string) model.Channel {
	return model.Channel{Name: name, URL: url, ProviderID: provider, OriginalName: name}
}

func urls(pl *model.Playlist) []string {
	out := make([]string, 0, pl.Len())
	for _, c := range pl.Channels {
		out = append(out, c.URL)
	}
	return out
}

func TestAggregate_PrefersHighestPriorityLiveProvider(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	chk := &fakeChecker{live: map[string]bool{
		"http://p1/one": true,
		"http://p2/one": true,
		"http://p3/one": true,
	}}
	agg := New(Options{Matcher: matcher.New(cache.New(cache.Options{})), Checker: chk})

	pl, stats := agg.Aggregate(context.Background(), Input{
		Definitions: []model.ChannelDefinition{def("one", "Channel One", "main", "Kanal 1", "CH1 HD")},
		Groups:      []model.Group{{ID: "main", Name: "Main", Priority: 1, Enabled: true}},
		Pool: []model.Channel{
			ch("p1", "Channel One", "http://p1/one"),
			ch("p2", "Kanal 1", "http://p2/one"),
			ch("p3", "CH1 HD", "http://p3/one"),
		},
	})

	require.Equal(t, 1, pl.Len())
	want := model.Channel{
		Name:         "Channel One",
		URL:          "http://p1/one",
		ProviderID:   "p1",
		OriginalName: "Channel One",
		ID:           "one",
		Group:        "Main",
		Number:       1,
	}
	if diff := cmp.Diff(want, pl.Channels[0]); diff != "" {
		t.Errorf("channel mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Stats{Definitions: 1, Matched: 1, PoolSize: 3}, stats)
	assert.False(t, chk.checked("http://p2/one"))
}

func TestAggregate_SkipsDeadCandidates(t *testing.T) {
	chk := &fakeChecker{live: map[string]bool{"http://p2/one": true}}
	agg := New(Options{Matcher: nameMatcher{}, Checker: chk})

	pl, _ := agg.Aggregate(context.Background(), Input{
		Definitions: []model.ChannelDefinition{def("one", "One", "g")},
		Groups:      []model.Group{{ID: "g", Priority: 1, Enabled: true}},
		Pool: []model.Channel{
			ch("p1", "One", "http://p1/one"),
			ch("p2", "One", "http://p2/one"),
			ch("p3", "One", "http://p3/one"),
		},
	})

	assert.Equal(t, []string{"http://p2/one"}, urls(pl))
	assert.True(t, chk.checked("http://p1/one"))
	assert.False(t, chk.checked("http://p3/one"))
}

func TestAggregate_OrdersByGroupPriorityThenNameRegardlessOfCompletion(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	in := Input{
		Definitions: []model.ChannelDefinition{
			def("news-b", "Bravo News", "news"),
			def("misc", "Misc", "missing-group"),
			def("ent-z", "Zulu", "ent"),
			def("news-a", "Alpha News", "news"),
			def("off", "Disabled Group Channel", "off"),
			{ID: "dis", Enabled: false, Name: "Disabled", GroupID: "news"},
			def("ent-a", "Alpha Ent", "ent"),
			def("dead", "Dead One", "news"),
		},
		Groups: []model.Group{
			{ID: "ent", Name: "Entertainment", Priority: 2, Enabled: true},
			{ID: "news", Name: "News", Priority: 1, Enabled: true},
			{ID: "off", Name: "Off", Priority: 1, Enabled: false},
		},
	}
	live := map[string]bool{}
	for _, d := range in.Definitions {
		url := "http://p/" + d.ID
		in.Pool = append(in.Pool, ch("p", d.Name, url))
		live[url] = d.ID != "dead"
	}

	var first *model.Playlist
	for run := 0; run < 5; run++ {
		agg := New(Options{Matcher: nameMatcher{}, Checker: &fakeChecker{live: live, jitter: true}, Concurrency: 4})
		pl, stats := agg.Aggregate(context.Background(), in)

		assert.Equal(t, []string{
			"http://p/news-a",
			"http://p/news-b",
			"http://p/ent-a",
			"http://p/ent-z",
			"http://p/misc",
		}, urls(pl))
		for i, c := range pl.Channels {
			assert.Equal(t, i+1, c.Number)
		}
		assert.Equal(t, "Unknown", pl.Channels[4].Group)
		assert.Equal(t, 6, stats.Definitions)
		assert.Equal(t, 5, stats.Matched)

		if first == nil {
			first = pl
			continue
		}
		if diff := cmp.Diff(first, pl); diff != "" {
			t.Fatalf("run %d differs (-first +run):\n%s", run, diff)
		}
	}
}

func TestAggregate_DeduplicatesPoolByURL(t *testing.T) {
	chk := &fakeChecker{live: map[string]bool{"http://shared/x": true}}
	agg := New(Options{Matcher: nameMatcher{}, Checker: chk})

	pl, stats := agg.Aggregate(context.Background(), Input{
		Definitions: []model.ChannelDefinition{def("x", "X", "g"), def("y", "Y", "g")},
		Groups:      []model.Group{{ID: "g", Priority: 1, Enabled: true}},
		Pool: []model.Channel{
			ch("p1", "X", "http://shared/x"),
			ch("p2", "Y", "http://shared/x"),
			ch("p3", "Y", ""),
		},
	})

	assert.Equal(t, 1, stats.PoolSize)
	require.Equal(t, 1, pl.Len())
	assert.Equal(t, "p1", pl.Channels[0].ProviderID)
}

func TestAggregate_AppendsLiveUnmatchedChannels(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	chk := &fakeChecker{live: map[string]bool{
		"http://p/one":        true,
		"http://p/zeta":       true,
		"http://p/beta-dead":  false,
		"http://p2/beta":      true,
		"http://p/alpha":      true,
		"http://p2/alpha":     true,
		"http://p/disabled":   true,
		"http://p/Alpha-caps": true,
	}}
	agg := New(Options{Matcher: nameMatcher{}, Checker: chk, IncludeUnmatched: true})

	pl, stats := agg.Aggregate(context.Background(), Input{
		Definitions: []model.ChannelDefinition{
			def("one", "One", "g"),
			{ID: "hidden", Enabled: false, Name: "Hidden", Aliases: []string{"Hidden"}, GroupID: "g"},
		},
		Groups: []model.Group{{ID: "g", Priority: 1, Enabled: true}},
		Pool: []model.Channel{
			ch("p", "One", "http://p/one"),
			ch("p", "zeta", "http://p/zeta"),
			ch("p", "beta", "http://p/beta-dead"),
			ch("p2", "beta", "http://p2/beta"),
			ch("p", "alpha", "http://p/alpha"),
			ch("p2", "alpha", "http://p2/alpha"),
			ch("p", "Hidden", "http://p/disabled"),
			ch("p", "Alpha", "http://p/Alpha-caps"),
		},
	})

	assert.Equal(t, []string{
		"http://p/one",
		"http://p/Alpha-caps",
		"http://p/alpha",
		"http://p2/beta",
		"http://p/zeta",
	}, urls(pl))
	for i, c := range pl.Channels {
		assert.Equal(t, i+1, c.Number)
	}
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 4, stats.Unmatched)
	assert.False(t, chk.checked("http://p2/alpha"))
	assert.False(t, chk.checked("http://p/disabled"))
}

func TestAggregate_EmptyInput(t *testing.T) {
	agg := New(Options{Matcher: nameMatcher{}, Checker: &fakeChecker{}, IncludeUnmatched: true})
	pl, stats := agg.Aggregate(context.Background(), Input{})
	assert.True(t, pl.IsEmpty())
	assert.Equal(t, Stats{}, stats)
}

func TestSortByDisplayNameIgnoresCaseAndSpacing(t *testing.T) {
	chs := []model.Channel{{Name: "zeta"}, {Name: "  Beta  TV"}, {Name: "beta tv"}, {Name: "Alpha"}}
	sortByDisplayName(chs)

	var names []string
	for _, ch := range chs {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"Alpha", "  Beta  TV", "beta tv", "zeta"}, names)
}
