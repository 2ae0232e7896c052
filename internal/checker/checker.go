// SPDX-License-Identifier: MIT

// Package checker decides whether a stream URL is playable, following
// nested playlists down to a reachable media URL.
package checker

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/m3umerge/internal/cache"
	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	platformnet "github.com/ManuGH/m3umerge/internal/platform/net"
	"github.com/ManuGH/m3umerge/internal/playlist"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxDepth = 3
)

// Store is the slice of the cache the checker reads and writes.
// *cache.Store satisfies it.
type Store interface {
	StreamStatus(url string) (model.MediaStreamStatus, bool)
	AddStreamStatus(st model.MediaStreamStatus) model.MediaStreamStatus
	playlist.ParsedStore
}

// Fetcher returns sub-playlist content. *download.Caching satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) (string, cache.Result)
}

// Options configures a Checker.
type Options struct {
	Store      Store
	Downloader Fetcher
	// Client issues the probes. It should not follow redirects forever and
	// must not be http.DefaultClient.
	Client  *http.Client
	Timeout time.Duration
	// Rate is the number of probes per second. Zero disables limiting.
	Rate     float64
	MaxDepth int
	// DenyList entries are hosts, parent domains or URL prefixes.
	DenyList []string
	// CDNHosts extends DefaultCDNHosts.
	CDNHosts []string
	Now      func() time.Time
	// OnCheck is called once per recorded outcome.
	OnCheck func(model.StreamState)
}

// Checker classifies stream URLs. It is safe for concurrent use.
type Checker struct {
	store    Store
	fetch    Fetcher
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	maxDepth int
	deny     denyList
	cdnHosts []string
	now      func() time.Time
	onCheck  func(model.StreamState)
	flights  singleflight.Group
}

// New returns a Checker.
func New(opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	burst := 1
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
		burst = int(opts.Rate)
		if burst < 1 {
			burst = 1
		}
	}

	cdn := make([]string, 0, len(DefaultCDNHosts)+len(opts.CDNHosts))
	cdn = append(cdn, DefaultCDNHosts...)
	for _, h := range opts.CDNHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			cdn = append(cdn, h)
		}
	}

	return &Checker{
		store:    opts.Store,
		fetch:    opts.Downloader,
		client:   opts.Client,
		timeout:  opts.Timeout,
		limiter:  rate.NewLimiter(limit, burst),
		maxDepth: opts.MaxDepth,
		deny:     newDenyList(opts.DenyList),
		cdnHosts: cdn,
		now:      opts.Now,
		onCheck:  opts.OnCheck,
	}
}

// IsPlayable reports whether url checks out as Alive.
func (c *Checker) IsPlayable(ctx context.Context, url string) bool {
	return c.Check(ctx, url) == model.StateAlive
}

// Check returns the state of url. It never fails: network trouble of any
// kind ends up as Dead. Concurrent checks of the same URL share one probe.
func (c *Checker) Check(ctx context.Context, rawURL string) model.StreamState {
	if st, ok := c.store.StreamStatus(rawURL); ok {
		return st.State
	}
	v, _, _ := c.flights.Do(rawURL, func() (any, error) {
		state, _ := c.check(ctx, rawURL, 0, map[string]struct{}{})
		return state, nil
	})
	return v.(model.StreamState)
}

// check classifies rawURL. final is false when the state depends on how
// rawURL was reached: a cycle or depth cut somewhere below it, or a context
// that ended mid-check. Only final states are recorded. path holds the
// playlists on the way down from the top-level URL.
func (c *Checker) check(ctx context.Context, rawURL string, depth int, path map[string]struct{}) (state model.StreamState, final bool) {
	if st, ok := c.store.StreamStatus(rawURL); ok {
		return st.State, true
	}
	if _, seen := path[rawURL]; seen || depth > c.maxDepth {
		return model.StateDead, false
	}
	path[rawURL] = struct{}{}
	defer delete(path, rawURL)

	logger := log.WithComponentFromContext(ctx, "checker").With().
		Str(log.FieldURL, platformnet.SanitizeURL(rawURL)).
		Int(log.FieldDepth, depth).
		Logger()

	u, err := url.Parse(strings.TrimSpace(rawURL))
	switch {
	case err != nil || isUnsupported(u):
		return c.record(logger, rawURL, model.StateUnsupported), true
	case c.deny.match(u, rawURL):
		return c.record(logger, rawURL, model.StateBlacklisted), true
	}

	state, ok := c.probe(ctx, u.String())
	if !ok {
		return state, false
	}
	if state != model.StateAlive || !platformnet.HasPlaylistExt(u) {
		return c.record(logger, rawURL, state), true
	}
	if isCDN(u, c.cdnHosts) {
		return c.record(logger, rawURL, model.StateAlive), true
	}

	state, final = c.checkPlaylist(ctx, logger, u, depth, path)
	if !final {
		logger.Debug().
			Str(log.FieldEvent, "checker.result.partial").
			Str(log.FieldState, state.String()).
			Msg("result depends on the check path, not recorded")
		return state, false
	}
	return c.record(logger, rawURL, state), true
}

// checkPlaylist reports Alive when any entry of the playlist at u is. A Dead
// is final only when every entry's Dead is.
func (c *Checker) checkPlaylist(ctx context.Context, logger zerolog.Logger, u *url.URL, depth int, path map[string]struct{}) (model.StreamState, bool) {
	content, res := c.fetch.Get(ctx, u.String())
	if res != cache.KnownSuccess {
		return model.StateDead, ctx.Err() == nil
	}
	pl := playlist.ParseCached(c.store, content, playlist.WithStreamInf())
	final := true
	for _, ch := range pl.Channels {
		if ctx.Err() != nil {
			return model.StateDead, false
		}
		next, err := platformnet.Resolve(u, ch.URL)
		if err != nil {
			logger.Debug().Err(err).Str(log.FieldEvent, "checker.resolve.failed").Msg("skipping unresolvable entry")
			continue
		}
		state, childFinal := c.check(ctx, next, depth+1, path)
		if state == model.StateAlive {
			return model.StateAlive, true
		}
		if !childFinal {
			final = false
		}
	}
	return model.StateDead, final
}

// probe issues a GET and maps the response status. ok is false when ctx
// ended before the probe could produce an answer; such a Dead is not recorded.
func (c *Checker) probe(ctx context.Context, rawURL string) (state model.StreamState, ok bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.StateDead, false
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.StateDead, true
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return model.StateDead, ctx.Err() == nil
	}
	// Live streams never end; only the status line matters.
	_ = resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return model.StateAlive, true
	case http.StatusUnauthorized:
		return model.StateUnauthorised, true
	case http.StatusNotFound:
		return model.StateNotFound, true
	default:
		return model.StateDead, true
	}
}

func (c *Checker) record(logger zerolog.Logger, rawURL string, state model.StreamState) model.StreamState {
	held := c.store.AddStreamStatus(model.MediaStreamStatus{
		URL:         rawURL,
		State:       state,
		LastChecked: c.now().UTC(),
	})
	if c.onCheck != nil {
		c.onCheck(held.State)
	}
	logger.Debug().
		Str(log.FieldEvent, "checker.result").
		Str(log.FieldState, held.State.String()).
		Msg("stream checked")
	return held.State
}
