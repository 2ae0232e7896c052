// SPDX-License-Identifier: MIT

package download

import (
	"context"

	"github.com/ManuGH/m3umerge/internal/cache"
	"github.com/ManuGH/m3umerge/internal/log"
	platformnet "github.com/ManuGH/m3umerge/internal/platform/net"
	"golang.org/x/sync/singleflight"
)

// Store records download outcomes. *cache.Store satisfies it.
type Store interface {
	Download(url string) (string, cache.Result)
	AddDownload(url, content string) string
}

// Caching downloads each URL at most once per run. Failures are recorded
// too, as empty content.
type Caching struct {
	inner Downloader
	store Store
	group singleflight.Group
}

// NewCaching wraps inner with store.
func NewCaching(inner Downloader, store Store) *Caching {
	return &Caching{inner: inner, store: store}
}

// Get returns the content for url and whether it is a known success or a
// known failure. A recorded outcome is returned without touching the network.
func (c *Caching) Get(ctx context.Context, url string) (string, cache.Result) {
	if content, res := c.store.Download(url); res != cache.Unknown {
		return content, res
	}

	v, _, _ := c.group.Do(url, func() (any, error) {
		// A flight that started after another one finished finds its result here.
		if content, res := c.store.Download(url); res != cache.Unknown {
			return content, nil
		}
		content, err := c.inner.Download(ctx, url)
		if err != nil {
			logger := log.WithComponentFromContext(ctx, "download")
			logger.Debug().
				Err(err).
				Str(log.FieldEvent, "download.failed").
				Str(log.FieldURL, platformnet.SanitizeURL(url)).
				Msg("download failed")
			content = ""
		}
		return c.store.AddDownload(url, content), nil
	})

	content := v.(string)
	if content == "" {
		return "", cache.KnownFailure
	}
	return content, cache.KnownSuccess
}
