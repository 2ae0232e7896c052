// SPDX-License-Identifier: MIT

package playlist

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
)

// ParsedStore memoises parsed playlists by content hash. *cache.Store satisfies it.
type ParsedStore interface {
	ParsedPlaylist(hash string) (*model.Playlist, bool)
	AddParsedPlaylist(hash string, pl *model.Playlist) *model.Playlist
}

// ContentHash is the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ParseCached parses content once per distinct content and option set.
// Empty content and parse failures yield an empty playlist, never an error:
// callers treat both as "no playlist".
func ParseCached(store ParsedStore, content string, opts ...ParseOption) *model.Playlist {
	if content == "" {
		return &model.Playlist{}
	}

	var cfg parseConfig
	for _, o := range opts {
		o(&cfg)
	}
	key := ContentHash(content)
	if cfg.streamInf {
		key += ":stream-inf"
	}

	if pl, ok := store.ParsedPlaylist(key); ok {
		return pl
	}

	pl, err := ParseString(content, opts...)
	if err != nil {
		logger := log.WithComponent("playlist")
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "playlist.parse.failed").
			Msg("discarding malformed playlist")
		pl = &model.Playlist{}
	}
	return store.AddParsedPlaylist(key, pl)
}
