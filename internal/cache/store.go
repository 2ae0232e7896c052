// SPDX-License-Identifier: MIT

package cache

import (
	"time"

	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/spf13/afero"
)

// Options configures a Store.
type Options struct {
	// Dir is the cache directory holding the stream-status file and the
	// playlist snapshots.
	Dir string
	// Fs is the filesystem the persisted stores live on. Defaults to the OS filesystem.
	Fs afero.Fs
	// TTL decides which persisted stream statuses are still usable.
	TTL TTLPolicy
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Store owns every cache for one run. It is safe for concurrent use.
// Load and Flush bracket the run; everything in between is in memory
// except playlist snapshots, which are written through to disk.
type Store struct {
	dir string
	fs  afero.Fs
	ttl TTLPolicy
	now func() time.Time

	names     *memoryStore[string]
	statuses  *memoryStore[statusEntry]
	downloads *memoryStore[string]
	parsed    *memoryStore[*model.Playlist]
	snapshots snapshotCounters
}

// New returns an empty Store. Call Load to pre-seed persisted stream statuses.
func New(opts Options) *Store {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		dir:       opts.Dir,
		fs:        fs,
		ttl:       opts.TTL,
		now:       now,
		names:     newMemoryStore[string](),
		statuses:  newMemoryStore[statusEntry](),
		downloads: newMemoryStore[string](),
		parsed:    newMemoryStore[*model.Playlist](),
	}
}

// NormalizedName returns the memoised normalised form of key.
func (s *Store) NormalizedName(key string) (string, bool) {
	return s.names.get(key, nil)
}

// AddNormalizedName memoises value for key unless one is already held, and
// returns the held value.
func (s *Store) AddNormalizedName(key, value string) string {
	return s.names.addIfAbsent(key, value, nil)
}

// Download returns the recorded download for url. An empty recorded body is
// KnownFailure; a URL never recorded is Unknown.
func (s *Store) Download(url string) (string, Result) {
	content, ok := s.downloads.get(url, nil)
	switch {
	case !ok:
		return "", Unknown
	case content == "":
		return "", KnownFailure
	default:
		return content, KnownSuccess
	}
}

// AddDownload records the outcome of downloading url. Pass "" for a failed or
// empty download. The held content is returned.
func (s *Store) AddDownload(url, content string) string {
	return s.downloads.addIfAbsent(url, content, nil)
}

// ParsedPlaylist returns the playlist parsed from content with the given hash.
func (s *Store) ParsedPlaylist(hash string) (*model.Playlist, bool) {
	return s.parsed.get(hash, nil)
}

// AddParsedPlaylist memoises pl under hash unless one is already held, and
// returns the held playlist.
func (s *Store) AddParsedPlaylist(hash string, pl *model.Playlist) *model.Playlist {
	return s.parsed.addIfAbsent(hash, pl, nil)
}

// Stats is a point-in-time view of every store's counters.
type Stats struct {
	Names     StoreStats
	Statuses  StoreStats
	Downloads StoreStats
	Parsed    StoreStats
	Snapshots SnapshotStats
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{
		Names:     s.names.stats(),
		Statuses:  s.statuses.stats(),
		Downloads: s.downloads.stats(),
		Parsed:    s.parsed.stats(),
		Snapshots: s.snapshots.stats(),
	}
}
