// SPDX-License-Identifier: MIT

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/spf13/afero"
)

// SnapshotDir is the subdirectory of the cache directory holding provider
// playlist snapshots.
const SnapshotDir = "playlists"

// SnapshotStats counts snapshot file activity.
type SnapshotStats struct {
	Reads  int64
	Hits   int64
	Writes int64
}

type snapshotCounters struct {
	reads  atomic.Int64
	hits   atomic.Int64
	writes atomic.Int64
}

func (c *snapshotCounters) stats() SnapshotStats {
	return SnapshotStats{Reads: c.reads.Load(), Hits: c.hits.Load(), Writes: c.writes.Load()}
}

// SnapshotFileName is the deterministic file name for a provider's playlist on day.
func SnapshotFileName(providerID string, day time.Time) string {
	return sanitizeID(providerID) + "_" + day.Format(model.DefaultDateLayout) + ".m3u"
}

// sanitizeID makes id safe as a file name component. IDs that had to be
// rewritten get a short hash suffix so two distinct IDs never share a file.
func sanitizeID(id string) string {
	if id == "" {
		return "unknown"
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
	if safe == id {
		return safe
	}
	sum := sha256.Sum256([]byte(id))
	return safe + "-" + hex.EncodeToString(sum[:4])
}

func (s *Store) snapshotPath(providerID string, day time.Time) string {
	return filepath.Join(s.dir, SnapshotDir, SnapshotFileName(providerID, day))
}

// Snapshot returns the raw playlist saved for providerID on day. It only
// reads the cache directory and never fetches anything.
func (s *Store) Snapshot(providerID string, day time.Time) (string, bool) {
	s.snapshots.reads.Add(1)
	data, err := afero.ReadFile(s.fs, s.snapshotPath(providerID, day))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger := log.WithComponent("cache")
			logger.Warn().Err(err).
				Str(log.FieldProvider, providerID).
				Msg("unreadable playlist snapshot")
		}
		return "", false
	}
	s.snapshots.hits.Add(1)
	return string(data), true
}

// SaveSnapshot persists content as providerID's playlist for day, replacing
// any earlier snapshot for the same key.
func (s *Store) SaveSnapshot(providerID string, day time.Time, content string) error {
	path := s.snapshotPath(providerID, day)
	err := writeFileAtomic(s.fs, path, func(w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	})
	if err != nil {
		return fmt.Errorf("save snapshot for provider %q: %w", providerID, err)
	}
	s.snapshots.writes.Add(1)
	return nil
}
