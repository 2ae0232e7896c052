// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/spf13/afero"
)

const (
	// StatusFileName is the stream-status file inside the cache directory.
	StatusFileName = "stream-status.csv"
	// TimestampLayout is the persisted last-check timestamp format (UTC).
	TimestampLayout = "2006-01-02_15-04-05"
)

// TTLPolicy maps a stream state to how long a persisted result stays usable.
// States without an entry, or with a non-positive duration, are never reused
// across runs.
type TTLPolicy map[model.StreamState]time.Duration

// NewTTLPolicy builds a policy for the four states that carry a TTL.
func NewTTLPolicy(alive, dead, unauthorised, notFound time.Duration) TTLPolicy {
	return TTLPolicy{
		model.StateAlive:        alive,
		model.StateDead:         dead,
		model.StateUnauthorised: unauthorised,
		model.StateNotFound:     notFound,
	}
}

// Fresh reports whether st is young enough to be reused at now.
func (p TTLPolicy) Fresh(st model.MediaStreamStatus, now time.Time) bool {
	ttl, ok := p[st.State]
	if !ok || ttl <= 0 {
		return false
	}
	return now.Sub(st.LastChecked) <= ttl
}

type statusEntry struct {
	status model.MediaStreamStatus
	// loaded marks entries read from the status file. Only those are
	// subject to TTL; results produced during the run hold until it ends.
	loaded bool
}

func (s *Store) statusUsable(e statusEntry) bool {
	return !e.loaded || s.ttl.Fresh(e.status, s.now())
}

// StreamStatus returns the usable cached status for url.
func (s *Store) StreamStatus(url string) (model.MediaStreamStatus, bool) {
	e, ok := s.statuses.get(url, s.statusUsable)
	return e.status, ok
}

// AddStreamStatus records st unless a usable status for the same URL is
// already held, and returns the held status.
func (s *Store) AddStreamStatus(st model.MediaStreamStatus) model.MediaStreamStatus {
	st.LastChecked = st.LastChecked.UTC()
	e := s.statuses.addIfAbsent(st.URL, statusEntry{status: st}, s.statusUsable)
	return e.status
}

func (s *Store) statusPath() string {
	return filepath.Join(s.dir, StatusFileName)
}

// Load pre-seeds the stream-status store from the cache directory, dropping
// rows older than their state's TTL. A missing file is not an error.
func (s *Store) Load(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "cache")
	path := s.statusPath()

	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug().Str(log.FieldEvent, "cache.load.empty").Str(log.FieldPath, path).Msg("no stream status file yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read stream status file: %w", err)
	}

	now := s.now()
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 3

	var loaded, expired, malformed int
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				malformed++
				continue
			}
			return fmt.Errorf("parse stream status file: %w", err)
		}

		st, err := parseStatusRecord(rec)
		if err != nil {
			malformed++
			continue
		}
		if !s.ttl.Fresh(st, now) {
			expired++
			continue
		}
		s.statuses.seed(st.URL, statusEntry{status: st, loaded: true})
		loaded++
	}

	ev := logger.Info()
	if malformed > 0 {
		ev = logger.Warn()
	}
	ev.Str(log.FieldEvent, "cache.load").
		Str(log.FieldPath, path).
		Int("loaded", loaded).
		Int("expired", expired).
		Int("malformed", malformed).
		Msg("stream status cache loaded")
	return nil
}

func parseStatusRecord(rec []string) (model.MediaStreamStatus, error) {
	if rec[0] == "" {
		return model.MediaStreamStatus{}, errors.New("empty url")
	}
	at, err := time.ParseInLocation(TimestampLayout, rec[1], time.UTC)
	if err != nil {
		return model.MediaStreamStatus{}, fmt.Errorf("timestamp: %w", err)
	}
	state, err := model.ParseStreamState(rec[2])
	if err != nil {
		return model.MediaStreamStatus{}, err
	}
	return model.MediaStreamStatus{URL: rec[0], State: state, LastChecked: at}, nil
}

// Flush writes every held stream status to the cache directory regardless of
// age. Rows are sorted by URL.
func (s *Store) Flush(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "cache")
	path := s.statusPath()
	entries := s.statuses.sorted()

	err := writeFileAtomic(s.fs, path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		for _, e := range entries {
			row := []string{
				e.status.URL,
				e.status.LastChecked.UTC().Format(TimestampLayout),
				e.status.State.String(),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("flush stream status file: %w", err)
	}

	logger.Info().
		Str(log.FieldEvent, "cache.flush").
		Str(log.FieldPath, path).
		Int("entries", len(entries)).
		Msg("stream status cache saved")
	return nil
}
