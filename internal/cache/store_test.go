// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(fs afero.Fs, now func() time.Time) *Store {
	return New(Options{
		Dir: "/cache",
		Fs:  fs,
		TTL: NewTTLPolicy(6*time.Hour, time.Hour, 24*time.Hour, 24*time.Hour),
		Now: now,
	})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStore_NormalizedNameRoundTrip(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), fixedClock(testNow))

	_, ok := s.NormalizedName("RO: Digi Sport 2")
	assert.False(t, ok)

	held := s.AddNormalizedName("RO: Digi Sport 2", "DIGISPORT2")
	assert.Equal(t, "DIGISPORT2", held)

	got, ok := s.NormalizedName("RO: Digi Sport 2")
	require.True(t, ok)
	assert.Equal(t, "DIGISPORT2", got)

	// add-if-absent keeps the first value
	held = s.AddNormalizedName("RO: Digi Sport 2", "OTHER")
	assert.Equal(t, "DIGISPORT2", held)
}

func TestStore_DownloadThreeWayResult(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), fixedClock(testNow))

	content, res := s.Download("http://never/attempted")
	assert.Equal(t, Unknown, res)
	assert.Empty(t, content)

	s.AddDownload("http://failed/list.m3u", "")
	content, res = s.Download("http://failed/list.m3u")
	assert.Equal(t, KnownFailure, res)
	assert.Equal(t, "", content)

	s.AddDownload("http://ok/list.m3u", "#EXTM3U\n")
	content, res = s.Download("http://ok/list.m3u")
	assert.Equal(t, KnownSuccess, res)
	assert.Equal(t, "#EXTM3U\n", content)
}

func TestStore_ParsedPlaylistRoundTrip(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), fixedClock(testNow))
	pl := &model.Playlist{Channels: []model.Channel{{Name: "Test", URL: "http://x/y"}}}

	assert.Same(t, pl, s.AddParsedPlaylist("abc", pl))
	got, ok := s.ParsedPlaylist("abc")
	require.True(t, ok)
	assert.Same(t, pl, got)
}

func TestStore_StreamStatusRoundTrip(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), fixedClock(testNow))
	st := model.MediaStreamStatus{URL: "http://a/1", State: model.StateNotFound, LastChecked: testNow}

	s.AddStreamStatus(st)
	got, ok := s.StreamStatus("http://a/1")
	require.True(t, ok)
	assert.Equal(t, st, got)

	// a later result for the same URL does not replace a usable one
	s.AddStreamStatus(model.MediaStreamStatus{URL: "http://a/1", State: model.StateAlive, LastChecked: testNow})
	got, _ = s.StreamStatus("http://a/1")
	assert.Equal(t, model.StateNotFound, got.State)
}

func TestStore_RuntimeStatusWithoutTTLStaysUsable(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), fixedClock(testNow))
	s.AddStreamStatus(model.MediaStreamStatus{URL: "rtmp://x", State: model.StateUnsupported, LastChecked: testNow})

	got, ok := s.StreamStatus("rtmp://x")
	require.True(t, ok)
	assert.Equal(t, model.StateUnsupported, got.State)
}

func writeStatusFile(t *testing.T, fs afero.Fs, body string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll("/cache", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/cache/"+StatusFileName, []byte(body), 0o644))
}

func stamp(d time.Duration) string {
	return testNow.Add(-d).Format(TimestampLayout)
}

func TestStore_LoadDropsEntriesOlderThanTheirStateTTL(t *testing.T) {
	fs := afero.NewMemMapFs()
	body := "" +
		"http://alive/fresh," + stamp(5*time.Hour) + ",Alive\n" +
		"http://alive/stale," + stamp(7*time.Hour) + ",Alive\n" +
		"http://dead/fresh," + stamp(30*time.Minute) + ",Dead\n" +
		"http://dead/stale," + stamp(2*time.Hour) + ",Dead\n" +
		"http://auth/fresh," + stamp(23*time.Hour) + ",Unauthorised\n" +
		"http://missing/stale," + stamp(25*time.Hour) + ",NotFound\n" +
		"rtmp://unsupported," + stamp(time.Minute) + ",Unsupported\n" +
		"http://bad/timestamp,yesterday,Alive\n" +
		"http://bad/state," + stamp(time.Minute) + ",Zombie\n" +
		"only,two\n"
	writeStatusFile(t, fs, body)

	s := newTestStore(fs, fixedClock(testNow))
	require.NoError(t, s.Load(context.Background()))

	for _, url := range []string{"http://alive/fresh", "http://dead/fresh", "http://auth/fresh"} {
		_, ok := s.StreamStatus(url)
		assert.True(t, ok, "expected %s to be loaded", url)
	}
	for _, url := range []string{
		"http://alive/stale", "http://dead/stale", "http://missing/stale",
		"rtmp://unsupported", "http://bad/timestamp", "http://bad/state",
	} {
		_, ok := s.StreamStatus(url)
		assert.False(t, ok, "expected %s to be dropped", url)
	}
}

func TestStore_LoadWithoutFile(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), fixedClock(testNow))
	require.NoError(t, s.Load(context.Background()))
	assert.Zero(t, s.Stats().Statuses.CurrentSize)
}

func TestStore_FlushWritesEveryEntryRegardlessOfAge(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeStatusFile(t, fs, "http://alive/old,"+stamp(5*time.Hour)+",Alive\n")

	now := testNow
	s := newTestStore(fs, func() time.Time { return now })
	require.NoError(t, s.Load(context.Background()))
	s.AddStreamStatus(model.MediaStreamStatus{URL: "http://b/new", State: model.StateDead, LastChecked: testNow})

	// The loaded entry has outlived its TTL by the time the run ends.
	now = testNow.Add(3 * time.Hour)
	require.NoError(t, s.Flush(context.Background()))

	data, err := afero.ReadFile(fs, "/cache/"+StatusFileName)
	require.NoError(t, err)
	want := "http://alive/old," + stamp(5*time.Hour) + ",Alive\n" +
		"http://b/new," + testNow.Format(TimestampLayout) + ",Dead\n"
	assert.Equal(t, want, string(data))

	leftovers, err := afero.Glob(fs, "/cache/*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStore_FlushThenLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	first := newTestStore(fs, fixedClock(testNow))
	url := "http://example.com/live?a=1,b=2"
	first.AddStreamStatus(model.MediaStreamStatus{URL: url, State: model.StateUnauthorised, LastChecked: testNow})
	require.NoError(t, first.Flush(context.Background()))

	second := newTestStore(fs, fixedClock(testNow.Add(time.Hour)))
	require.NoError(t, second.Load(context.Background()))
	got, ok := second.StreamStatus(url)
	require.True(t, ok)
	assert.Equal(t, model.StateUnauthorised, got.State)
	assert.True(t, got.LastChecked.Equal(testNow))
}

func TestStore_ConcurrentAddKeepsOneValue(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), fixedClock(testNow))

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.AddNormalizedName("key", fmt.Sprintf("v%d", i))
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.EqualValues(t, 1, s.Stats().Names.Adds)
}
