// SPDX-License-Identifier: MIT

package download

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/m3umerge/internal/cache"
	"github.com/ManuGH/m3umerge/internal/platform/httpx"
	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const body = "#EXTM3U\n#EXTINF:-1,Test\nhttp://x/y\n"

func newTestHTTP(maxBytes int64) *HTTP {
	return NewHTTP(HTTPOptions{Client: httpx.NewClient(2 * time.Second), MaxBytes: maxBytes})
}

func TestHTTP_DecodesContentEncodings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(body))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(body))
		_ = bw.Close()
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestHTTP(0)
	for _, path := range []string{"/plain", "/gzip", "/br"} {
		got, err := d.Download(context.Background(), srv.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, body, got, path)
	}
}

func TestHTTP_Failures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", http.NotFound)
	mux.HandleFunc("/huge", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	})
	mux.HandleFunc("/weird", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write([]byte("??"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestHTTP(1024)

	_, err := d.Download(context.Background(), srv.URL+"/missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)

	_, err = d.Download(context.Background(), srv.URL+"/huge")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = d.Download(context.Background(), srv.URL+"/weird")
	assert.Error(t, err)

	_, err = d.Download(context.Background(), "http://127.0.0.1:1/unreachable")
	assert.Error(t, err)
}

type countingDownloader struct {
	calls   atomic.Int64
	content map[string]string
}

func (d *countingDownloader) Download(_ context.Context, url string) (string, error) {
	d.calls.Add(1)
	time.Sleep(10 * time.Millisecond)
	if c, ok := d.content[url]; ok {
		return c, nil
	}
	return "", &StatusError{URL: url, Code: http.StatusNotFound}
}

func TestCaching_RecordsSuccessAndFailure(t *testing.T) {
	inner := &countingDownloader{content: map[string]string{"http://ok": body, "http://empty": ""}}
	store := cache.New(cache.Options{})
	c := NewCaching(inner, store)
	ctx := context.Background()

	got, res := c.Get(ctx, "http://ok")
	assert.Equal(t, cache.KnownSuccess, res)
	assert.Equal(t, body, got)

	_, res = c.Get(ctx, "http://missing")
	assert.Equal(t, cache.KnownFailure, res)

	_, res = c.Get(ctx, "http://empty")
	assert.Equal(t, cache.KnownFailure, res)

	// Second round is served from the store.
	_, _ = c.Get(ctx, "http://ok")
	_, _ = c.Get(ctx, "http://missing")
	assert.EqualValues(t, 3, inner.calls.Load())

	_, stored := store.Download("http://missing")
	assert.Equal(t, cache.KnownFailure, stored)
}

func TestCaching_ConcurrentCallersShareOneDownload(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	inner := &countingDownloader{content: map[string]string{"http://ok": body}}
	c := NewCaching(inner, cache.New(cache.Options{}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, res := c.Get(context.Background(), "http://ok")
			assert.Equal(t, cache.KnownSuccess, res)
			assert.Equal(t, body, got)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, inner.calls.Load())
}
