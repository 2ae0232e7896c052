// SPDX-License-Identifier: MIT

// Package download fetches playlist content over HTTP and memoises the
// outcome per URL for the rest of the run.
package download

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// DefaultMaxBytes caps a downloaded playlist body.
const DefaultMaxBytes = 32 << 20

// ErrTooLarge is returned when a body exceeds the configured cap.
var ErrTooLarge = errors.New("download: body exceeds size limit")

// Downloader fetches the content at a URL.
type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.Code)
}

// HTTPOptions configures HTTP.
type HTTPOptions struct {
	Client   *http.Client
	MaxBytes int64
}

// HTTP downloads with GET and decodes gzip and brotli bodies itself.
type HTTP struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTP returns an HTTP downloader. Client must be set.
func NewHTTP(opts HTTPOptions) *HTTP {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &HTTP{client: opts.Client, maxBytes: opts.MaxBytes}
}

// Download implements Downloader.
func (h *HTTP) Download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	// Setting Accept-Encoding ourselves disables the transport's transparent
	// gzip handling, so both encodings are decoded below.
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(body, h.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return "", ErrTooLarge
	}
	return string(data), nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
