// SPDX-License-Identifier: MIT

package net

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
// Provider URLs routinely carry account credentials in the query string.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

// IsHTTP reports whether u uses the http or https scheme and names a host.
func IsHTTP(u *url.URL) bool {
	if u == nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// HasPlaylistExt reports whether the URL path ends in .m3u or .m3u8.
func HasPlaylistExt(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	return ext == ".m3u" || ext == ".m3u8"
}

// Resolve resolves ref against base: absolute references pass through,
// "/x" resolves against base's scheme and host, and anything else against
// base's directory.
func Resolve(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty reference")
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	return base.ResolveReference(r).String(), nil
}
