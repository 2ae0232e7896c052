// SPDX-License-Identifier: MIT

package checker

import (
	"net/url"
	"path"
	"strings"

	platformnet "github.com/ManuGH/m3umerge/internal/platform/net"
)

// unsupportedHosts are video portals and URL shorteners that never serve a
// stream directly.
var unsupportedHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"dailymotion.com",
	"twitch.tv",
	"bit.ly",
	"tinyurl.com",
	"goo.gl",
	"t.co",
}

// builtinDenyList holds the reserved example and invalid names.
var builtinDenyList = []string{
	"example.com",
	"example.net",
	"example.org",
	"invalid",
	"localhost",
}

// DefaultCDNHosts are host substrings of CDNs whose playlists are accepted
// as live once they answer, without probing their segments.
var DefaultCDNHosts = []string{
	"akamaized.net",
	"cloudfront.net",
	"fastly.net",
	"edgesuite.net",
	"llnwd.net",
}

var unsupportedSet, _ = platformnet.NewHostSet(unsupportedHosts...)

func isUnsupported(u *url.URL) bool {
	if !platformnet.IsHTTP(u) {
		return true
	}
	if strings.EqualFold(path.Ext(u.Path), ".mp4") {
		return true
	}
	host, err := platformnet.NormalizeHost(u.Hostname())
	if err != nil {
		return true
	}
	return unsupportedSet.Match(host)
}

// denyList matches by host, parent domain or URL prefix.
type denyList struct {
	hosts    platformnet.HostSet
	prefixes []string
}

func newDenyList(entries []string) denyList {
	all := make([]string, 0, len(builtinDenyList)+len(entries))
	all = append(all, builtinDenyList...)
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			all = append(all, e)
		}
	}
	hosts, rest := platformnet.NewHostSet(all...)
	return denyList{hosts: hosts, prefixes: rest}
}

func (d denyList) match(u *url.URL, raw string) bool {
	if host, err := platformnet.NormalizeHost(u.Hostname()); err == nil && d.hosts.Match(host) {
		return true
	}
	for _, p := range d.prefixes {
		if strings.HasPrefix(raw, p) {
			return true
		}
	}
	return false
}

func isCDN(u *url.URL, hosts []string) bool {
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}
