// SPDX-License-Identifier: MIT

package net

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// HostSet is a set of normalized hosts matched by domain: an entry matches
// itself and every subdomain.
type HostSet struct {
	hosts map[string]struct{}
}

// NewHostSet normalizes entries. Invalid entries are returned in skipped.
func NewHostSet(entries ...string) (set HostSet, skipped []string) {
	set.hosts = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		h, err := NormalizeHost(e)
		if err != nil {
			skipped = append(skipped, e)
			continue
		}
		set.hosts[h] = struct{}{}
	}
	return set, skipped
}

// Len returns the number of entries.
func (s HostSet) Len() int { return len(s.hosts) }

// Match reports whether host or one of its parent domains is in the set.
// host must already be normalized.
func (s HostSet) Match(host string) bool {
	for h := host; h != ""; {
		if _, ok := s.hosts[h]; ok {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return false
}
