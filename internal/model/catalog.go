// SPDX-License-Identifier: MIT

// Package model holds the records shared by every stage of a run: the
// curated catalog (definitions, groups, providers) and the transient
// channels and playlists built from provider feeds.
package model

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// PrioritySentinel is the priority given to groups and providers that
// declare a non-positive priority. It sorts after every real priority.
const PrioritySentinel = math.MaxInt32

// NormalizePriority maps non-positive priorities to PrioritySentinel.
func NormalizePriority(p int) int {
	if p <= 0 {
		return PrioritySentinel
	}
	return p
}

// ChannelDefinition is one curated logical channel.
type ChannelDefinition struct {
	ID      string
	Enabled bool
	Name    string
	Country string
	Aliases []string
	GroupID string
	LogoURL string
}

// Normalize trims the canonical name and rebuilds the alias set so that it
// always contains the canonical name exactly once, keeping declaration order
// for the remaining aliases.
func (d *ChannelDefinition) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Country = strings.TrimSpace(d.Country)

	seen := make(map[string]struct{}, len(d.Aliases)+1)
	aliases := make([]string, 0, len(d.Aliases)+1)
	add := func(a string) {
		a = strings.TrimSpace(a)
		if a == "" {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		aliases = append(aliases, a)
	}
	add(d.Name)
	for _, a := range d.Aliases {
		add(a)
	}
	d.Aliases = aliases
}

// Group orders and toggles sets of channel definitions.
type Group struct {
	ID       string
	Name     string
	Priority int
	Enabled  bool
}

// UnknownGroup is the implicit group for definitions whose group id does not
// resolve.
func UnknownGroup() Group {
	return Group{ID: "", Name: "Unknown", Priority: PrioritySentinel, Enabled: true}
}

// Provider is an external source of an M3U playlist.
type Provider struct {
	ID           string
	Enabled      bool
	Priority     int
	URLTemplate  string
	AllowCaching bool
	Country      string
	ChannelName  string
}

var datePlaceholder = regexp.MustCompile(`\{date(?::([^}]+))?\}`)

// DefaultDateLayout is used for a bare {date} placeholder.
const DefaultDateLayout = "2006-01-02"

// HasDatePlaceholder reports whether the URL template varies by day.
func (p Provider) HasDatePlaceholder() bool {
	return datePlaceholder.MatchString(p.URLTemplate)
}

// URLFor expands every date placeholder in the template with day.
// {date} renders as 2006-01-02; {date:<layout>} uses a Go time layout.
func (p Provider) URLFor(day time.Time) string {
	return datePlaceholder.ReplaceAllStringFunc(p.URLTemplate, func(m string) string {
		layout := DefaultDateLayout
		if sub := datePlaceholder.FindStringSubmatch(m); len(sub) > 1 && sub[1] != "" {
			layout = sub[1]
		}
		return day.Format(layout)
	})
}
