// SPDX-License-Identifier: MIT

// Package matcher reduces channel names to comparison keys and decides
// whether a provider channel is an instance of a catalog definition.
package matcher

import (
	"slices"

	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/ManuGH/m3umerge/internal/normalize"
)

// NameStore memoises normalised names. *cache.Store satisfies it.
type NameStore interface {
	NormalizedName(key string) (string, bool)
	AddNormalizedName(key, value string) string
}

// maxStabilisePasses bounds the re-runs that turn a key into a fixed point.
const maxStabilisePasses = 4

// Matcher normalises and compares channel names.
type Matcher struct {
	store NameStore
}

// New returns a Matcher memoising into store.
func New(store NameStore) *Matcher {
	return &Matcher{store: store}
}

// NormaliseName returns the uppercase, diacritic-free, alphanumeric key for
// name. A non-empty country is prefixed as "CC: name" before the pipeline
// runs. Results are memoised by that prefixed form.
func (m *Matcher) NormaliseName(name, country string) string {
	key := name
	if country != "" {
		key = country + ": " + name
	}
	if v, ok := m.store.NormalizedName(key); ok {
		return v
	}
	return m.store.AddNormalizedName(key, normaliseKey(key))
}

// normaliseKey runs the pipeline and then re-runs it on its own output until
// the key stops changing, so a normalised key always normalises to itself.
func normaliseKey(s string) string {
	out := pipeline(s)
	for i := 0; i < maxStabilisePasses; i++ {
		next := pipeline(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func pipeline(s string) string {
	s = stripNoise(s)
	for _, r := range rules {
		s = r.apply(s)
	}
	return normalize.Key(s)
}

// DoesMatch reports whether a provider channel called name (in country)
// is an instance of def. Exact equality with the canonical name or an alias
// matches outright; otherwise the candidate's key is compared with the keys
// of the canonical name and every alias, all normalised with def's country.
// An empty key never matches.
func (m *Matcher) DoesMatch(def model.ChannelDefinition, name, country string) bool {
	if name != "" && (name == def.Name || slices.Contains(def.Aliases, name)) {
		return true
	}

	key := m.NormaliseName(name, country)
	if key == "" {
		return false
	}
	if key == m.NormaliseName(def.Name, def.Country) {
		return true
	}
	for _, alias := range def.Aliases {
		if key == m.NormaliseName(alias, def.Country) {
			return true
		}
	}
	return false
}
