// SPDX-License-Identifier: MIT

package matcher

import (
	"regexp"
	"strings"

	"github.com/ManuGH/m3umerge/internal/normalize"
	"golang.org/x/net/html"
)

// rewrite is one step of the name pipeline: either a regexp replacement or
// a function for steps a regexp cannot express.
type rewrite struct {
	name string
	re   *regexp.Regexp
	repl string
	fn   func(string) string
}

func (r rewrite) apply(s string) string {
	if r.fn != nil {
		return r.fn(s)
	}
	return r.re.ReplaceAllString(s, r.repl)
}

func replace(name, pattern, repl string) rewrite {
	return rewrite{name: name, re: regexp.MustCompile(pattern), repl: repl}
}

func transform(name string, fn func(string) string) rewrite {
	return rewrite{name: name, fn: fn}
}

// noiseSubstrings are removed wherever they occur, ignoring case.
var noiseSubstrings = []string{
	"backup",
	"[geo-blocked]",
	"[not 24/7]",
	"iptv-org",
	"iptvcat.com",
}

var noisePattern = func() *regexp.Regexp {
	quoted := make([]string, len(noiseSubstrings))
	for i, n := range noiseSubstrings {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}()

// stripNoise removes noise substrings until none are left, so that removing
// one cannot splice together another.
func stripNoise(s string) string {
	for {
		next := noisePattern.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

var (
	ccPrefix     = regexp.MustCompile(`^[\[(|]?\s*([A-Za-z]{2})\s*[\])|:][\])|:\s]*`)
	ccSelfSuffix = regexp.MustCompile(`^([A-Z]{2}):\s*(.+?)\s*\(([A-Za-z]{2})\)$`)
)

// collapseCountryPrefixes folds "[RO] | RO: x" and similar runs of
// delimited two-letter codes into a single "RO: x". The first code wins.
func collapseCountryPrefixes(s string) string {
	cc := ""
	for {
		m := ccPrefix.FindStringSubmatchIndex(s)
		if m == nil || m[1] == len(s) {
			break
		}
		if cc == "" {
			cc = strings.ToUpper(s[m[2]:m[3]])
		}
		s = s[m[1]:]
	}
	if cc == "" {
		return s
	}
	return cc + ": " + s
}

func collapseSelfReference(s string) string {
	m := ccSelfSuffix.FindStringSubmatch(s)
	if m == nil || !strings.EqualFold(m[1], m[3]) {
		return s
	}
	return m[1] + ": " + m[2]
}

func decodeEntities(s string) string {
	return normalize.Trim(html.UnescapeString(s))
}

// rules is applied top to bottom; each step sees the previous step's output.
var rules = []rewrite{
	transform("trim", normalize.Trim),
	transform("html-entities", decodeEntities),
	replace("bracketed-markers",
		`(?i)\s*[\[(]\s*(?:[FU]?HD|SD|4K|AUTO|LIVE|MULTI[\s-]?AUDIO|NEW|ON[\s-]?DEMAND)\s*[\])]`, ""),
	replace("trailing-quality", `(?i)[\s\-_.|:]+(?:[FU]?HD|SD|4K|HQ)\+?$`, ""),
	replace("4k-plus", `(?i)\s*4K\+`, ""),
	replace("vip-country-suffix", `(?i)^(.+?)\s+VIP\s+([A-Z]{2})$`, "$2: $1"),
	replace("ro-l-marker", `(?i)^RO\s*\(L\)\s*:`, "RO:"),
	transform("country-prefixes", collapseCountryPrefixes),
	transform("self-referential-country", collapseSelfReference),
	replace("moldavia", `(?i)\bMoldavia\b`, "Moldova"),
	replace("rumania", `(?i)\bRumania\b`, "Romania"),
	replace("trailing-moldova", `(?i)^(.+?)\s*\(Moldova\)$`, "MD: $1"),
	replace("trailing-romania", `(?i)^(.+?)\s*\(Romania\)$`, "RO: $1"),
	replace("trailing-country", `^(.+?)\s*\(([A-Z]{2})\)$`, "$2: $1"),
	replace("bare-ro-prefix", `^RO\s+`, "RO: "),
	replace("rom-variants", `(?i)^(?:ROMANIA|ROM|ROU|RUM)\s*[:|\-]+\s*`, "RO: "),
	replace("vip-country-prefix", `(?i)^VIP\s*[|:\-]*\s*[A-Z]{2}\s*[|:\-]+\s*`, ""),
	replace("season-suffix", `(?i)\s+S\d+(?:-\d+)?$`, ""),
	replace("adult-marker", `\s*\(18\+\)`, ""),
	replace("option-marker", `(?i)\s*\(Opt-?\d+\)`, ""),
	replace("resolution-tag", `(?i)\s*[\[(]\s*(?:\d{3,4}[pi]|\d{3,4}x\d{3,4})\s*[\])]`, ""),
	replace("hevc", `(?i)\s*\bHEVC\b`, ""),
	replace("leading-country", `^[A-Za-z]{2}\s*:\s*`, ""),
}
