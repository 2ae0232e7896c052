// SPDX-License-Identifier: MIT

// Package playlist reads and writes the M3U playlist format.
package playlist

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ManuGH/m3umerge/internal/model"
)

// BuildOptions selects which optional EXTINF attributes are written.
type BuildOptions struct {
	// GuideTags writes tvg-chno, tvg-id, tvg-name, tvg-logo, tvg-country and group-title.
	GuideTags bool
	// ProviderTags writes provider-id and provider-name.
	ProviderTags bool
}

const header = "#EXTM3U"

var attrEscaper = strings.NewReplacer(`"`, `'`, "\n", " ", "\r", " ")

// Write serialises pl. Attributes with empty values are omitted.
func Write(w io.Writer, pl *model.Playlist, opts BuildOptions) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(header + "\n")

	if pl != nil {
		for _, ch := range pl.Channels {
			bw.WriteString("#EXTINF:-1")
			if opts.GuideTags {
				if ch.Number > 0 {
					writeAttr(bw, "tvg-chno", strconv.Itoa(ch.Number))
				}
				writeAttr(bw, "tvg-id", ch.ID)
				writeAttr(bw, "tvg-name", ch.Name)
				writeAttr(bw, "tvg-logo", ch.LogoURL)
				writeAttr(bw, "tvg-country", ch.Country)
				writeAttr(bw, "group-title", ch.Group)
			}
			if opts.ProviderTags {
				writeAttr(bw, "provider-id", ch.ProviderID)
				writeAttr(bw, "provider-name", ch.OriginalName)
			}
			bw.WriteString(",")
			bw.WriteString(strings.ReplaceAll(ch.Name, "\n", " "))
			bw.WriteString("\n")
			bw.WriteString(strings.TrimSpace(ch.URL))
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

func writeAttr(w *bufio.Writer, key, value string) {
	if value == "" {
		return
	}
	w.WriteString(" ")
	w.WriteString(key)
	w.WriteString(`="`)
	w.WriteString(attrEscaper.Replace(value))
	w.WriteString(`"`)
}

// Build returns the serialised playlist as a string.
func Build(pl *model.Playlist, opts BuildOptions) string {
	var b strings.Builder
	_ = Write(&b, pl, opts)
	return b.String()
}
