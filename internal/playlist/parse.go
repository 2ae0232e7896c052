// SPDX-License-Identifier: MIT

package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ManuGH/m3umerge/internal/model"
)

// ErrOrphanURL is returned when a URL line appears without an open #EXTINF record.
var ErrOrphanURL = errors.New("playlist: url line without an open #EXTINF record")

// maxLineBytes caps a single playlist line; some providers inline huge logos.
const maxLineBytes = 1 << 20

var attrPattern = regexp.MustCompile(`([A-Za-z0-9_-]+)="([^"]*)"`)

type parseConfig struct {
	streamInf bool
}

// ParseOption tunes Parse.
type ParseOption func(*parseConfig)

// WithStreamInf makes #EXT-X-STREAM-INF open a record the way #EXTINF does,
// so that the variant URIs of an HLS master playlist are returned as channels.
func WithStreamInf() ParseOption {
	return func(c *parseConfig) { c.streamInf = true }
}

// Parse reads an M3U playlist. An #EXTINF line opens a record named by the
// text after its last comma, and the next line that is neither blank nor a
// comment is that record's URL. A URL with no open record fails the whole parse.
func Parse(r io.Reader, opts ...ParseOption) (*model.Playlist, error) {
	var cfg parseConfig
	for _, o := range opts {
		o(&cfg)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	pl := &model.Playlist{}
	var open *model.Channel
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}

		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXTINF"):
			ch := parseExtinf(line)
			open = &ch
		case cfg.streamInf && strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			open = &model.Channel{}
		case strings.HasPrefix(line, "#"):
		default:
			if open == nil {
				return nil, fmt.Errorf("%w at line %d", ErrOrphanURL, lineNo)
			}
			open.URL = line
			pl.Channels = append(pl.Channels, *open)
			open = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan playlist: %w", err)
	}
	return pl, nil
}

// ParseString is Parse over an in-memory playlist.
func ParseString(content string, opts ...ParseOption) (*model.Playlist, error) {
	return Parse(strings.NewReader(content), opts...)
}

// parseExtinf reads the display name and the known attributes of an
// #EXTINF line. Attributes are only searched before the name.
// nameSeparator returns the index of the first comma outside a quoted
// attribute value, so display names may contain commas. Lines with an
// unbalanced quote fall back to the last comma.
func nameSeparator(line string) int {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return i
			}
		}
	}
	return strings.LastIndex(line, ",")
}

func parseExtinf(line string) model.Channel {
	var ch model.Channel
	attrs := line
	if idx := nameSeparator(line); idx != -1 {
		ch.Name = strings.TrimSpace(line[idx+1:])
		attrs = line[:idx]
	}

	for _, m := range attrPattern.FindAllStringSubmatch(attrs, -1) {
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "tvg-id":
			ch.ID = value
		case "tvg-logo":
			ch.LogoURL = value
		case "tvg-country":
			ch.Country = value
		case "group-title":
			ch.Group = value
		case "tvg-chno":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				ch.Number = n
			}
		case "provider-id":
			ch.ProviderID = value
		case "provider-name":
			ch.OriginalName = value
		}
	}
	return ch
}
