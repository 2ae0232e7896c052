// SPDX-License-Identifier: MIT

package model

// Channel is a single playlist entry, either as read from a provider feed or
// as emitted by the aggregator.
type Channel struct {
	Name         string
	Country      string
	URL          string
	ProviderID   string
	OriginalName string

	// Catalog-derived fields, filled for aggregated output.
	ID      string
	LogoURL string
	Group   string

	// Number is the display sequence number. Zero means unassigned.
	Number int
}

// Playlist is an ordered channel list.
type Playlist struct {
	Channels []Channel
}

// IsEmpty reports whether the playlist has no channels. A nil playlist is empty.
func (p *Playlist) IsEmpty() bool {
	return p == nil || len(p.Channels) == 0
}

// Len returns the number of channels.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Channels)
}
