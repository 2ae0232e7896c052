// SPDX-License-Identifier: MIT

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FileSource is a catalog kept in one YAML document.
type FileSource struct {
	doc fileDocument
}

type fileDocument struct {
	Groups    []fileGroup    `yaml:"groups"`
	Providers []fileProvider `yaml:"providers"`
	Channels  []fileChannel  `yaml:"channels"`
}

type fileGroup struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
	Enabled  *bool  `yaml:"enabled"`
}

type fileProvider struct {
	ID           string `yaml:"id"`
	URL          string `yaml:"url"`
	Priority     int    `yaml:"priority"`
	Enabled      *bool  `yaml:"enabled"`
	AllowCaching bool   `yaml:"allow_caching"`
	Country      string `yaml:"country"`
	ChannelName  string `yaml:"channel_name"`
}

type fileChannel struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Country string   `yaml:"country"`
	Group   string   `yaml:"group"`
	Logo    string   `yaml:"logo"`
	Aliases []string `yaml:"aliases"`
	Enabled *bool    `yaml:"enabled"`
}

// OpenFile parses the YAML catalog at path. Unknown keys are rejected.
// Omitted "enabled" flags default to true.
func OpenFile(fs afero.Fs, path string) (*FileSource, error) {
	path = filepath.Clean(path)
	// #nosec G304 -- catalog paths are provided by the operator via CLI/ENV
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return &FileSource{doc: doc}, nil
}

func parseDocument(data []byte) (fileDocument, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return fileDocument{}, nil
		}
		return fileDocument{}, fmt.Errorf("strict parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fileDocument{}, errors.New("multiple documents or trailing content")
	}
	for i, c := range doc.Channels {
		if c.ID == "" || c.Name == "" {
			return fileDocument{}, fmt.Errorf("channels[%d]: id and name are required", i)
		}
	}
	for i, p := range doc.Providers {
		if p.ID == "" || p.URL == "" {
			return fileDocument{}, fmt.Errorf("providers[%d]: id and url are required", i)
		}
	}
	for i, g := range doc.Groups {
		if g.ID == "" {
			return fileDocument{}, fmt.Errorf("groups[%d]: id is required", i)
		}
	}
	return doc, nil
}

// Close implements io.Closer. The document is read at open time.
func (s *FileSource) Close() error { return nil }

func enabled(b *bool) bool {
	return b == nil || *b
}

// ChannelDefinitions implements Source.
func (s *FileSource) ChannelDefinitions(context.Context) ([]model.ChannelDefinition, error) {
	out := make([]model.ChannelDefinition, 0, len(s.doc.Channels))
	for _, c := range s.doc.Channels {
		out = append(out, model.ChannelDefinition{
			ID:      c.ID,
			Enabled: enabled(c.Enabled),
			Name:    c.Name,
			Country: c.Country,
			Aliases: append([]string(nil), c.Aliases...),
			GroupID: c.Group,
			LogoURL: c.Logo,
		})
	}
	return out, nil
}

// Groups implements Source.
func (s *FileSource) Groups(context.Context) ([]model.Group, error) {
	out := make([]model.Group, 0, len(s.doc.Groups))
	for _, g := range s.doc.Groups {
		out = append(out, model.Group{ID: g.ID, Name: g.Name, Priority: g.Priority, Enabled: enabled(g.Enabled)})
	}
	return out, nil
}

// Providers implements Source.
func (s *FileSource) Providers(context.Context) ([]model.Provider, error) {
	out := make([]model.Provider, 0, len(s.doc.Providers))
	for _, p := range s.doc.Providers {
		out = append(out, model.Provider{
			ID:           p.ID,
			Enabled:      enabled(p.Enabled),
			Priority:     p.Priority,
			URLTemplate:  p.URL,
			AllowCaching: p.AllowCaching,
			Country:      p.Country,
			ChannelName:  p.ChannelName,
		})
	}
	return out, nil
}
