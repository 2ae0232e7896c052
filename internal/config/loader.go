// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader for the YAML file at configPath; an empty path
// skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) env(name string) string {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

// Load returns the effective configuration: defaults < file < environment.
// The result is validated; invalid configuration wraps ErrInvalid.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	if l.version != "" {
		cfg.Version = l.version
		cfg.HTTP.UserAgent = "m3umerge/" + l.version
	}

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return AppConfig{}, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	l.mergeEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields are rejected to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func mergeFile(cfg *AppConfig, f *FileConfig) {
	set(&cfg.OutputPath, f.OutputPath)
	set(&cfg.CacheDir, f.CacheDir)
	set(&cfg.Catalog, f.Catalog)
	set(&cfg.LookbackDays, f.LookbackDays)
	set(&cfg.IncludeUnmatched, f.IncludeUnmatched)
	set(&cfg.EmitGuideTags, f.EmitGuideTags)
	set(&cfg.EmitProviderTags, f.EmitProviderTags)
	set(&cfg.LogLevel, f.LogLevel)
	set(&cfg.MetricsTextfile, f.MetricsTextfile)

	if t := f.TTL; t != nil {
		set(&cfg.TTL.AliveMinutes, t.AliveMinutes)
		set(&cfg.TTL.DeadMinutes, t.DeadMinutes)
		set(&cfg.TTL.UnauthorisedMinutes, t.UnauthorisedMinutes)
		set(&cfg.TTL.NotFoundMinutes, t.NotFoundMinutes)
	}
	if h := f.HTTP; h != nil {
		set(&cfg.HTTP.DownloadTimeout, h.DownloadTimeout)
		set(&cfg.HTTP.ProbeTimeout, h.ProbeTimeout)
		set(&cfg.HTTP.UserAgent, h.UserAgent)
		set(&cfg.HTTP.ProbeRate, h.ProbeRate)
	}
	if c := f.Checker; c != nil {
		set(&cfg.Checker.MaxDepth, c.MaxDepth)
		if c.DenyList != nil {
			cfg.Checker.DenyList = c.DenyList
		}
		if c.CDNHosts != nil {
			cfg.Checker.CDNHosts = c.CDNHosts
		}
	}
	if c := f.Concurrency; c != nil {
		set(&cfg.Concurrency.Providers, c.Providers)
		set(&cfg.Concurrency.Definitions, c.Definitions)
	}
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.OutputPath = ParseString(l.env("OUTPUT_PATH"), cfg.OutputPath)
	cfg.CacheDir = ParseString(l.env("CACHE_DIR"), cfg.CacheDir)
	cfg.Catalog = ParseString(l.env("CATALOG"), cfg.Catalog)
	cfg.LookbackDays = ParseInt(l.env("LOOKBACK_DAYS"), cfg.LookbackDays)
	cfg.IncludeUnmatched = ParseBool(l.env("INCLUDE_UNMATCHED"), cfg.IncludeUnmatched)
	cfg.EmitGuideTags = ParseBool(l.env("EMIT_GUIDE_TAGS"), cfg.EmitGuideTags)
	cfg.EmitProviderTags = ParseBool(l.env("EMIT_PROVIDER_TAGS"), cfg.EmitProviderTags)

	cfg.TTL.AliveMinutes = ParseInt(l.env("TTL_ALIVE_MINUTES"), cfg.TTL.AliveMinutes)
	cfg.TTL.DeadMinutes = ParseInt(l.env("TTL_DEAD_MINUTES"), cfg.TTL.DeadMinutes)
	cfg.TTL.UnauthorisedMinutes = ParseInt(l.env("TTL_UNAUTHORISED_MINUTES"), cfg.TTL.UnauthorisedMinutes)
	cfg.TTL.NotFoundMinutes = ParseInt(l.env("TTL_NOT_FOUND_MINUTES"), cfg.TTL.NotFoundMinutes)

	cfg.HTTP.DownloadTimeout = ParseDuration(l.env("DOWNLOAD_TIMEOUT"), cfg.HTTP.DownloadTimeout)
	cfg.HTTP.ProbeTimeout = ParseDuration(l.env("PROBE_TIMEOUT"), cfg.HTTP.ProbeTimeout)
	cfg.HTTP.UserAgent = ParseString(l.env("USER_AGENT"), cfg.HTTP.UserAgent)
	cfg.HTTP.ProbeRate = ParseFloat(l.env("PROBE_RATE"), cfg.HTTP.ProbeRate)

	cfg.Checker.MaxDepth = ParseInt(l.env("CHECK_MAX_DEPTH"), cfg.Checker.MaxDepth)
	cfg.Checker.DenyList = ParseList(l.env("DENY_LIST"), cfg.Checker.DenyList)
	cfg.Checker.CDNHosts = ParseList(l.env("CDN_HOSTS"), cfg.Checker.CDNHosts)

	cfg.Concurrency.Providers = ParseInt(l.env("PROVIDER_CONCURRENCY"), cfg.Concurrency.Providers)
	cfg.Concurrency.Definitions = ParseInt(l.env("MATCH_CONCURRENCY"), cfg.Concurrency.Definitions)

	cfg.LogLevel = ParseString(l.env("LOG_LEVEL"), cfg.LogLevel)
	cfg.MetricsTextfile = ParseString(l.env("METRICS_TEXTFILE"), cfg.MetricsTextfile)
}

// TTLs returns the per-state TTLs as durations, in Alive, Dead,
// Unauthorised, NotFound order.
func (t TTLConfig) TTLs() (alive, dead, unauthorised, notFound time.Duration) {
	return time.Duration(t.AliveMinutes) * time.Minute,
		time.Duration(t.DeadMinutes) * time.Minute,
		time.Duration(t.UnauthorisedMinutes) * time.Minute,
		time.Duration(t.NotFoundMinutes) * time.Minute
}
