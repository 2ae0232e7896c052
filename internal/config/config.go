// SPDX-License-Identifier: MIT

// Package config loads the run configuration: defaults, then a strict YAML
// file, then M3UMERGE_* environment variables, then validation.
package config

import (
	"time"

	"github.com/ManuGH/m3umerge/internal/version"
)

// EnvPrefix prefixes every recognised environment variable.
const EnvPrefix = "M3UMERGE_"

// AppConfig is the effective configuration of one run.
type AppConfig struct {
	OutputPath       string
	CacheDir         string
	Catalog          string
	LookbackDays     int
	IncludeUnmatched bool
	EmitGuideTags    bool
	EmitProviderTags bool
	TTL              TTLConfig
	HTTP             HTTPConfig
	Checker          CheckerConfig
	Concurrency      ConcurrencyConfig
	LogLevel         string
	MetricsTextfile  string
	Version          string
}

// TTLConfig holds how long, in minutes, a persisted stream status of each
// state stays usable. Zero means never reused across runs.
type TTLConfig struct {
	AliveMinutes        int
	DeadMinutes         int
	UnauthorisedMinutes int
	NotFoundMinutes     int
}

// HTTPConfig tunes outbound requests.
type HTTPConfig struct {
	DownloadTimeout time.Duration
	ProbeTimeout    time.Duration
	UserAgent       string
	// ProbeRate is probes per second; 0 means unlimited.
	ProbeRate float64
}

// CheckerConfig tunes stream checks.
type CheckerConfig struct {
	MaxDepth int
	DenyList []string
	CDNHosts []string
}

// ConcurrencyConfig bounds the two fan-out phases.
type ConcurrencyConfig struct {
	Providers   int
	Definitions int
}

// Defaults returns the configuration used when nothing is set.
func Defaults() AppConfig {
	return AppConfig{
		OutputPath:    "playlist.m3u",
		CacheDir:      "cache",
		LookbackDays:  7,
		EmitGuideTags: true,
		TTL: TTLConfig{
			AliveMinutes:        360,
			DeadMinutes:         60,
			UnauthorisedMinutes: 1440,
			NotFoundMinutes:     1440,
		},
		HTTP: HTTPConfig{
			DownloadTimeout: 8 * time.Second,
			ProbeTimeout:    5 * time.Second,
			UserAgent:       "m3umerge/" + version.Version,
			ProbeRate:       20,
		},
		Checker:     CheckerConfig{MaxDepth: 3},
		Concurrency: ConcurrencyConfig{Providers: 4, Definitions: 16},
		LogLevel:    "info",
		Version:     version.Version,
	}
}

// FileConfig mirrors the YAML file. Pointers distinguish "absent" from zero.
type FileConfig struct {
	OutputPath       *string          `yaml:"output_path"`
	CacheDir         *string          `yaml:"cache_dir"`
	Catalog          *string          `yaml:"catalog"`
	LookbackDays     *int             `yaml:"lookback_days"`
	IncludeUnmatched *bool            `yaml:"include_unmatched"`
	EmitGuideTags    *bool            `yaml:"emit_guide_tags"`
	EmitProviderTags *bool            `yaml:"emit_provider_tags"`
	TTL              *fileTTL         `yaml:"ttl"`
	HTTP             *fileHTTP        `yaml:"http"`
	Checker          *fileChecker     `yaml:"checker"`
	Concurrency      *fileConcurrency `yaml:"concurrency"`
	LogLevel         *string          `yaml:"log_level"`
	MetricsTextfile  *string          `yaml:"metrics_textfile"`
}

type fileTTL struct {
	AliveMinutes        *int `yaml:"alive_minutes"`
	DeadMinutes         *int `yaml:"dead_minutes"`
	UnauthorisedMinutes *int `yaml:"unauthorised_minutes"`
	NotFoundMinutes     *int `yaml:"not_found_minutes"`
}

type fileHTTP struct {
	DownloadTimeout *time.Duration `yaml:"download_timeout"`
	ProbeTimeout    *time.Duration `yaml:"probe_timeout"`
	UserAgent       *string        `yaml:"user_agent"`
	ProbeRate       *float64       `yaml:"probe_rate"`
}

type fileChecker struct {
	MaxDepth *int     `yaml:"max_depth"`
	DenyList []string `yaml:"deny_list"`
	CDNHosts []string `yaml:"cdn_hosts"`
}

type fileConcurrency struct {
	Providers   *int `yaml:"providers"`
	Definitions *int `yaml:"definitions"`
}
