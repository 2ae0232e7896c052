// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxTimeout keeps per-call timeouts in single-digit seconds.
const maxTimeout = 10 * time.Second

var allowedPlaylistExt = map[string]struct{}{
	".m3u":  {},
	".m3u8": {},
}

// Concurrency bounds.
const (
	maxProviderConcurrency   = 32
	maxDefinitionConcurrency = 128
)

// Validate checks cfg and clamps the concurrency limits into range. All
// problems are reported together, wrapped in ErrInvalid.
func Validate(cfg *AppConfig) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(cfg.Catalog) == "" {
		addf("catalog must be set")
	}
	if out := strings.TrimSpace(cfg.OutputPath); out == "" {
		addf("output_path must not be empty")
	} else if _, ok := allowedPlaylistExt[strings.ToLower(filepath.Ext(out))]; !ok {
		addf("output_path must end with .m3u or .m3u8: %s", out)
	}
	if cfg.LookbackDays < 0 {
		addf("lookback_days must be >= 0, got %d", cfg.LookbackDays)
	}
	for name, v := range map[string]int{
		"ttl.alive_minutes":        cfg.TTL.AliveMinutes,
		"ttl.dead_minutes":         cfg.TTL.DeadMinutes,
		"ttl.unauthorised_minutes": cfg.TTL.UnauthorisedMinutes,
		"ttl.not_found_minutes":    cfg.TTL.NotFoundMinutes,
	} {
		if v < 0 {
			addf("%s must be >= 0, got %d", name, v)
		}
	}
	for name, d := range map[string]time.Duration{
		"http.download_timeout": cfg.HTTP.DownloadTimeout,
		"http.probe_timeout":    cfg.HTTP.ProbeTimeout,
	} {
		if d <= 0 || d >= maxTimeout {
			addf("%s must be between 0 and %s, got %s", name, maxTimeout, d)
		}
	}
	if cfg.HTTP.ProbeRate < 0 {
		addf("http.probe_rate must be >= 0, got %g", cfg.HTTP.ProbeRate)
	}
	if cfg.Checker.MaxDepth < 1 {
		addf("checker.max_depth must be >= 1, got %d", cfg.Checker.MaxDepth)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		addf("log_level %q is not a level", cfg.LogLevel)
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	cfg.Concurrency.Providers = clampConcurrency(cfg.Concurrency.Providers, 4, maxProviderConcurrency)
	cfg.Concurrency.Definitions = clampConcurrency(cfg.Concurrency.Definitions, 16, maxDefinitionConcurrency)
	return nil
}

// clampConcurrency ensures concurrency is within sane bounds [1, maxVal].
func clampConcurrency(value, defaultValue, maxVal int) int {
	if value < 1 {
		if defaultValue < 1 {
			return 1
		}
		return defaultValue
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
