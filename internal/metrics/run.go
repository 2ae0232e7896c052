// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors of a run. A run has no
// scrape endpoint; WriteTextfile hands the values to the node-exporter
// textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/ManuGH/m3umerge/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m3umerge_provider_fetch_total",
		Help: "Provider fetches by outcome",
	}, []string{"outcome"}) // outcome=fresh|snapshot|empty

	providerChannels = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "m3umerge_provider_channels",
		Help: "Channels contributed per provider (last run)",
	}, []string{"provider"})

	streamChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m3umerge_stream_checks_total",
		Help: "Recorded stream checks by resulting state",
	}, []string{"state"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m3umerge_cache_lookups_total",
		Help: "Cache lookups per store by result",
	}, []string{"store", "result"}) // result=hit|miss

	channelsEmitted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "m3umerge_channels_emitted",
		Help: "Channels written to the output playlist (last run)",
	}, []string{"kind"}) // kind=matched|unmatched

	runDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "m3umerge_run_duration_seconds",
		Help: "Wall time of the last run",
	})
	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "m3umerge_last_run_timestamp_seconds",
		Help: "Unix time the last successful run finished",
	})
)

// RecordProviderFetch records one provider's fetch outcome.
func RecordProviderFetch(provider, outcome string, channels int) {
	providerFetchTotal.WithLabelValues(outcome).Inc()
	providerChannels.WithLabelValues(provider).Set(float64(channels))
}

// RecordStreamCheck counts one recorded stream state.
func RecordStreamCheck(state string) {
	streamChecksTotal.WithLabelValues(state).Inc()
}

// RecordCacheStats adds a run's cache counters.
func RecordCacheStats(s cache.Stats) {
	for store, st := range map[string]cache.StoreStats{
		"names":     s.Names,
		"statuses":  s.Statuses,
		"downloads": s.Downloads,
		"parsed":    s.Parsed,
	} {
		cacheLookupsTotal.WithLabelValues(store, "hit").Add(float64(st.Hits))
		cacheLookupsTotal.WithLabelValues(store, "miss").Add(float64(st.Misses))
	}
	cacheLookupsTotal.WithLabelValues("snapshots", "hit").Add(float64(s.Snapshots.Hits))
	cacheLookupsTotal.WithLabelValues("snapshots", "miss").Add(float64(s.Snapshots.Reads - s.Snapshots.Hits))
}

// RecordChannelsEmitted records the output playlist composition.
func RecordChannelsEmitted(matched, unmatched int) {
	channelsEmitted.WithLabelValues("matched").Set(float64(matched))
	channelsEmitted.WithLabelValues("unmatched").Set(float64(unmatched))
}

// RecordRun records a finished run.
func RecordRun(d time.Duration, finished time.Time) {
	runDuration.Set(d.Seconds())
	lastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes every registered metric to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
