// Package metrics turns bus events into Prometheus metrics.
package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// Collector owns a registry and keeps it current from the event bus.
type Collector struct {
	logger   *slog.Logger
	bus      ports.EventBus
	registry *prometheus.Registry
	sub      domain.SubscriptionID

	songChanges        *prometheus.CounterVec
	audibleSong        prometheus.Gauge
	deepDungeon        prometheus.Gauge
	catalogSongs       prometheus.Gauge
	catalogLoads       *prometheus.CounterVec
	playlistAdvances   prometheus.Counter
	playlistStops      prometheus.Counter
	replacementChanges *prometheus.CounterVec
}

// NewCollector registers the orchestra metrics on a fresh registry and
// subscribes to every event on bus. withRuntime adds the Go and process collectors.
func NewCollector(logger *slog.Logger, bus ports.EventBus, withRuntime bool) *Collector {
	c := &Collector{
		logger:   logger.With(slog.String("component", "metrics")),
		bus:      bus,
		registry: prometheus.NewRegistry(),

		songChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "orchestra_song_changes_total", Help: "Song changes by source"},
			[]string{"source"},
		),
		audibleSong: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "orchestra_audible_song_id", Help: "Song currently playing, 0 for none"},
		),
		deepDungeon: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "orchestra_deep_dungeon_mode", Help: "1 while Deep Dungeon mode is on"},
		),
		catalogSongs: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "orchestra_catalog_songs", Help: "Songs in the loaded catalog"},
		),
		catalogLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "orchestra_catalog_loads_total", Help: "Catalog loads by result"},
			[]string{"result"},
		),
		playlistAdvances: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "orchestra_playlist_advances_total", Help: "Songs started by the playlist sequencer"},
		),
		playlistStops: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "orchestra_playlist_stops_total", Help: "Playlists that stopped"},
		),
		replacementChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "orchestra_replacement_changes_total", Help: "Replacement rule edits"},
			[]string{"op"},
		),
	}

	c.registry.MustRegister(
		c.songChanges, c.audibleSong, c.deepDungeon, c.catalogSongs,
		c.catalogLoads, c.playlistAdvances, c.playlistStops, c.replacementChanges,
	)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c.sub = bus.SubscribeAll(c.handle)
	return c
}

// Gatherer returns the registry for the /metrics endpoint.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Close stops collecting.
func (c *Collector) Close() {
	c.bus.Unsubscribe(c.sub)
}

func (c *Collector) handle(event domain.Event) {
	switch ev := event.(type) {
	case domain.SongChangedEvent:
		source := "ambient"
		if ev.PlayedByOverride {
			source = "override"
		}
		c.songChanges.WithLabelValues(source).Inc()
		c.audibleSong.Set(float64(ev.New))

	case domain.DeepDungeonModeEvent:
		if ev.Enabled {
			c.deepDungeon.Set(1)
		} else {
			c.deepDungeon.Set(0)
		}

	case domain.CatalogLoadedEvent:
		c.catalogSongs.Set(float64(ev.Songs))
		c.catalogLoads.WithLabelValues(string(ev.Source)).Inc()

	case domain.CatalogLoadFailedEvent:
		c.catalogLoads.WithLabelValues("failed").Inc()

	case domain.PlaylistAdvancedEvent:
		c.playlistAdvances.Inc()

	case domain.PlaylistStoppedEvent:
		c.playlistStops.Inc()

	case domain.ReplacementChangedEvent:
		op := "set"
		if ev.Removed {
			op = "removed"
		}
		c.replacementChanges.WithLabelValues(op).Inc()
		c.logger.Debug("replacement metric",
			slog.String("op", op),
			slog.Int("target", ev.Rule.TargetSongID))
	}
}
