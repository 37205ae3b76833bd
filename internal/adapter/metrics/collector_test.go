package metrics

import (
	"errors"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/logger"
)

func TestCollector_CountsEvents(t *testing.T) {
	bus := eventbus.NewSyncEventBus()
	defer bus.Close()

	c := NewCollector(logger.NewTestLogger(), bus, false)
	defer c.Close()

	bus.Publish(domain.NewSongChangedEvent(0, 12, false))
	bus.Publish(domain.NewSongChangedEvent(12, 40, true))
	bus.Publish(domain.NewSongChangedEvent(40, 41, true))
	bus.Publish(domain.NewDeepDungeonModeEvent(true, "dd"))
	bus.Publish(domain.NewCatalogLoadedEvent(domain.CatalogSourceCache, 250))
	bus.Publish(domain.NewCatalogLoadFailedEvent(errors.New("offline")))
	bus.Publish(domain.NewPlaylistAdvancedEvent("night", 0, 12))
	bus.Publish(domain.NewPlaylistStoppedEvent("night"))
	bus.Publish(domain.NewReplacementChangedEvent(domain.ReplacementRule{TargetSongID: 5, ReplacementID: 7}, false))

	assert.InDelta(t, 1, promtest.ToFloat64(c.songChanges.WithLabelValues("ambient")), 0)
	assert.InDelta(t, 2, promtest.ToFloat64(c.songChanges.WithLabelValues("override")), 0)
	assert.InDelta(t, 41, promtest.ToFloat64(c.audibleSong), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(c.deepDungeon), 0)
	assert.InDelta(t, 250, promtest.ToFloat64(c.catalogSongs), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(c.catalogLoads.WithLabelValues("cache")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(c.catalogLoads.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(c.playlistAdvances), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(c.playlistStops), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(c.replacementChanges.WithLabelValues("set")), 0)

	bus.Publish(domain.NewDeepDungeonModeEvent(false, ""))
	assert.InDelta(t, 0, promtest.ToFloat64(c.deepDungeon), 0)
}

func TestCollector_Gatherer(t *testing.T) {
	bus := eventbus.NewSyncEventBus()
	defer bus.Close()

	c := NewCollector(logger.NewTestLogger(), bus, false)
	bus.Publish(domain.NewSongChangedEvent(0, 3, false))

	expected := `
# HELP orchestra_audible_song_id Song currently playing, 0 for none
# TYPE orchestra_audible_song_id gauge
orchestra_audible_song_id 3
`
	require.NoError(t, promtest.GatherAndCompare(c.Gatherer(), strings.NewReader(expected), "orchestra_audible_song_id"))

	c.Close()
	assert.False(t, bus.HasSubscribers(domain.EventSongChanged))
	bus.Publish(domain.NewSongChangedEvent(3, 9, false))
	assert.InDelta(t, 3, promtest.ToFloat64(c.audibleSong), 0)
}
