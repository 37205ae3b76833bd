package service

import (
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/logger"
)

// Helper to create a sequencer with a fixed clock
func newTestSequencer(t *testing.T) (*PlaylistSequencer, *eventbus.SyncEventBus, *time.Time) {
	t.Helper()
	bus := eventbus.NewSyncEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	seq := NewPlaylistSequencer(logger.NewTestLogger(), bus, rand.New(rand.NewPCG(11, 12)))
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seq.now = func() time.Time { return clock }
	return seq, bus, &clock
}

func playlistOf(name string, shuffle domain.ShuffleMode, repeat domain.RepeatMode, ids ...int) domain.Playlist {
	return domain.Playlist{Name: name, Songs: ids, ShuffleMode: shuffle, RepeatMode: repeat}
}

func TestPlaylistSequencer_StartValidation(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	_, _, err := seq.Start(playlistOf("empty", domain.ShuffleOff, domain.RepeatAll), 0)
	assert.ErrorIs(t, err, domain.ErrPlaylistEmpty)

	_, _, err = seq.Start(playlistOf("p", domain.ShuffleOff, domain.RepeatAll, 1, 2), 2)
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)

	_, _, err = seq.Start(playlistOf("p", domain.ShuffleOff, domain.RepeatAll, 1, 2), -5)
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)

	assert.False(t, seq.IsPlaying())
	assert.Equal(t, -1, seq.CurrentIndex())
	assert.Zero(t, seq.CurrentSongID())
}

func TestPlaylistSequencer_RepeatAllWraps(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	id, idx, err := seq.Start(playlistOf("p", domain.ShuffleOff, domain.RepeatAll, 10, 20, 30), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, id)
	assert.Equal(t, 0, idx)

	var indices []int
	for i := 0; i < 4; i++ {
		_, idx, ok := seq.Next()
		require.True(t, ok)
		indices = append(indices, idx)
	}
	assert.Equal(t, []int{1, 2, 0, 1}, indices)

	seq.Previous()
	_, idx, ok := seq.Previous()
	require.True(t, ok)
	assert.Equal(t, 2, idx, "previous from the first song wraps to the last")
	assert.Equal(t, 30, seq.CurrentSongID())
}

func TestPlaylistSequencer_RepeatOnceStopsAtEnd(t *testing.T) {
	seq, bus, _ := newTestSequencer(t)

	var stopped []string
	bus.Subscribe(domain.EventPlaylistStopped, func(e domain.Event) {
		stopped = append(stopped, e.(domain.PlaylistStoppedEvent).Playlist)
	})

	_, _, err := seq.Start(playlistOf("once", domain.ShuffleOff, domain.RepeatOnce, 1, 2, 3), 0)
	require.NoError(t, err)

	_, idx, ok := seq.Previous()
	require.True(t, ok)
	assert.Equal(t, 0, idx, "previous clamps at the first song")

	seq.Next()
	_, idx, ok = seq.Next()
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	id, idx, ok := seq.Next()
	assert.False(t, ok)
	assert.Zero(t, id)
	assert.Equal(t, -1, idx)
	assert.False(t, seq.IsPlaying())
	assert.Equal(t, []string{"once"}, stopped)
}

func TestPlaylistSequencer_RepeatOneReplays(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	_, _, err := seq.Start(playlistOf("one", domain.ShuffleOff, domain.RepeatOne, 4, 5, 6), 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		id, idx, ok := seq.Next()
		require.True(t, ok)
		assert.Equal(t, 1, idx)
		assert.Equal(t, 5, id)
	}
	_, idx, ok := seq.Previous()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestPlaylistSequencer_ShuffleVisitsEverySongOncePerPass(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	songs := []int{100, 101, 102, 103, 104, 105}
	_, first, err := seq.Start(playlistOf("shuffled", domain.ShuffleOn, domain.RepeatAll, songs...), StartAuto)
	require.NoError(t, err)

	visited := []int{first}
	for i := 1; i < len(songs); i++ {
		_, idx, ok := seq.Next()
		require.True(t, ok)
		visited = append(visited, idx)
	}

	sorted := append([]int(nil), visited...)
	sort.Ints(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, sorted)

	// wrapping reshuffles without repeating the last song immediately
	_, idx, ok := seq.Next()
	require.True(t, ok)
	assert.NotEqual(t, visited[len(visited)-1], idx)
}

func TestPlaylistSequencer_ShuffleStartsAtRequestedIndex(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	id, idx, err := seq.Start(playlistOf("p", domain.ShuffleOn, domain.RepeatAll, 7, 8, 9, 10), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 9, id)
}

func TestPlaylistSequencer_StartCopiesSongs(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	p := playlistOf("p", domain.ShuffleOff, domain.RepeatAll, 1, 2, 3)
	_, _, err := seq.Start(p, 0)
	require.NoError(t, err)

	p.Songs[1] = 99
	id, _, _ := seq.Next()
	assert.Equal(t, 2, id)
}

func TestPlaylistSequencer_TickAdvancesAfterDuration(t *testing.T) {
	seq, _, clock := newTestSequencer(t)

	_, _, err := seq.Start(playlistOf("p", domain.ShuffleOff, domain.RepeatAll, 1, 2), 0)
	require.NoError(t, err)

	_, _, ok := seq.Tick(clock.Add(59*time.Second), time.Minute)
	assert.False(t, ok)

	_, _, ok = seq.Tick(clock.Add(time.Hour), 0)
	assert.False(t, ok, "unknown duration never advances")

	id, idx, ok := seq.Tick(clock.Add(time.Minute), time.Minute)
	require.True(t, ok)
	assert.Equal(t, 2, id)
	assert.Equal(t, 1, idx)

	// the clock restarts at the advance
	_, _, ok = seq.Tick(clock.Add(90*time.Second), time.Minute)
	assert.False(t, ok)
	_, idx, ok = seq.Tick(clock.Add(2*time.Minute), time.Minute)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestPlaylistSequencer_ModeChanges(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	_, err := seq.SetShuffle(domain.ShuffleOn)
	assert.ErrorIs(t, err, domain.ErrNoPlaylistPlaying)
	_, err = seq.SetRepeat(domain.RepeatOne)
	assert.ErrorIs(t, err, domain.ErrNoPlaylistPlaying)

	_, _, err = seq.Start(playlistOf("p", domain.ShuffleOff, domain.RepeatAll, 1, 2, 3, 4), 2)
	require.NoError(t, err)

	p, err := seq.SetShuffle(domain.ShuffleOn)
	require.NoError(t, err)
	assert.Equal(t, domain.ShuffleOn, p.ShuffleMode)
	assert.Equal(t, []int{1, 2, 3, 4}, p.Songs, "stored order is untouched")
	assert.Equal(t, 2, seq.CurrentIndex())

	p, err = seq.SetShuffle(domain.ShuffleOff)
	require.NoError(t, err)
	assert.Equal(t, domain.ShuffleOff, p.ShuffleMode)
	assert.Equal(t, 2, seq.CurrentIndex())
	_, idx, _ := seq.Next()
	assert.Equal(t, 3, idx)

	p, err = seq.SetRepeat(domain.RepeatOnce)
	require.NoError(t, err)
	assert.Equal(t, domain.RepeatOnce, p.RepeatMode)
	_, _, ok := seq.Next()
	assert.False(t, ok)
}

func TestPlaylistSequencer_SetModes(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	_, err := seq.SetModes(domain.ShuffleOn, domain.RepeatAll)
	assert.ErrorIs(t, err, domain.ErrNoPlaylistPlaying)

	_, _, err = seq.Start(playlistOf("p", domain.ShuffleOff, domain.RepeatOnce, 1, 2, 3), 1)
	require.NoError(t, err)

	p, err := seq.SetModes(domain.ShuffleOn, domain.RepeatAll)
	require.NoError(t, err)
	assert.Equal(t, domain.ShuffleOn, p.ShuffleMode)
	assert.Equal(t, domain.RepeatAll, p.RepeatMode)
	assert.Equal(t, 1, seq.CurrentIndex(), "the current song keeps playing")

	p, err = seq.SetModes(domain.ShuffleOff, domain.RepeatOne)
	require.NoError(t, err)
	assert.Equal(t, domain.ShuffleOff, p.ShuffleMode)
	assert.Equal(t, domain.RepeatOne, p.RepeatMode)
	assert.Equal(t, 1, seq.CurrentIndex())
	_, idx, ok := seq.Next()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestPlaylistSequencer_StopIdleIsNoop(t *testing.T) {
	seq, bus, _ := newTestSequencer(t)

	var stops int
	bus.Subscribe(domain.EventPlaylistStopped, func(domain.Event) { stops++ })

	seq.Stop()
	assert.Zero(t, stops)

	_, _, err := seq.Start(playlistOf("p", domain.ShuffleOff, domain.RepeatAll, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, "p", seq.CurrentPlaylistName())
	assert.Equal(t, 1, seq.Len())

	seq.Stop()
	seq.Stop()
	assert.Equal(t, 1, stops)
	assert.Empty(t, seq.CurrentPlaylistName())
	assert.Zero(t, seq.Len())

	_, _, ok := seq.Next()
	assert.False(t, ok)
}
