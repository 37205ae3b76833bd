package service

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// PlaylistSequencer walks one playlist at a time, honoring its shuffle and
// repeat modes. It only decides which song comes next; callers hand the song
// to the arbiter.
//
// Shuffle permutes the traversal order, never the stored order. The order is
// computed once at Start and recomputed only when RepeatAll wraps or shuffle
// is switched on.
type PlaylistSequencer struct {
	// Dependencies (injected)
	logger *slog.Logger
	bus    ports.EventBus

	// State
	playlist  *domain.Playlist
	order     []int // storage indices in traversal order
	pos       int   // position in order, -1 when idle
	startedAt time.Time

	rng *rand.Rand
	now func() time.Time

	// Concurrency control
	mu sync.Mutex
}

// NewPlaylistSequencer creates an idle sequencer. rng may be nil.
func NewPlaylistSequencer(logger *slog.Logger, bus ports.EventBus, rng *rand.Rand) *PlaylistSequencer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &PlaylistSequencer{
		logger: logger.With(slog.String("service", "sequencer")),
		bus:    bus,
		pos:    -1,
		rng:    rng,
		now:    time.Now,
	}
}

// StartAuto lets Start choose the first index: 0, or a random one when shuffled.
const StartAuto = -1

// Start begins the playlist at storage index from and returns the song there.
func (s *PlaylistSequencer) Start(playlist domain.Playlist, from int) (songID, index int, err error) {
	if len(playlist.Songs) == 0 {
		return 0, -1, domain.ErrPlaylistEmpty
	}

	s.mu.Lock()
	if from == StartAuto {
		from = 0
		if playlist.ShuffleMode == domain.ShuffleOn {
			from = s.rng.IntN(len(playlist.Songs))
		}
	}
	if from < 0 || from >= len(playlist.Songs) {
		s.mu.Unlock()
		return 0, -1, domain.ErrInvalidIndex
	}

	p := playlist
	p.Songs = append([]int(nil), playlist.Songs...)
	s.playlist = &p
	if p.ShuffleMode == domain.ShuffleOn {
		s.order = s.shuffledOrder(from)
		s.pos = 0
	} else {
		s.order = identityOrder(len(p.Songs))
		s.pos = from
	}
	songID, index = s.current()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.logger.Debug("playlist started",
		slog.String("playlist", p.Name),
		slog.Int("index", index),
		slog.String("shuffle", p.ShuffleMode.String()),
		slog.String("repeat", p.RepeatMode.String()))
	s.bus.Publish(domain.NewPlaylistAdvancedEvent(p.Name, index, songID))
	return songID, index, nil
}

// Next advances to the following song. ok is false when the sequencer is or
// becomes idle.
func (s *PlaylistSequencer) Next() (songID, index int, ok bool) {
	return s.step(1, s.now())
}

// Previous steps back one song. ok is false when the sequencer is idle.
func (s *PlaylistSequencer) Previous() (songID, index int, ok bool) {
	return s.step(-1, s.now())
}

// Tick advances to the next song once the current one has played for its
// duration. A zero duration never advances.
func (s *PlaylistSequencer) Tick(now time.Time, duration time.Duration) (songID, index int, ok bool) {
	s.mu.Lock()
	due := s.pos >= 0 && duration > 0 && now.Sub(s.startedAt) >= duration
	s.mu.Unlock()

	if !due {
		return 0, -1, false
	}
	return s.step(1, now)
}

func (s *PlaylistSequencer) step(dir int, now time.Time) (songID, index int, ok bool) {
	s.mu.Lock()
	if s.pos < 0 {
		s.mu.Unlock()
		return 0, -1, false
	}

	name := s.playlist.Name
	n := len(s.order)

	switch s.playlist.RepeatMode {
	case domain.RepeatOne:
		// replay the same index in both directions
	case domain.RepeatOnce:
		if dir > 0 && s.pos+1 >= n {
			s.reset()
			s.mu.Unlock()
			s.logger.Debug("playlist finished", slog.String("playlist", name))
			s.bus.Publish(domain.NewPlaylistStoppedEvent(name))
			return 0, -1, false
		}
		s.pos = max(s.pos+dir, 0)
	default:
		switch {
		case dir > 0 && s.pos+1 >= n:
			if s.playlist.ShuffleMode == domain.ShuffleOn {
				s.order = s.reshuffledOrder(s.order[s.pos])
			}
			s.pos = 0
		case dir < 0 && s.pos == 0:
			s.pos = n - 1
		default:
			s.pos += dir
		}
	}

	songID, index = s.current()
	s.startedAt = now
	s.mu.Unlock()

	s.bus.Publish(domain.NewPlaylistAdvancedEvent(name, index, songID))
	return songID, index, true
}

// Stop returns the sequencer to idle. Stopping an idle sequencer is a no-op.
func (s *PlaylistSequencer) Stop() {
	s.mu.Lock()
	if s.pos < 0 {
		s.mu.Unlock()
		return
	}
	name := s.playlist.Name
	s.reset()
	s.mu.Unlock()

	s.bus.Publish(domain.NewPlaylistStoppedEvent(name))
}

// SetShuffle changes the shuffle mode of the active playlist and returns the
// updated playlist for persisting.
func (s *PlaylistSequencer) SetShuffle(mode domain.ShuffleMode) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos < 0 {
		return domain.Playlist{}, domain.ErrNoPlaylistPlaying
	}
	s.setShuffle(mode)
	return s.snapshot(), nil
}

// SetRepeat changes the repeat mode of the active playlist and returns the
// updated playlist for persisting.
func (s *PlaylistSequencer) SetRepeat(mode domain.RepeatMode) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos < 0 {
		return domain.Playlist{}, domain.ErrNoPlaylistPlaying
	}
	s.playlist.RepeatMode = mode
	return s.snapshot(), nil
}

// SetModes changes both modes of the active playlist in one step.
func (s *PlaylistSequencer) SetModes(shuffle domain.ShuffleMode, repeat domain.RepeatMode) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos < 0 {
		return domain.Playlist{}, domain.ErrNoPlaylistPlaying
	}
	s.setShuffle(shuffle)
	s.playlist.RepeatMode = repeat
	return s.snapshot(), nil
}

// setShuffle must be called with lock held on an active playlist.
func (s *PlaylistSequencer) setShuffle(mode domain.ShuffleMode) {
	if s.playlist.ShuffleMode == mode {
		return
	}
	cur := s.order[s.pos]
	s.playlist.ShuffleMode = mode
	if mode == domain.ShuffleOn {
		s.order = s.shuffledOrder(cur)
		s.pos = 0
	} else {
		s.order = identityOrder(len(s.playlist.Songs))
		s.pos = cur
	}
}

// IsPlaying reports whether a playlist is active.
func (s *PlaylistSequencer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos >= 0
}

// CurrentIndex returns the storage index of the current song, or -1 when idle.
func (s *PlaylistSequencer) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < 0 {
		return -1
	}
	return s.order[s.pos]
}

// CurrentSongID returns the current song, or 0 when idle.
func (s *PlaylistSequencer) CurrentSongID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < 0 {
		return 0
	}
	id, _ := s.current()
	return id
}

// Len returns the number of songs in the active playlist, or 0 when idle.
func (s *PlaylistSequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < 0 {
		return 0
	}
	return len(s.order)
}

// CurrentPlaylistName returns the active playlist name, or "" when idle.
func (s *PlaylistSequencer) CurrentPlaylistName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < 0 {
		return ""
	}
	return s.playlist.Name
}

// current must be called with lock held and pos >= 0.
func (s *PlaylistSequencer) current() (songID, index int) {
	index = s.order[s.pos]
	return s.playlist.Songs[index], index
}

// reset must be called with lock held.
func (s *PlaylistSequencer) reset() {
	s.playlist = nil
	s.order = nil
	s.pos = -1
}

// snapshot must be called with lock held.
func (s *PlaylistSequencer) snapshot() domain.Playlist {
	p := *s.playlist
	p.Songs = append([]int(nil), s.playlist.Songs...)
	return p
}

// shuffledOrder returns a permutation of all indices with first in front.
func (s *PlaylistSequencer) shuffledOrder(first int) []int {
	order := s.rng.Perm(len(s.playlist.Songs))
	for i, idx := range order {
		if idx == first {
			order[0], order[i] = order[i], order[0]
			break
		}
	}
	return order
}

// reshuffledOrder returns a fresh permutation for a wrap, avoiding an
// immediate repeat of last when there is a choice.
func (s *PlaylistSequencer) reshuffledOrder(last int) []int {
	order := s.rng.Perm(len(s.playlist.Songs))
	if len(order) > 1 && order[0] == last {
		j := 1 + s.rng.IntN(len(order)-1)
		order[0], order[j] = order[j], order[0]
	}
	return order
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
