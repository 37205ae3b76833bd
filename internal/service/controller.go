package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// Controller is the command boundary. It validates user input against the
// catalog and saved playlists before anything reaches the arbiter or the
// sequencer, so the state machine only ever sees known songs.
type Controller struct {
	// Dependencies (injected)
	logger    *slog.Logger
	catalog   *SongCatalog
	rules     *ReplacementTable
	sequencer *PlaylistSequencer
	arbiter   *PlaybackArbiter
	playlists ports.PlaylistRepository
	prefs     *PreferenceService

	// languages is the name search order
	languages []string
}

// NewController creates a controller over the given services.
func NewController(
	logger *slog.Logger,
	catalog *SongCatalog,
	rules *ReplacementTable,
	sequencer *PlaylistSequencer,
	arbiter *PlaybackArbiter,
	playlists ports.PlaylistRepository,
	prefs *PreferenceService,
	languages []string,
) *Controller {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Controller{
		logger:    logger.With(slog.String("service", "controller")),
		catalog:   catalog,
		rules:     rules,
		sequencer: sequencer,
		arbiter:   arbiter,
		playlists: playlists,
		prefs:     prefs,
		languages: languages,
	}
}

// PlaySong plays a song by id. A manual play ends any running playlist.
func (c *Controller) PlaySong(id int) error {
	if !c.catalog.Exists(id) {
		return fmt.Errorf("%w: %d", domain.ErrSongNotFound, id)
	}
	c.sequencer.Stop()
	c.arbiter.Play(id)
	return nil
}

// PlaySongByName plays the first song whose name matches in any language.
func (c *Controller) PlaySongByName(name string) (int, error) {
	id, ok := c.catalog.FindByName(name, c.languages)
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrSongNotFound, name)
	}
	return id, c.PlaySong(id)
}

// Stop ends the playlist, Deep Dungeon mode and the manual override.
func (c *Controller) Stop() {
	c.sequencer.Stop()
	c.arbiter.StopDeepDungeonMode()
	c.arbiter.Stop()
}

// PlayRandom plays a random song, from the named playlist when given.
func (c *Controller) PlayRandom(playlist string) error {
	var scope []int
	if playlist != "" {
		p, err := c.loadPlaylist(playlist)
		if err != nil {
			return err
		}
		scope = append([]int{}, p.Songs...)
	}

	if err := c.arbiter.PlayRandom(scope); err != nil {
		return err
	}
	c.sequencer.Stop()
	return nil
}

// PlayPlaylist starts the named playlist with its saved modes.
func (c *Controller) PlayPlaylist(name string) error {
	p, err := c.loadPlaylist(name)
	if err != nil {
		return err
	}

	id, _, err := c.sequencer.Start(*p, StartAuto)
	if err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	if c.catalog.Exists(id) {
		c.arbiter.Play(id)
		return nil
	}
	return c.advance(c.sequencer.Next)
}

// ShufflePlaylist saves the playlist as shuffled with repeat all, then plays it.
func (c *Controller) ShufflePlaylist(name string) error {
	return c.playWithModes(name, domain.ShuffleOn, domain.RepeatAll)
}

// RepeatPlaylist saves the playlist as in order with repeat all, then plays it.
func (c *Controller) RepeatPlaylist(name string) error {
	return c.playWithModes(name, domain.ShuffleOff, domain.RepeatAll)
}

func (c *Controller) playWithModes(name string, shuffle domain.ShuffleMode, repeat domain.RepeatMode) error {
	p, err := c.loadPlaylist(name)
	if err != nil {
		return err
	}
	p.ShuffleMode = shuffle
	p.RepeatMode = repeat
	if err := c.playlists.Save(p); err != nil {
		c.logger.Warn("failed to save playlist modes", slog.String("playlist", name), slog.Any("error", err))
	}
	return c.PlayPlaylist(name)
}

// SetShuffle changes the shuffle mode of the running playlist. Turning
// shuffle on also sets repeat to All.
func (c *Controller) SetShuffle(token string) error {
	mode, err := domain.ParseShuffleMode(token)
	if err != nil {
		return err
	}

	var p domain.Playlist
	if mode == domain.ShuffleOn {
		p, err = c.sequencer.SetModes(mode, domain.RepeatAll)
	} else {
		p, err = c.sequencer.SetShuffle(mode)
	}
	if err != nil {
		return err
	}
	c.savePlaylist(p)
	return nil
}

// SetRepeat changes the repeat mode of the running playlist and turns
// shuffle off.
func (c *Controller) SetRepeat(token string) error {
	mode, err := domain.ParseRepeatMode(token)
	if err != nil {
		return err
	}
	p, err := c.sequencer.SetModes(domain.ShuffleOff, mode)
	if err != nil {
		return err
	}
	c.savePlaylist(p)
	return nil
}

// Next plays the next song of the running playlist.
func (c *Controller) Next() error {
	if !c.sequencer.IsPlaying() {
		return domain.ErrNoPlaylistPlaying
	}
	return c.advance(c.sequencer.Next)
}

// Previous plays the previous song of the running playlist.
func (c *Controller) Previous() error {
	if !c.sequencer.IsPlaying() {
		return domain.ErrNoPlaylistPlaying
	}
	return c.advance(c.sequencer.Previous)
}

// Advance moves a running playlist on once its song has played through.
// The host calls it once per tick.
func (c *Controller) Advance(now time.Time) {
	id := c.sequencer.CurrentSongID()
	if id == 0 {
		return
	}
	song, _ := c.catalog.Get(id)

	next, _, ok := c.sequencer.Tick(now, song.Duration)
	switch {
	case ok && c.catalog.Exists(next):
		c.arbiter.Play(next)
	case ok:
		if err := c.advance(c.sequencer.Next); err != nil {
			c.logger.Warn("playlist stopped", slog.Any("error", err))
		}
	case !c.sequencer.IsPlaying():
		// the playlist ran out under repeat once
		c.arbiter.Stop()
	}
}

// advance steps the sequencer until it lands on a song the catalog knows,
// trying each playlist entry at most once.
func (c *Controller) advance(step func() (int, int, bool)) error {
	for range c.sequencer.Len() + 1 {
		id, _, ok := step()
		if !ok {
			c.arbiter.Stop()
			return nil
		}
		if c.catalog.Exists(id) {
			c.arbiter.Play(id)
			return nil
		}
		c.logger.Debug("skipping unknown playlist song", slog.Int("id", id))
	}
	c.sequencer.Stop()
	return domain.ErrNoEligibleSongs
}

// StartDeepDungeon turns on Deep Dungeon mode. With no playlist the saved
// binding is used; a given playlist becomes the new binding.
func (c *Controller) StartDeepDungeon(playlist string) error {
	if playlist == "" {
		playlist = c.prefs.DeepDungeonPlaylist()
	} else if !c.playlists.Exists(playlist) {
		return fmt.Errorf("%w: %q", domain.ErrPlaylistNotFound, playlist)
	}

	if err := c.arbiter.StartDeepDungeonMode(playlist); err != nil {
		return fmt.Errorf("%w: %q", err, playlist)
	}

	if err := c.prefs.SetDeepDungeonPlaylist(playlist); err != nil {
		c.logger.Warn("failed to save deep dungeon binding", slog.Any("error", err))
	}
	return nil
}

// StopDeepDungeon turns off Deep Dungeon mode.
func (c *Controller) StopDeepDungeon() {
	c.arbiter.StopDeepDungeonMode()
}

// SetReplacement adds or changes a replacement rule. replacement may be NoChangeID.
func (c *Controller) SetReplacement(target, replacement int) error {
	if !c.catalog.Exists(target) {
		return fmt.Errorf("%w: %d", domain.ErrSongNotFound, target)
	}
	if replacement != domain.NoChangeID && !c.catalog.Exists(replacement) {
		return fmt.Errorf("%w: %d", domain.ErrSongNotFound, replacement)
	}
	c.rules.Set(domain.ReplacementRule{TargetSongID: target, ReplacementID: replacement})
	return nil
}

// RemoveReplacement deletes the rule for a target.
func (c *Controller) RemoveReplacement(target int) {
	c.rules.Remove(target)
}

// NewReplacementCandidate returns the first song without a rule, to seed a new rule.
func (c *Controller) NewReplacementCandidate() (int, error) {
	return c.catalog.FirstIDWithoutReplacement(c.rules)
}

func (c *Controller) loadPlaylist(name string) (*domain.Playlist, error) {
	p, err := c.playlists.Load(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	return p, nil
}

func (c *Controller) savePlaylist(p domain.Playlist) {
	if err := c.playlists.Save(&p); err != nil {
		c.logger.Warn("failed to save playlist", slog.String("playlist", p.Name), slog.Any("error", err))
	}
}
