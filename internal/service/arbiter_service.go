package service

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// songLookup is the part of the catalog the arbiter consults.
type songLookup interface {
	Exists(id int) bool
	IsDisableRestart(id int) bool
	PickRandom(constrainTo []int) (int, error)
}

// ruleSource is the part of the replacement table the arbiter consults.
type ruleSource interface {
	Get(targetSongID int) (domain.ReplacementRule, bool)
}

// PlaybackArbiter decides which song is audible. It reconciles the
// environment's live signal with replacement rules, manual plays and Deep
// Dungeon mode, and tells the environment what to force.
//
// Every call runs under one mutex and yields at most one SongChangedEvent,
// published after the lock is released so handlers may call back in.
type PlaybackArbiter struct {
	// Dependencies (injected)
	logger    *slog.Logger
	env       ports.Environment
	catalog   songLookup
	rules     ruleSource
	playlists ports.PlaylistRepository
	bus       ports.EventBus

	// State
	state        domain.ArbiterState
	previousLive int // live primary before the latest primary change
	ddActive     bool
	ddPlaylist   string

	// Concurrency control
	mu sync.Mutex
}

// NewPlaybackArbiter creates an arbiter in the zero state.
func NewPlaybackArbiter(
	logger *slog.Logger,
	env ports.Environment,
	catalog songLookup,
	rules ruleSource,
	playlists ports.PlaylistRepository,
	bus ports.EventBus,
) *PlaybackArbiter {
	return &PlaybackArbiter{
		logger:    logger.With(slog.String("service", "arbiter")),
		env:       env,
		catalog:   catalog,
		rules:     rules,
		playlists: playlists,
		bus:       bus,
	}
}

// Observe feeds a live-signal sample. Unchanged samples are ignored.
func (a *PlaybackArbiter) Observe(primary, secondary int) {
	a.mu.Lock()
	ev := a.observe(primary, secondary)
	a.assertInvariants()
	a.mu.Unlock()

	a.publish(ev)
}

// Play forces a song chosen by the user. Callers validate the id first.
func (a *PlaybackArbiter) Play(id int) {
	a.mu.Lock()
	ev := a.play(id, false)
	a.assertInvariants()
	a.mu.Unlock()

	a.publish(ev)
}

// Stop releases the current override. If the audible song has its own
// replacement rule, that replacement plays instead of silence.
func (a *PlaybackArbiter) Stop() {
	a.mu.Lock()
	ev := a.stop()
	a.assertInvariants()
	a.mu.Unlock()

	a.publish(ev)
}

// PlayRandom plays a random eligible song from scope, or from the whole
// catalog when scope is nil. On failure nothing changes.
func (a *PlaybackArbiter) PlayRandom(scope []int) error {
	id, err := a.catalog.PickRandom(scope)
	if err != nil {
		return err
	}
	a.Play(id)
	return nil
}

// StartDeepDungeonMode makes every live primary change force a random song,
// drawn from the named playlist or, when playlist is empty, the whole catalog.
func (a *PlaybackArbiter) StartDeepDungeonMode(playlist string) error {
	if playlist != "" && !a.playlists.Exists(playlist) {
		return domain.ErrPlaylistNotFound
	}

	a.mu.Lock()
	a.ddActive = true
	a.ddPlaylist = playlist
	a.mu.Unlock()

	a.logger.Info("deep dungeon mode started", slog.String("playlist", playlist))
	a.bus.Publish(domain.NewDeepDungeonModeEvent(true, playlist))
	return nil
}

// StopDeepDungeonMode restores normal reconciliation. The audible song keeps playing.
func (a *PlaybackArbiter) StopDeepDungeonMode() {
	a.mu.Lock()
	wasActive := a.ddActive
	a.ddActive = false
	a.ddPlaylist = ""
	a.mu.Unlock()

	if wasActive {
		a.logger.Info("deep dungeon mode stopped")
		a.bus.Publish(domain.NewDeepDungeonModeEvent(false, ""))
	}
}

// DeepDungeonMode reports whether the mode is active and its bound playlist.
func (a *PlaybackArbiter) DeepDungeonMode() (active bool, playlist string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ddActive, a.ddPlaylist
}

// State returns a snapshot of the arbiter state.
func (a *PlaybackArbiter) State() domain.ArbiterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// EffectiveSongID returns the song actually sounding: the forced song if
// any, else the live primary.
func (a *PlaybackArbiter) EffectiveSongID() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.effective()
}

// Reset returns to the zero state at the end of a session. A forced song is
// released first so the environment goes back to its own music.
func (a *PlaybackArbiter) Reset() {
	a.mu.Lock()
	ev := a.release()
	wasActive := a.ddActive

	next := domain.ArbiterState{}
	if a.state.AudibleSongID != 0 {
		// the release failed; keep the override so Stop can retry it
		next.AudibleSongID = a.state.AudibleSongID
		next.PlayingViaOverride = a.state.PlayingViaOverride
		next.IsReplacementActive = a.state.IsReplacementActive
	}
	a.state = next
	a.previousLive = 0
	a.ddActive = false
	a.ddPlaylist = ""
	a.assertInvariants()
	a.mu.Unlock()

	a.logger.Debug("arbiter reset")
	a.publish(ev)
	if wasActive {
		a.bus.Publish(domain.NewDeepDungeonModeEvent(false, ""))
	}
}

// observe must be called with lock held.
func (a *PlaybackArbiter) observe(primary, secondary int) *domain.SongChangedEvent {
	oldPrimary := a.state.LiveSongID
	primaryChanged := primary != oldPrimary
	secondaryChanged := secondary != a.state.LiveSecondarySongID
	if !primaryChanged && !secondaryChanged {
		return nil
	}

	a.state.LiveSongID = primary
	a.state.LiveSecondarySongID = secondary
	if primaryChanged {
		a.previousLive = oldPrimary
		a.logger.Debug("live song changed", slog.Int("old", oldPrimary), slog.Int("new", primary))
	}
	if secondaryChanged {
		a.logger.Debug("live secondary song changed", slog.Int("new", secondary))
	}

	if a.ddActive {
		if !primaryChanged {
			return nil
		}
		return a.deepDungeonPick()
	}

	// a manual play has priority over ambient changes
	if a.state.AudibleSongID != 0 && !a.state.IsReplacementActive {
		return nil
	}
	// the secondary layer only matters while a replacement plays
	if !primaryChanged && !a.state.IsReplacementActive {
		return nil
	}

	rule, ok := a.rules.Get(primary)
	if !ok {
		if a.state.AudibleSongID != 0 {
			return a.release()
		}
		ev := domain.NewSongChangedEvent(oldPrimary, primary, false)
		return &ev
	}

	target := 0
	replacement := a.resolve(rule)
	if replacement != domain.NoChangeID {
		target = replacement
	} else {
		resolvedSecondary := false
		if secondaryChanged {
			target = secondary
			if srule, ok := a.rules.Get(secondary); ok {
				target = a.resolve(srule)
			}
			if target == domain.NoChangeID {
				a.logger.Debug("no resolution for live change, giving up",
					slog.Int("primary", primary), slog.Int("secondary", secondary))
				return nil
			}
			resolvedSecondary = true
		}
		if !resolvedSecondary && a.state.AudibleSongID == 0 {
			target = oldPrimary
		}
	}

	return a.play(target, true)
}

// resolve returns the rule's replacement, or NoChangeID when the replacement
// no longer exists in the catalog.
func (a *PlaybackArbiter) resolve(rule domain.ReplacementRule) int {
	if rule.IsNoChange() {
		return domain.NoChangeID
	}
	if !a.catalog.Exists(rule.ReplacementID) {
		a.logger.Debug("replacement target missing, treating as no change",
			slog.Int("target", rule.TargetSongID),
			slog.Int("replacement", rule.ReplacementID))
		return domain.NoChangeID
	}
	return rule.ReplacementID
}

// play must be called with lock held.
func (a *PlaybackArbiter) play(target int, isReplacement bool) *domain.SongChangedEvent {
	if target == a.state.AudibleSongID {
		return nil
	}

	old := a.effective()
	if err := a.env.ForcePlayback(target, a.restartFor(target, old)); err != nil {
		a.logger.Error("failed to force playback", slog.Int("id", target), slog.Any("error", err))
		return nil
	}

	a.state.AudibleSongID = target
	a.state.PlayingViaOverride = target != 0
	a.state.IsReplacementActive = isReplacement && target != 0

	a.logger.Debug("playing",
		slog.Int("old", old),
		slog.Int("new", target),
		slog.Bool("replacement", isReplacement))
	ev := domain.NewSongChangedEvent(old, target, true)
	return &ev
}

// stop must be called with lock held.
func (a *PlaybackArbiter) stop() *domain.SongChangedEvent {
	audible := a.state.AudibleSongID
	if audible == 0 {
		return nil
	}

	if rule, ok := a.rules.Get(audible); ok {
		target := a.resolve(rule)
		if target == domain.NoChangeID {
			target = a.previousLive
		}
		a.logger.Debug("stopping into replacement", slog.Int("audible", audible), slog.Int("target", target))
		return a.play(target, true)
	}
	return a.release()
}

// release stops forcing anything and hands playback back to the live song.
// It must be called with lock held.
func (a *PlaybackArbiter) release() *domain.SongChangedEvent {
	audible := a.state.AudibleSongID
	if audible == 0 {
		return nil
	}

	live := a.state.LiveSongID
	if err := a.env.ForcePlayback(0, a.restartFor(live, audible)); err != nil {
		a.logger.Error("failed to clear forced playback", slog.Any("error", err))
		return nil
	}

	a.state.AudibleSongID = 0
	a.state.PlayingViaOverride = false
	a.state.IsReplacementActive = false

	a.logger.Debug("released", slog.Int("old", audible), slog.Int("live", live))
	ev := domain.NewSongChangedEvent(audible, live, false)
	return &ev
}

// deepDungeonPick must be called with lock held.
func (a *PlaybackArbiter) deepDungeonPick() *domain.SongChangedEvent {
	var scope []int
	if a.ddPlaylist != "" {
		p, err := a.playlists.Load(a.ddPlaylist)
		if err != nil {
			a.logger.Warn("deep dungeon playlist unavailable",
				slog.String("playlist", a.ddPlaylist), slog.Any("error", err))
			return nil
		}
		scope = p.Songs
		if scope == nil {
			scope = []int{}
		}
	}

	id, err := a.catalog.PickRandom(scope)
	if err != nil {
		if errors.Is(err, domain.ErrNoEligibleSongs) {
			a.logger.Warn("deep dungeon mode found no song to play", slog.String("playlist", a.ddPlaylist))
		} else {
			a.logger.Error("deep dungeon pick failed", slog.Any("error", err))
		}
		return nil
	}
	return a.play(id, true)
}

// effective must be called with lock held.
func (a *PlaybackArbiter) effective() int {
	if a.state.AudibleSongID != 0 {
		return a.state.AudibleSongID
	}
	return a.state.LiveSongID
}

// restartFor reports whether moving from the sounding song to next should
// restart playback. 0 stands for the live song taking over.
func (a *PlaybackArbiter) restartFor(next, sounding int) bool {
	if next == 0 {
		next = a.state.LiveSongID
	}
	return next != sounding || !a.catalog.IsDisableRestart(next)
}

func (a *PlaybackArbiter) publish(ev *domain.SongChangedEvent) {
	if ev != nil {
		a.bus.Publish(*ev)
	}
}
