//go:build !debug

package service

import "log/slog"

// assertInvariants logs a broken arbiter state. Built with the debug tag it panics instead.
// Must be called with lock held.
func (a *PlaybackArbiter) assertInvariants() {
	if !a.state.Valid() {
		a.logger.Error("arbiter invariant violated",
			slog.Int("audible", a.state.AudibleSongID),
			slog.Bool("override", a.state.PlayingViaOverride),
			slog.Bool("replacement", a.state.IsReplacementActive))
	}
}
