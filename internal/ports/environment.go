// Package ports define the environment bridge.
// The environment is the live host that owns the real BGM player; the arbiter only
// samples what it wants to play and tells it what to force.
package ports

import (
	"github.com/tejashwikalptaru/orchestra/internal/domain"
)

// Environment is the bridge to the live environment's current-track memory.
//
// Implementations are called from the host's single tick timeline but must
// tolerate calls from command handlers on other goroutines.
type Environment interface {
	// CurrentTracks returns the environment's own primary and secondary track ids.
	// Sampled once per tick.
	CurrentTracks() (primary, secondary int)

	// ForcePlayback forces the given song to play. id 0 clears any override
	// and restores ambient playback. restart is false when the song is already
	// sounding and must not be restarted.
	ForcePlayback(id int, restart bool) error

	// IsLoadingScreen reports whether a loading screen is visible; chat output waits for it.
	IsLoadingScreen() bool
}

// ResourceIndex exposes the environment's BGM table to the song catalog.
type ResourceIndex interface {
	// Resource returns the environment's record for a BGM id.
	Resource(id int) (domain.BGMResource, bool)

	// FileExists reports whether the resource file is present.
	FileExists(path string) bool
}
