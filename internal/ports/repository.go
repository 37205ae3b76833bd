// Package ports define repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"github.com/tejashwikalptaru/orchestra/internal/domain"
)

// ReplacementRepository handles the persistence of replacement rules.
//
// Thread-safety: Implementations must be thread-safe.
type ReplacementRepository interface {
	// Save persists a rule, replacing any rule with the same target.
	Save(rule domain.ReplacementRule) error

	// Delete removes the rule for the target.
	// If no rule exists, this is a no-op (no error).
	Delete(targetSongID int) error

	// LoadAll retrieves all saved rules.
	// Returns an empty slice (not an error) if none exist.
	LoadAll() ([]domain.ReplacementRule, error)
}

// PlaylistRepository handles the persistence of playlists.
//
// Thread-safety: Implementations must be thread-safe.
type PlaylistRepository interface {
	// Save persists a playlist.
	// If a playlist with the same name exists, it is replaced.
	Save(playlist *domain.Playlist) error

	// Load retrieves a playlist by name.
	// If the playlist doesn't exist, returns (nil, domain.ErrPlaylistNotFound).
	Load(name string) (*domain.Playlist, error)

	// LoadAll retrieves all saved playlists in creation order.
	LoadAll() ([]*domain.Playlist, error)

	// Delete removes a playlist by name.
	// If the playlist doesn't exist, this is a no-op (no error).
	Delete(name string) error

	// Exists checks if a playlist with the given name exists.
	Exists(name string) bool
}

// SettingsRepository handles the persistence of display settings
// and the Deep Dungeon binding.
//
// Thread-safety: Implementations must be thread-safe.
type SettingsRepository interface {
	// SaveSettings persists the settings.
	SaveSettings(settings domain.Settings) error

	// LoadSettings retrieves the saved settings.
	// If nothing was saved, returns domain.DefaultSettings().
	LoadSettings() (domain.Settings, error)

	// Clear removes all saved settings.
	Clear() error
}
