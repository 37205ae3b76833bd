// Package memory provides persistence adapters backed by fyne.Preferences.
package memory

import (
	"encoding/json"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/samber/lo"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

const (
	playlistKeyPrefix = "playlist."
	playlistNamesKey  = "playlist._names"
)

// PlaylistRepository implements ports.PlaylistRepository using Fyne preferences.
// Playlists are stored as JSON in preferences with keys like "playlist.<name>".
// A separate name list keeps creation order.
//
// Thread-safe: All operations protected by sync.RWMutex.
type PlaylistRepository struct {
	prefs  fyne.Preferences
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewPlaylistRepository creates a new playlist repository.
// The preferences parameter should be obtained from fyne.CurrentApp().Preferences().
func NewPlaylistRepository(prefs fyne.Preferences, logger *slog.Logger) *PlaylistRepository {
	return &PlaylistRepository{
		prefs:  prefs,
		logger: logger.With(slog.String("repository", "playlist")),
	}
}

// Save persists a playlist, replacing any playlist with the same name.
func (r *PlaylistRepository) Save(playlist *domain.Playlist) error {
	if playlist == nil || playlist.Name == "" {
		return domain.NewValidationError("name", "", "playlist name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(playlist)
	if err != nil {
		return domain.NewRepositoryError("save", "playlist", "failed to marshal playlist", err)
	}
	r.prefs.SetString(playlistKeyPrefix+playlist.Name, string(data))

	names, err := r.loadNames()
	if err != nil {
		r.logger.Warn("playlist name index unreadable, rebuilding", slog.Any("error", err))
		names = []string{}
	}
	if !lo.Contains(names, playlist.Name) {
		return r.saveNames(append(names, playlist.Name))
	}
	return nil
}

// Load retrieves a playlist by name.
func (r *PlaylistRepository) Load(name string) (*domain.Playlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.load(name)
}

// load reads one playlist. Must be called with lock held.
func (r *PlaylistRepository) load(name string) (*domain.Playlist, error) {
	data := r.prefs.String(playlistKeyPrefix + name)
	if data == "" {
		return nil, domain.ErrPlaylistNotFound
	}

	var playlist domain.Playlist
	if err := json.Unmarshal([]byte(data), &playlist); err != nil {
		return nil, domain.NewRepositoryError("load", "playlist", "failed to unmarshal playlist", err)
	}
	return &playlist, nil
}

// LoadAll retrieves all saved playlists in creation order.
// Missing or corrupted entries are skipped.
func (r *PlaylistRepository) LoadAll() ([]*domain.Playlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names, err := r.loadNames()
	if err != nil {
		return nil, err
	}

	playlists := make([]*domain.Playlist, 0, len(names))
	for _, name := range names {
		playlist, err := r.load(name)
		if err != nil {
			r.logger.Warn("skipping playlist", slog.String("name", name), slog.Any("error", err))
			continue
		}
		playlists = append(playlists, playlist)
	}
	return playlists, nil
}

// Delete removes a playlist by name.
func (r *PlaylistRepository) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.RemoveValue(playlistKeyPrefix + name)

	names, err := r.loadNames()
	if err != nil {
		names = []string{}
	}
	return r.saveNames(lo.Without(names, name))
}

// Exists checks if a playlist with the given name exists.
func (r *PlaylistRepository) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.prefs.String(playlistKeyPrefix+name) != ""
}

// loadNames loads the ordered list of playlist names.
// Must be called with lock held.
func (r *PlaylistRepository) loadNames() ([]string, error) {
	data := r.prefs.String(playlistNamesKey)
	if data == "" {
		return []string{}, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, domain.NewRepositoryError("load", "playlist", "failed to unmarshal name index", err)
	}
	return names, nil
}

// saveNames saves the ordered list of playlist names.
// Must be called with lock held.
func (r *PlaylistRepository) saveNames(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return domain.NewRepositoryError("save", "playlist", "failed to marshal name index", err)
	}
	r.prefs.SetString(playlistNamesKey, string(data))
	return nil
}

// Verify interface implementation
var _ ports.PlaylistRepository = (*PlaylistRepository)(nil)
