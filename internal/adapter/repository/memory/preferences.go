package memory

import (
	"sync"

	"fyne.io/fyne/v2"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

const (
	keyShowSongInChat      = "settings.show_song_in_chat"
	keyShowSongInStatusBar = "settings.show_song_in_statusbar"
	keyShowIDInStatusBar   = "settings.show_id_in_statusbar"
	keyDisableTooltips     = "settings.disable_tooltips"
	keyChatLanguage        = "settings.chat_language"
	keyStatusBarLanguage   = "settings.statusbar_language"
	keyDeepDungeonPlaylist = "settings.ddmode_playlist"
)

// SettingsRepository implements ports.SettingsRepository using Fyne preferences.
// This provides a thin wrapper around Fyne's preferences system.
//
// Thread-safe: All operations protected by sync.RWMutex.
type SettingsRepository struct {
	prefs fyne.Preferences
	mu    sync.RWMutex
}

// NewSettingsRepository creates a new settings repository.
// The preferences parameter should be obtained from fyne.CurrentApp().Preferences().
func NewSettingsRepository(prefs fyne.Preferences) *SettingsRepository {
	return &SettingsRepository{
		prefs: prefs,
	}
}

// SaveSettings persists the settings.
func (r *SettingsRepository) SaveSettings(settings domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetBool(keyShowSongInChat, settings.ShowSongInChat)
	r.prefs.SetBool(keyShowSongInStatusBar, settings.ShowSongInStatusBar)
	r.prefs.SetBool(keyShowIDInStatusBar, settings.ShowIDInStatusBar)
	r.prefs.SetBool(keyDisableTooltips, settings.DisableTooltips)
	r.prefs.SetString(keyChatLanguage, settings.ChatLanguage)
	r.prefs.SetString(keyStatusBarLanguage, settings.StatusBarLanguage)
	r.prefs.SetString(keyDeepDungeonPlaylist, settings.DeepDungeonPlaylist)
	return nil
}

// LoadSettings retrieves the saved settings, falling back to defaults per field.
func (r *SettingsRepository) LoadSettings() (domain.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def := domain.DefaultSettings()
	return domain.Settings{
		ShowSongInChat:      r.prefs.BoolWithFallback(keyShowSongInChat, def.ShowSongInChat),
		ShowSongInStatusBar: r.prefs.BoolWithFallback(keyShowSongInStatusBar, def.ShowSongInStatusBar),
		ShowIDInStatusBar:   r.prefs.BoolWithFallback(keyShowIDInStatusBar, def.ShowIDInStatusBar),
		DisableTooltips:     r.prefs.BoolWithFallback(keyDisableTooltips, def.DisableTooltips),
		ChatLanguage:        r.prefs.StringWithFallback(keyChatLanguage, def.ChatLanguage),
		StatusBarLanguage:   r.prefs.StringWithFallback(keyStatusBarLanguage, def.StatusBarLanguage),
		DeepDungeonPlaylist: r.prefs.StringWithFallback(keyDeepDungeonPlaylist, def.DeepDungeonPlaylist),
	}, nil
}

// Clear removes all saved settings.
func (r *SettingsRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range []string{
		keyShowSongInChat,
		keyShowSongInStatusBar,
		keyShowIDInStatusBar,
		keyDisableTooltips,
		keyChatLanguage,
		keyStatusBarLanguage,
		keyDeepDungeonPlaylist,
	} {
		r.prefs.RemoveValue(key)
	}
	return nil
}

// Verify interface implementation
var _ ports.SettingsRepository = (*SettingsRepository)(nil)
