package service

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// Setting keys accepted by Set.
const (
	SettingShowSongInChat      = "chat"
	SettingShowSongInStatusBar = "statusbar"
	SettingShowIDInStatusBar   = "showid"
	SettingDisableTooltips     = "notooltips"
	SettingChatLanguage        = "chatlang"
	SettingStatusBarLanguage   = "statuslang"
)

// SettingKeys lists every key accepted by Set, in display order.
var SettingKeys = []string{
	SettingShowSongInChat,
	SettingShowSongInStatusBar,
	SettingShowIDInStatusBar,
	SettingDisableTooltips,
	SettingChatLanguage,
	SettingStatusBarLanguage,
}

// PreferenceService manages the display settings and the Deep Dungeon binding.
// All operations are thread-safe via sync.RWMutex.
type PreferenceService struct {
	// Dependencies (injected)
	logger     *slog.Logger
	repository ports.SettingsRepository
	bus        ports.EventBus

	// languages that may be chosen for chat and status bar
	languages []string

	// Cached settings
	settings domain.Settings

	// Concurrency control
	mu sync.RWMutex
}

// NewPreferenceService creates a new preference service and loads the saved settings.
func NewPreferenceService(
	logger *slog.Logger,
	repository ports.SettingsRepository,
	bus ports.EventBus,
	languages []string,
) *PreferenceService {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	s := &PreferenceService{
		logger:     logger.With(slog.String("service", "preferences")),
		repository: repository,
		bus:        bus,
		languages:  languages,
		settings:   domain.DefaultSettings(),
	}
	s.Reload()
	return s
}

// Reload re-reads the settings from the repository. On failure the cached
// settings are kept.
func (s *PreferenceService) Reload() {
	settings, err := s.repository.LoadSettings()
	if err != nil {
		s.logger.Warn("failed to load settings, keeping current", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Settings returns the current settings.
func (s *PreferenceService) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies fn to a copy of the settings, then saves and publishes the result.
func (s *PreferenceService) Update(fn func(*domain.Settings)) error {
	s.mu.Lock()
	next := s.settings
	fn(&next)

	if !slices.Contains(s.languages, next.ChatLanguage) {
		s.mu.Unlock()
		return domain.NewValidationError("chat language", next.ChatLanguage, "unsupported language")
	}
	if !slices.Contains(s.languages, next.StatusBarLanguage) {
		s.mu.Unlock()
		return domain.NewValidationError("status bar language", next.StatusBarLanguage, "unsupported language")
	}

	if err := s.repository.SaveSettings(next); err != nil {
		s.mu.Unlock()
		return domain.NewServiceError("PreferenceService", "Update", "failed to save settings", err)
	}
	s.settings = next
	s.mu.Unlock()

	s.bus.Publish(domain.NewSettingsChangedEvent(next))
	return nil
}

// Set changes one display setting by key. Flags take on/off, true/false or 1/0.
func (s *PreferenceService) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	var apply func(*domain.Settings)
	switch key {
	case SettingChatLanguage:
		apply = func(st *domain.Settings) { st.ChatLanguage = strings.ToLower(value) }
	case SettingStatusBarLanguage:
		apply = func(st *domain.Settings) { st.StatusBarLanguage = strings.ToLower(value) }
	case SettingShowSongInChat, SettingShowSongInStatusBar, SettingShowIDInStatusBar, SettingDisableTooltips:
		on, err := parseFlag(value)
		if err != nil {
			return domain.NewValidationError(key, value, "must be on or off")
		}
		apply = func(st *domain.Settings) {
			switch key {
			case SettingShowSongInChat:
				st.ShowSongInChat = on
			case SettingShowSongInStatusBar:
				st.ShowSongInStatusBar = on
			case SettingShowIDInStatusBar:
				st.ShowIDInStatusBar = on
			default:
				st.DisableTooltips = on
			}
		}
	default:
		return domain.NewValidationError("setting", key, "unknown setting")
	}
	return s.Update(apply)
}

// DeepDungeonPlaylist returns the playlist Deep Dungeon mode is bound to.
func (s *PreferenceService) DeepDungeonPlaylist() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.DeepDungeonPlaylist
}

// SetDeepDungeonPlaylist binds Deep Dungeon mode to a playlist ("" = whole catalog).
func (s *PreferenceService) SetDeepDungeonPlaylist(name string) error {
	if s.DeepDungeonPlaylist() == name {
		return nil
	}
	return s.Update(func(st *domain.Settings) { st.DeepDungeonPlaylist = name })
}

// Languages returns the selectable languages.
func (s *PreferenceService) Languages() []string {
	return append([]string(nil), s.languages...)
}

func parseFlag(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return strconv.ParseBool(value)
}
