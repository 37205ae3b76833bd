package notify

import (
	"strconv"
	"sync"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
)

// NowPlayingPrefix starts the status-bar text.
const NowPlayingPrefix = "♪ "

// StatusBar holds the native status-bar entry: a short "now playing" text
// and a tooltip with the song's locations and notes.
//
// Thread-safety: All operations are thread-safe via sync.RWMutex.
type StatusBar struct {
	text    string
	tooltip string
	shown   bool

	mu sync.RWMutex
}

// NewStatusBar creates an empty, shown status bar.
func NewStatusBar() *StatusBar {
	return &StatusBar{shown: true}
}

// Update shows a song using the status-bar language from settings.
// Songs without a name in that language leave the entry unchanged.
func (b *StatusBar) Update(song domain.Song, byOverride bool, settings domain.Settings) bool {
	strs := song.Strings[settings.StatusBarLanguage]
	if strs.Name == "" {
		return false
	}

	text := strs.Name
	if settings.ShowIDInStatusBar {
		text += " - " + strconv.Itoa(song.ID)
	}
	if byOverride {
		text = "[" + text + "]"
	}

	tooltip := ""
	if !settings.DisableTooltips {
		tooltip = joinNonEmpty(strs.Locations, strs.AdditionalInfo)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = NowPlayingPrefix + text
	b.tooltip = tooltip
	return true
}

// SetShown shows or hides the entry without touching its text.
func (b *StatusBar) SetShown(shown bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shown = shown
}

// Shown reports whether the entry is visible.
func (b *StatusBar) Shown() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.shown
}

// Text returns the entry text.
func (b *StatusBar) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Tooltip returns the entry tooltip.
func (b *StatusBar) Tooltip() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tooltip
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}
