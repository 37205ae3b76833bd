package notify

import (
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// SongLookup resolves song ids to display strings.
type SongLookup interface {
	Get(id int) (domain.Song, bool)
}

// SettingsSource supplies the current display settings.
type SettingsSource interface {
	Settings() domain.Settings
}

// Filter drops song changed events that would repeat the last notification.
type Filter struct {
	lastOverride bool
	mu           sync.Mutex
}

// Allow reports whether the event should be shown. An event from nothing to
// nothing is dropped, as is an override replaying the song an override
// already announced.
func (f *Filter) Allow(ev domain.SongChangedEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	prevOverride := f.lastOverride
	f.lastOverride = ev.PlayedByOverride

	if ev.Old == ev.New && ev.Old == 0 {
		return false
	}
	if ev.Old == ev.New && prevOverride && ev.PlayedByOverride {
		return false
	}
	return true
}

// Notifier routes song changes to the status bar and the chat echo.
type Notifier struct {
	// Dependencies (injected)
	logger   *slog.Logger
	bus      ports.EventBus
	songs    SongLookup
	settings SettingsSource
	chat     *Chat
	bar      *StatusBar

	filter Filter
	subs   []domain.SubscriptionID
}

// NewNotifier creates a notifier and subscribes it to the bus.
func NewNotifier(
	logger *slog.Logger,
	bus ports.EventBus,
	songs SongLookup,
	settings SettingsSource,
	chat *Chat,
	bar *StatusBar,
) *Notifier {
	n := &Notifier{
		logger:   logger.With(slog.String("component", "notifier")),
		bus:      bus,
		songs:    songs,
		settings: settings,
		chat:     chat,
		bar:      bar,
	}
	n.subs = []domain.SubscriptionID{
		bus.Subscribe(domain.EventSongChanged, n.onSongChanged),
		bus.Subscribe(domain.EventSettingsChanged, n.onSettingsChanged),
	}
	bar.SetShown(settings.Settings().ShowSongInStatusBar)
	return n
}

func (n *Notifier) onSongChanged(event domain.Event) {
	ev, ok := event.(domain.SongChangedEvent)
	if !ok || !n.filter.Allow(ev) {
		return
	}

	song, ok := n.songs.Get(ev.New)
	if !ok {
		return
	}
	settings := n.settings.Settings()

	n.bar.Update(song, ev.PlayedByOverride, settings)

	if settings.ShowSongInChat {
		if name := song.Name(settings.ChatLanguage); name != "" {
			n.chat.NowPlaying(name, ev.PlayedByOverride)
		}
	}
	n.logger.Debug("song notification", slog.Int("old", ev.Old), slog.Int("new", ev.New))
}

func (n *Notifier) onSettingsChanged(event domain.Event) {
	if ev, ok := event.(domain.SettingsChangedEvent); ok {
		n.bar.SetShown(ev.Settings.ShowSongInStatusBar)
	}
}

// Tick prints any queued chat echo. The host calls it once per tick.
func (n *Notifier) Tick() {
	n.chat.Flush()
}

// Close unsubscribes from the bus.
func (n *Notifier) Close() {
	for _, id := range n.subs {
		n.bus.Unsubscribe(id)
	}
	n.subs = nil
}
