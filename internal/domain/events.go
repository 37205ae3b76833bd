// Package domain defines events for the event-driven architecture.
// Events replace the callback system and enable loose coupling between components.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Arbitration events
	EventSongChanged     EventType = "song.changed"
	EventDeepDungeonMode EventType = "ddmode.changed"

	// Playlist events
	EventPlaylistAdvanced EventType = "playlist.advanced"
	EventPlaylistStopped  EventType = "playlist.stopped"

	// Catalog events
	EventCatalogLoaded     EventType = "catalog.loaded"
	EventCatalogLoadFailed EventType = "catalog.load_failed"

	// Configuration events
	EventReplacementChanged EventType = "replacement.changed"
	EventSettingsChanged    EventType = "settings.changed"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// SongChangedEvent is the one canonical "song changed" notification.
// At most one is published per arbiter input.
type SongChangedEvent struct {
	baseEvent
	Old              int
	New              int
	PlayedByOverride bool
}

// Type returns the event type.
func (e SongChangedEvent) Type() EventType {
	return EventSongChanged
}

// NewSongChangedEvent creates a new SongChangedEvent.
func NewSongChangedEvent(oldID, newID int, playedByOverride bool) SongChangedEvent {
	return SongChangedEvent{
		baseEvent:        newBaseEvent(),
		Old:              oldID,
		New:              newID,
		PlayedByOverride: playedByOverride,
	}
}

// DeepDungeonModeEvent is published when Deep Dungeon mode is switched on or off.
type DeepDungeonModeEvent struct {
	baseEvent
	Enabled  bool
	Playlist string
}

// Type returns the event type.
func (e DeepDungeonModeEvent) Type() EventType {
	return EventDeepDungeonMode
}

// NewDeepDungeonModeEvent creates a new DeepDungeonModeEvent.
func NewDeepDungeonModeEvent(enabled bool, playlist string) DeepDungeonModeEvent {
	return DeepDungeonModeEvent{
		baseEvent: newBaseEvent(),
		Enabled:   enabled,
		Playlist:  playlist,
	}
}

// PlaylistAdvancedEvent is published when the sequencer moves to a song.
type PlaylistAdvancedEvent struct {
	baseEvent
	Playlist string
	Index    int
	SongID   int
}

// Type returns the event type.
func (e PlaylistAdvancedEvent) Type() EventType {
	return EventPlaylistAdvanced
}

// NewPlaylistAdvancedEvent creates a new PlaylistAdvancedEvent.
func NewPlaylistAdvancedEvent(playlist string, index, songID int) PlaylistAdvancedEvent {
	return PlaylistAdvancedEvent{
		baseEvent: newBaseEvent(),
		Playlist:  playlist,
		Index:     index,
		SongID:    songID,
	}
}

// PlaylistStoppedEvent is published when the sequencer returns to idle.
type PlaylistStoppedEvent struct {
	baseEvent
	Playlist string
}

// Type returns the event type.
func (e PlaylistStoppedEvent) Type() EventType {
	return EventPlaylistStopped
}

// NewPlaylistStoppedEvent creates a new PlaylistStoppedEvent.
func NewPlaylistStoppedEvent(playlist string) PlaylistStoppedEvent {
	return PlaylistStoppedEvent{
		baseEvent: newBaseEvent(),
		Playlist:  playlist,
	}
}

// CatalogSource tells where a catalog load got its sheets from.
type CatalogSource string

const (
	CatalogSourceRemote CatalogSource = "remote"
	CatalogSourceCache  CatalogSource = "cache"
)

// CatalogLoadedEvent is published after a new catalog snapshot is swapped in.
type CatalogLoadedEvent struct {
	baseEvent
	Source CatalogSource
	Songs  int
}

// Type returns the event type.
func (e CatalogLoadedEvent) Type() EventType {
	return EventCatalogLoaded
}

// NewCatalogLoadedEvent creates a new CatalogLoadedEvent.
func NewCatalogLoadedEvent(source CatalogSource, songs int) CatalogLoadedEvent {
	return CatalogLoadedEvent{
		baseEvent: newBaseEvent(),
		Source:    source,
		Songs:     songs,
	}
}

// CatalogLoadFailedEvent is published when neither remote nor cached sheets could be loaded.
type CatalogLoadFailedEvent struct {
	baseEvent
	Error error
}

// Type returns the event type.
func (e CatalogLoadFailedEvent) Type() EventType {
	return EventCatalogLoadFailed
}

// NewCatalogLoadFailedEvent creates a new CatalogLoadFailedEvent.
func NewCatalogLoadFailedEvent(err error) CatalogLoadFailedEvent {
	return CatalogLoadFailedEvent{
		baseEvent: newBaseEvent(),
		Error:     err,
	}
}

// ReplacementChangedEvent is published when a replacement rule is set or removed.
type ReplacementChangedEvent struct {
	baseEvent
	Rule    ReplacementRule
	Removed bool
}

// Type returns the event type.
func (e ReplacementChangedEvent) Type() EventType {
	return EventReplacementChanged
}

// NewReplacementChangedEvent creates a new ReplacementChangedEvent.
func NewReplacementChangedEvent(rule ReplacementRule, removed bool) ReplacementChangedEvent {
	return ReplacementChangedEvent{
		baseEvent: newBaseEvent(),
		Rule:      rule,
		Removed:   removed,
	}
}

// SettingsChangedEvent is published when display settings are updated.
type SettingsChangedEvent struct {
	baseEvent
	Settings Settings
}

// Type returns the event type.
func (e SettingsChangedEvent) Type() EventType {
	return EventSettingsChanged
}

// NewSettingsChangedEvent creates a new SettingsChangedEvent.
func NewSettingsChangedEvent(settings Settings) SettingsChangedEvent {
	return SettingsChangedEvent{
		baseEvent: newBaseEvent(),
		Settings:  settings,
	}
}
