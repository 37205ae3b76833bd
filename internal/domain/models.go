// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the background-music arbiter.
package domain

import (
	"strings"
	"time"
)

// NoChangeID is the replacement value meaning "do not force anything;
// let the ambient or previous track stand".
const NoChangeID = -1

// PrimaryLanguage is the language whose empty name removes a song from the catalog.
const PrimaryLanguage = "en"

// Song is a single background-music track known to the catalog.
// Songs are immutable after the catalog load that produced them.
type Song struct {
	// ID is the environment's BGM identifier (positive, unique)
	ID int

	// Strings holds the display strings keyed by language code
	Strings map[string]SongStrings

	// FilePath is the environment's opaque resource locator
	FilePath string

	// FileExists is true if the resource was present at load time
	FileExists bool

	// Duration is the track length (zero if unknown)
	Duration time.Duration

	// SpecialMode marks tracks with an alternate special-mode variant
	SpecialMode bool

	// DisableRestart means re-selecting this song while it sounds must not restart it
	DisableRestart bool
}

// SongStrings holds the per-language display strings of a song.
type SongStrings struct {
	Name            string
	AlternateName   string
	SpecialModeName string
	Locations       string
	AdditionalInfo  string
}

// Name returns the song name in the given language, or "" if it has none.
func (s Song) Name(lang string) string {
	return s.Strings[lang].Name
}

// Clone returns a copy of the song that shares no maps with the receiver.
func (s Song) Clone() Song {
	strs := make(map[string]SongStrings, len(s.Strings))
	for k, v := range s.Strings {
		strs[k] = v
	}
	s.Strings = strs
	return s
}

// BGMResource is what the environment's own BGM table says about an id.
type BGMResource struct {
	ID             int
	FilePath       string
	SpecialMode    bool
	DisableRestart bool
}

// ReplacementRule redirects one track to another whenever the live signal requests it.
type ReplacementRule struct {
	// TargetSongID is the song being intercepted
	TargetSongID int `json:"target"`

	// ReplacementID is the song to play instead, or NoChangeID
	ReplacementID int `json:"replacement"`
}

// IsNoChange reports whether the rule lets the target through.
func (r ReplacementRule) IsNoChange() bool {
	return r.ReplacementID == NoChangeID
}

// ShuffleMode controls traversal order of a playlist.
type ShuffleMode int

const (
	// ShuffleOff plays songs in storage order
	ShuffleOff ShuffleMode = iota

	// ShuffleOn plays songs in a permuted order
	ShuffleOn
)

// String returns a human-readable representation of the shuffle mode.
func (m ShuffleMode) String() string {
	switch m {
	case ShuffleOff:
		return "off"
	case ShuffleOn:
		return "on"
	default:
		return "unknown"
	}
}

// ParseShuffleMode parses a case-insensitive shuffle mode token.
func ParseShuffleMode(token string) (ShuffleMode, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "off":
		return ShuffleOff, nil
	case "on":
		return ShuffleOn, nil
	default:
		return ShuffleOff, NewValidationError("shuffle", token, "must be 'on' or 'off'")
	}
}

// RepeatMode controls what happens at the end of a playlist.
type RepeatMode int

const (
	// RepeatAll wraps around to the first song
	RepeatAll RepeatMode = iota

	// RepeatOne replays the current song
	RepeatOne

	// RepeatOnce stops after the last song
	RepeatOnce
)

// String returns a human-readable representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	case RepeatOnce:
		return "once"
	default:
		return "unknown"
	}
}

// ParseRepeatMode parses a case-insensitive repeat mode token.
func ParseRepeatMode(token string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	case "once":
		return RepeatOnce, nil
	default:
		return RepeatAll, NewValidationError("repeat", token, "must be 'all', 'one' or 'once'")
	}
}

// Playlist is a named, ordered collection of song ids. Duplicates are allowed.
type Playlist struct {
	// Name is the unique, case-sensitive identifier
	Name string `json:"name"`

	// Songs is the stored order; shuffling never changes it
	Songs []int `json:"songs"`

	ShuffleMode ShuffleMode `json:"shuffle"`
	RepeatMode  RepeatMode  `json:"repeat"`
}

// ArbiterState is a snapshot of the playback arbiter.
type ArbiterState struct {
	// LiveSongID is what the environment currently wants to play
	LiveSongID int

	// LiveSecondarySongID is the environment's second active layer
	LiveSecondarySongID int

	// AudibleSongID is what is being forced to play (0 = nothing forced)
	AudibleSongID int

	// PlayingViaOverride is true if the audible song was chosen by the arbiter
	PlayingViaOverride bool

	// IsReplacementActive is true if the audible song came from a replacement rule
	IsReplacementActive bool
}

// Valid reports whether the state satisfies the arbiter invariants.
func (s ArbiterState) Valid() bool {
	if s.AudibleSongID == 0 && s.PlayingViaOverride {
		return false
	}
	if s.IsReplacementActive && !s.PlayingViaOverride {
		return false
	}
	return true
}

// SheetKind identifies a catalog sheet: the metadata sheet or a language sheet.
type SheetKind string

// SheetMetadata is the language-agnostic metadata sheet.
const SheetMetadata SheetKind = "metadata"

// IsMetadata reports whether the kind is the metadata sheet.
func (k SheetKind) IsMetadata() bool {
	return k == SheetMetadata
}

// SheetRecord is one row of a catalog sheet, split into columns.
type SheetRecord []string

// Settings are the user-facing display preferences that collaborators consult.
type Settings struct {
	ShowSongInChat      bool
	ShowSongInStatusBar bool
	ShowIDInStatusBar   bool
	DisableTooltips     bool
	ChatLanguage        string
	StatusBarLanguage   string

	// DeepDungeonPlaylist is the playlist Deep Dungeon mode is bound to ("" = whole catalog)
	DeepDungeonPlaylist string
}

// DefaultSettings returns the settings used when nothing has been saved.
func DefaultSettings() Settings {
	return Settings{
		ShowSongInChat:      true,
		ShowSongInStatusBar: true,
		ChatLanguage:        PrimaryLanguage,
		StatusBarLanguage:   PrimaryLanguage,
	}
}
