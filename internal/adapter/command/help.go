package command

// helpText is printed by "porch help" and for unknown commands.
var helpText = []string{
	"Help:",
	"General Commands:",
	"/porch help - Display this message",
	"/porch play [songId] - Play the song with the specified ID",
	"/porch play [song name] - Play the song with the specified name (any language works)",
	"/porch random - Play a random song",
	"/porch stop - Stop the current playing song, replacement song, playlist, or DD mode",
	"/porch ddmode start - Enable Deep Dungeon mode: on every BGM change, play a random song instead",
	"/porch ddmode start [playlist name] - Enable Deep Dungeon mode using songs from the specified playlist",
	"/porch ddmode stop - Disable Deep Dungeon mode",
	"/porch settings [key value] - Show the display settings, or change one",
	"Playlist Commands:",
	"/porch random [playlist] - Play a random song from the specified playlist (does not begin the playlist)",
	"/porch play playlist [playlist name] - Play the specified playlist with its current settings",
	"/porch shuffle playlist [playlist name] - Play the specified playlist, changing its settings to shuffle",
	"/porch repeat playlist [playlist name] - Play the specified playlist, changing its settings to 'repeat all'",
	"/porch shuffle [on, off] - Set the current playlist to the specified shuffle mode",
	"/porch repeat [all, one, once] - Set the current playlist to the specified repeat mode",
	"/porch next - Play the next song in the current playlist",
	"/porch previous - Play the previous song in the current playlist",
}

func (p *Porch) printHelp() {
	for _, line := range helpText {
		p.out.Print(line)
	}
}
