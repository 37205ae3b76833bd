// Package command implements the "porch" chat command surface on top of cobra.
// Every command validates its arguments and reports problems as chat errors;
// nothing here touches arbiter state directly.
package command

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
)

// Name is the command word. A leading slash is accepted too.
const Name = "porch"

// Controller is the command boundary the porch commands drive.
type Controller interface {
	PlaySong(id int) error
	PlaySongByName(name string) (int, error)
	Stop()
	PlayRandom(playlist string) error
	PlayPlaylist(name string) error
	ShufflePlaylist(name string) error
	RepeatPlaylist(name string) error
	SetShuffle(token string) error
	SetRepeat(token string) error
	Next() error
	Previous() error
	StartDeepDungeon(playlist string) error
	StopDeepDungeon()
}

// Preferences reads and changes display settings.
type Preferences interface {
	Settings() domain.Settings
	Set(key, value string) error
}

// Output is where command feedback goes, normally the chat.
type Output interface {
	io.Writer
	Print(msg string)
	PrintError(msg string)
}

// Porch parses and runs porch command lines.
type Porch struct {
	ctrl  Controller
	prefs Preferences
	out   Output
	root  *cobra.Command
}

// New builds the command tree.
func New(ctrl Controller, prefs Preferences, out Output) *Porch {
	p := &Porch{ctrl: ctrl, prefs: prefs, out: out}
	p.root = p.rootCmd()
	return p
}

// IsCommand reports whether line is addressed to porch.
func IsCommand(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && strings.EqualFold(strings.TrimPrefix(fields[0], "/"), Name)
}

// Run executes one command line, with or without the leading "porch".
// Failures are printed as chat errors and also returned.
func (p *Porch) Run(line string) error {
	args := strings.Fields(line)
	if len(args) > 0 && strings.EqualFold(strings.TrimPrefix(args[0], "/"), Name) {
		args = args[1:]
	}
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	if len(args) > 0 {
		args[0] = strings.ToLower(args[0])
	}

	p.root.SetArgs(args)
	err := p.root.Execute()
	if err != nil {
		p.out.PrintError(err.Error())
	}
	return err
}

func (p *Porch) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           Name,
		Short:         "Control background music",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// unknown commands fall back to the help text
			p.printHelp()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(p.out)
	root.SetErr(p.out)

	root.SetHelpCommand(p.helpCmd())
	root.AddCommand(
		p.playCmd(),
		p.stopCmd(),
		p.randomCmd(),
		p.nextCmd(),
		p.previousCmd(),
		p.shuffleCmd(),
		p.repeatCmd(),
		p.ddmodeCmd(),
		p.settingsCmd(),
	)
	return root
}

// newCmd creates a subcommand that takes its arguments verbatim, so song
// and playlist names may contain anything.
func newCmd(use, short string, run func(args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}

func (p *Porch) helpCmd() *cobra.Command {
	return newCmd("help", "Display this message", func([]string) error {
		p.printHelp()
		return nil
	})
}

func (p *Porch) playCmd() *cobra.Command {
	return newCmd("play", "Play a song by id or name, or a playlist", func(args []string) error {
		if len(args) == 0 {
			return failf("You must specify a song to play.")
		}
		if len(args) >= 2 && strings.EqualFold(args[0], "playlist") {
			return p.playlist(p.ctrl.PlayPlaylist, args[1:])
		}

		if len(args) == 1 {
			if id, err := strconv.Atoi(args[0]); err == nil {
				if err := p.ctrl.PlaySong(id); err != nil {
					return describe(err, fmt.Sprintf("Song ID %d", id))
				}
				return nil
			}
		}

		name := strings.Join(args, " ")
		if _, err := p.ctrl.PlaySongByName(name); err != nil {
			return describe(err, "Song "+name)
		}
		return nil
	})
}

func (p *Porch) stopCmd() *cobra.Command {
	return newCmd("stop", "Stop the current song, replacement, playlist or Deep Dungeon mode", func([]string) error {
		p.ctrl.Stop()
		return nil
	})
}

func (p *Porch) randomCmd() *cobra.Command {
	return newCmd("random", "Play a random song, optionally from a playlist", func(args []string) error {
		name := strings.Join(args, " ")
		if err := p.ctrl.PlayRandom(name); err != nil {
			return describe(err, "Playlist "+name)
		}
		return nil
	})
}

func (p *Porch) nextCmd() *cobra.Command {
	return newCmd("next", "Play the next song in the current playlist", func([]string) error {
		return describe(p.ctrl.Next(), "")
	})
}

func (p *Porch) previousCmd() *cobra.Command {
	return newCmd("previous", "Play the previous song in the current playlist", func([]string) error {
		return describe(p.ctrl.Previous(), "")
	})
}

func (p *Porch) shuffleCmd() *cobra.Command {
	return newCmd("shuffle", "Set the shuffle mode, or shuffle a playlist", func(args []string) error {
		switch {
		case len(args) == 0:
			return failf("Please specify a shuffle mode.")
		case len(args) >= 2 && strings.EqualFold(args[0], "playlist"):
			return p.playlist(p.ctrl.ShufflePlaylist, args[1:])
		default:
			return describe(p.ctrl.SetShuffle(args[0]), "")
		}
	})
}

func (p *Porch) repeatCmd() *cobra.Command {
	return newCmd("repeat", "Set the repeat mode, or repeat a playlist", func(args []string) error {
		switch {
		case len(args) == 0:
			return failf("Please specify a repeat mode.")
		case len(args) >= 2 && strings.EqualFold(args[0], "playlist"):
			return p.playlist(p.ctrl.RepeatPlaylist, args[1:])
		default:
			return describe(p.ctrl.SetRepeat(args[0]), "")
		}
	})
}

func (p *Porch) ddmodeCmd() *cobra.Command {
	return newCmd("ddmode", "Start or stop Deep Dungeon mode", func(args []string) error {
		if len(args) == 0 {
			return describe(p.ctrl.StartDeepDungeon(""), "")
		}
		switch strings.ToLower(args[0]) {
		case "start":
			name := strings.Join(args[1:], " ")
			return describe(p.ctrl.StartDeepDungeon(name), "Playlist "+name)
		case "stop":
			p.ctrl.StopDeepDungeon()
			return nil
		default:
			return failf("Invalid DDMode command %s.", args[0])
		}
	})
}

func (p *Porch) settingsCmd() *cobra.Command {
	return newCmd("settings", "Show settings, or change one with <key> <value>", func(args []string) error {
		switch len(args) {
		case 0:
			for _, line := range settingLines(p.prefs.Settings()) {
				p.out.Print(line)
			}
			return nil
		case 2:
			if err := p.prefs.Set(args[0], args[1]); err != nil {
				var verr *domain.ValidationError
				if errors.As(err, &verr) {
					return failf("Invalid value %q for %s.", verr.Value, verr.Field)
				}
				return err
			}
			return nil
		default:
			return failf("Usage: settings <key> <value>")
		}
	})
}

// chatError is a failure worded for the user.
type chatError string

func (e chatError) Error() string { return string(e) }

func failf(format string, a ...any) error {
	return chatError(fmt.Sprintf(format, a...))
}

// playlist runs a playlist command with the rest of the line as the name.
func (p *Porch) playlist(run func(string) error, nameArgs []string) error {
	name := strings.Join(nameArgs, " ")
	return describe(run(name), "Playlist "+name)
}

// describe turns a controller error into the chat message for it.
// subject names the song or playlist the command was about.
func describe(err error, subject string) error {
	if err == nil {
		return nil
	}

	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrSongNotFound), errors.Is(err, domain.ErrPlaylistNotFound):
		if subject != "" {
			return fmt.Errorf("%s not found.", subject)
		}
	case errors.Is(err, domain.ErrNoPlaylistPlaying):
		return failf("No playlist is currently playing.")
	case errors.Is(err, domain.ErrNoEligibleSongs), errors.Is(err, domain.ErrPlaylistEmpty),
		errors.Is(err, domain.ErrCatalogEmpty):
		return failf("No possible songs found.")
	case errors.As(err, &verr):
		return failf("The specified mode is invalid.")
	}
	return err
}

func settingLines(s domain.Settings) []string {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	dd := s.DeepDungeonPlaylist
	if dd == "" {
		dd = "(all songs)"
	}
	return []string{
		"chat: " + onOff(s.ShowSongInChat),
		"statusbar: " + onOff(s.ShowSongInStatusBar),
		"showid: " + onOff(s.ShowIDInStatusBar),
		"notooltips: " + onOff(s.DisableTooltips),
		"chatlang: " + s.ChatLanguage,
		"statuslang: " + s.StatusBarLanguage,
		"ddmode playlist: " + dd,
	}
}
