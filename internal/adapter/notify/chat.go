// Package notify provides the user-facing song notifications: a chat echo and
// a status-bar entry. Both are fed from song changed events on the bus.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ChatPrefix starts every chat line.
const ChatPrefix = "[Orchestra] "

// LoadingScreen reports whether the environment is showing a loading screen.
type LoadingScreen interface {
	IsLoadingScreen() bool
}

// Chat writes styled lines to the host's chat output. The "now playing" echo
// is queued and printed by Flush on the next tick, so it never lands on a
// loading screen.
//
// Chat also implements io.Writer so command output can be routed through it.
//
// Thread-safety: All operations are thread-safe via sync.Mutex.
type Chat struct {
	out    io.Writer
	screen LoadingScreen

	prefixStyle lipgloss.Style
	errorStyle  lipgloss.Style
	titleStyle  lipgloss.Style

	pending string

	mu sync.Mutex
}

// NewChat creates a chat writer. screen may be nil when there is no loading screen to wait on.
func NewChat(out io.Writer, screen LoadingScreen) *Chat {
	r := lipgloss.NewRenderer(out)
	return &Chat{
		out:         out,
		screen:      screen,
		prefixStyle: r.NewStyle().Foreground(lipgloss.Color("35")),
		errorStyle:  r.NewStyle().Foreground(lipgloss.Color("196")),
		titleStyle:  r.NewStyle().Italic(true),
	}
}

// Print writes one chat line.
func (c *Chat) Print(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.prefixStyle.Render(ChatPrefix) + msg)
}

// PrintError writes one chat line in the error color.
func (c *Chat) PrintError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.prefixStyle.Render(ChatPrefix) + c.errorStyle.Render(msg))
}

// NowPlaying queues the echo for a song, replacing any echo not yet printed.
// Names of songs forced by the arbiter are bracketed.
func (c *Chat) NowPlaying(name string, byOverride bool) {
	if byOverride {
		name = "[" + name + "]"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = c.prefixStyle.Render(ChatPrefix) + "Now playing " + c.titleStyle.Render(name) + "."
}

// Pending reports whether an echo is waiting to be printed.
func (c *Chat) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != ""
}

// Flush prints the queued echo unless a loading screen is showing.
// It reports whether anything was printed.
func (c *Chat) Flush() bool {
	if c.screen != nil && c.screen.IsLoadingScreen() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == "" {
		return false
	}
	c.println(c.pending)
	c.pending = ""
	return true
}

// Write prints every non-empty line of p as a chat line.
func (c *Chat) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.Print(line)
	}
	return len(p), nil
}

// println must be called with lock held.
func (c *Chat) println(line string) {
	_, _ = fmt.Fprintln(c.out, line)
}
