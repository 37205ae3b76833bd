// Package main is the interactive host for the orchestra engine.
//
// The host stands in for the game: it simulates the environment's live BGM
// signal from stdin and forwards porch commands to the engine.
//
//	env <primary> [secondary]   set what the environment wants to play
//	loading <on|off>            show or hide the loading screen
//	porch <command...>          run a porch command (a leading slash is fine)
//	status                      print the arbiter state and status bar
//	logout                      end the session
//	quit                        exit
//
// Build:
//
//	go build -o build/orchestra ./cmd
//
// Run:
//
//	./build/orchestra --config orchestra.yaml
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/command"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/environment/mock"
	"github.com/tejashwikalptaru/orchestra/internal/app"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "orchestra",
		Short:   "Background music arbitration engine with a simulated environment",
		Version: app.GetVersionInfo().FullString(),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "config file (default ./orchestra.yaml if present)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, in io.Reader, out io.Writer) error {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}

	env := mock.NewEnvironment()
	env.SetResolveAnyID(true)
	config.Environment = env
	config.ChatOutput = out

	application, err := app.NewApplication(config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Ensure a graceful shutdown
	defer func() {
		if err := application.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	if err := application.Start(ctx); err != nil {
		return err
	}
	if addr := application.IPCAddr(); addr != "" {
		fmt.Fprintf(out, "IPC listening on http://%s\n", addr)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticking := make(chan struct{})
	go func() {
		application.Run(ctx)
		close(ticking)
	}()
	defer func() { <-ticking }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				cancel()
				return nil
			}
			if quit := handleLine(application, env, line, out); quit {
				cancel()
				return nil
			}
		}
	}
}

// handleLine runs one host command and reports whether the host should exit.
func handleLine(application *app.Application, env *mock.Environment, line string, out io.Writer) bool {
	if command.IsCommand(line) {
		_ = application.HandleCommand(line)
		return false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "env":
		if len(fields) < 2 || len(fields) > 3 {
			fmt.Fprintln(out, "usage: env <primary> [secondary]")
			return false
		}
		ids := make([]int, 2)
		for i, f := range fields[1:] {
			id, err := strconv.Atoi(f)
			if err != nil || id < 0 {
				fmt.Fprintf(out, "invalid song id %q\n", f)
				return false
			}
			ids[i] = id
		}
		env.SetTracks(ids[0], ids[1])

	case "loading":
		env.SetLoadingScreen(len(fields) > 1 && strings.EqualFold(fields[1], "on"))

	case "status":
		state := application.Arbiter().State()
		fmt.Fprintf(out, "live=%d secondary=%d audible=%d override=%t replacement=%t\n",
			state.LiveSongID, state.LiveSecondarySongID, state.AudibleSongID,
			state.PlayingViaOverride, state.IsReplacementActive)
		if bar := application.StatusBar(); bar.Shown() && bar.Text() != "" {
			fmt.Fprintln(out, bar.Text())
		}

	case "logout":
		application.Logout()

	case "quit", "exit":
		return true

	default:
		fmt.Fprintln(out, "unknown input; try env, loading, porch, status, logout or quit")
	}
	return false
}
