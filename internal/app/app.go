// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/command"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/environment/mock"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/ipc"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/metrics"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/notify"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/repository/memory"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/sheet"
	"github.com/tejashwikalptaru/orchestra/internal/logger"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
	"github.com/tejashwikalptaru/orchestra/internal/service"
)

// shutdownTimeout bounds the IPC server drain on shutdown.
const shutdownTimeout = 5 * time.Second

// Environment is the live host: its current-track signal and its BGM table.
type Environment interface {
	ports.Environment
	ports.ResourceIndex
}

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Driving the per-tick update (sample, arbitrate, advance, notify)
// - Managing the lifecycle (start, logout, shutdown)
type Application struct {
	// Core dependencies
	logger  *slog.Logger
	config  Config
	fyneApp fyne.App

	// Infrastructure
	eventBus *eventbus.SyncEventBus
	env      Environment
	cache    *sheet.FileCache

	// Repositories
	replacementRepo ports.ReplacementRepository
	playlistRepo    ports.PlaylistRepository
	settingsRepo    ports.SettingsRepository

	// Services
	catalog    *service.SongCatalog
	rules      *service.ReplacementTable
	sequencer  *service.PlaylistSequencer
	arbiter    *service.PlaybackArbiter
	prefs      *service.PreferenceService
	controller *service.Controller

	// Adapters
	chat      *notify.Chat
	statusBar *notify.StatusBar
	notifier  *notify.Notifier
	porch     *command.Porch
	collector *metrics.Collector
	server    *ipc.Server
	watcher   *sheet.Watcher

	shutdownOnce sync.Once
}

// NewApplication creates a new application with all dependencies wired.
// Nothing is loaded or started until Start.
func NewApplication(config Config) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	app := &Application{config: config}

	// Step 1: Create Fyne application (preference store)
	if config.TestFyneApp != nil {
		app.fyneApp = config.TestFyneApp
	} else {
		app.fyneApp = fyneapp.NewWithID(config.AppID)
	}

	// Step 2: Create logger
	app.logger = logger.NewLogger(logger.Config{
		Level:  logger.ParseLevel(config.LogLevel, slog.LevelInfo),
		Format: config.LogFormat,
	})
	app.logger.Info("initializing application",
		slog.String("app_id", config.AppID),
		slog.String("version", GetVersionInfo().FullString()))

	// Step 3: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus()
	app.eventBus.SetLogger(app.logger.With(slog.String("component", "eventbus")))

	// Step 4: Environment bridge
	if config.Environment != nil {
		app.env = config.Environment
	} else {
		env := mock.NewEnvironment()
		env.SetLogger(app.logger.With(slog.String("environment", "simulator")))
		env.SetResolveAnyID(true)
		app.env = env
	}

	// Step 5: Create repositories
	prefs := app.fyneApp.Preferences()
	app.replacementRepo = memory.NewReplacementRepository(prefs)
	app.playlistRepo = memory.NewPlaylistRepository(prefs, app.logger)
	app.settingsRepo = memory.NewSettingsRepository(prefs)

	// Step 6: Create services (with dependency injection)
	var remote ports.SheetSource
	if !config.Catalog.Offline {
		remote = sheet.NewRemoteSource(config.Catalog.SheetURL, config.Catalog.FetchTimeout, app.logger)
	}
	app.cache = sheet.NewFileCache(config.Catalog.CacheDir)

	app.catalog = service.NewSongCatalog(
		app.logger,
		app.env,
		remote,
		app.cache,
		sheet.NewCSVParser(app.logger),
		app.eventBus,
		service.CatalogOptions{Languages: config.Languages, Workers: config.Catalog.Workers},
	)

	app.rules = service.NewReplacementTable(app.logger, app.replacementRepo, app.eventBus)
	if err := app.rules.Load(); err != nil {
		// Non-fatal - start with no rules
		app.logger.Warn("failed to load replacement rules", slog.Any("error", err))
	}

	app.sequencer = service.NewPlaylistSequencer(app.logger, app.eventBus, nil)
	app.arbiter = service.NewPlaybackArbiter(app.logger, app.env, app.catalog, app.rules, app.playlistRepo, app.eventBus)
	app.prefs = service.NewPreferenceService(app.logger, app.settingsRepo, app.eventBus, config.Languages)
	app.controller = service.NewController(
		app.logger,
		app.catalog,
		app.rules,
		app.sequencer,
		app.arbiter,
		app.playlistRepo,
		app.prefs,
		config.Languages,
	)
	app.applySettingOverrides()

	// Step 7: Notifications and commands
	out := config.ChatOutput
	if out == nil {
		out = os.Stdout
	}
	app.chat = notify.NewChat(out, app.env)
	app.statusBar = notify.NewStatusBar()
	app.notifier = notify.NewNotifier(app.logger, app.eventBus, app.catalog, app.prefs, app.chat, app.statusBar)
	app.porch = command.New(app.controller, app.prefs, app.chat)

	// Step 8: Metrics and IPC
	var gatherer prometheus.Gatherer
	if config.IPC.Metrics {
		app.collector = metrics.NewCollector(app.logger, app.eventBus, true)
		gatherer = app.collector.Gatherer()
	}
	if config.IPC.Addr != "" {
		app.server = ipc.NewServer(app.logger, app.eventBus, app.arbiter, gatherer, config.IPC.Debug)
	}

	return app, nil
}

func (a *Application) applySettingOverrides() {
	for key, value := range a.config.Settings {
		if err := a.prefs.Set(key, value); err != nil {
			a.logger.Warn("ignoring configured setting", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// Start loads the catalog and starts the IPC server and the cache watcher.
// A catalog that cannot be loaded at all is logged; playback commands then
// report unknown songs until a later reload succeeds.
func (a *Application) Start(ctx context.Context) error {
	if err := a.catalog.Refresh(ctx); err != nil {
		a.logger.Error("catalog unavailable", slog.Any("error", err))
	}

	if a.server != nil {
		if err := a.server.Start(a.config.IPC.Addr); err != nil {
			return fmt.Errorf("failed to start ipc server: %w", err)
		}
	}

	if a.config.Catalog.WatchCache {
		if err := os.MkdirAll(a.cache.Dir(), 0o755); err != nil {
			a.logger.Warn("cache watcher disabled", slog.Any("error", err))
			return nil
		}
		w, err := sheet.WatchCache(a.cache, a.config.Catalog.WatchDebounce, a.reloadCached, a.logger)
		if err != nil {
			a.logger.Warn("cache watcher disabled", slog.Any("error", err))
			return nil
		}
		a.watcher = w
	}

	a.logger.Info("orchestra started", slog.Int("songs", a.catalog.Len()))
	return nil
}

func (a *Application) reloadCached(ctx context.Context) {
	if err := a.catalog.ReloadCached(ctx); err != nil {
		a.logger.Warn("cached catalog reload failed", slog.Any("error", err))
	}
}

// Update runs one tick: sample the live signal, let the arbiter react,
// move a running playlist along and flush chat output.
func (a *Application) Update(now time.Time) {
	primary, secondary := a.env.CurrentTracks()
	a.arbiter.Observe(primary, secondary)
	a.controller.Advance(now)
	a.notifier.Tick()
}

// Run ticks until ctx is done.
func (a *Application) Run(ctx context.Context) {
	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.Update(now)
		}
	}
}

// HandleCommand runs a porch command line. Errors are already shown in chat.
func (a *Application) HandleCommand(line string) error {
	return a.porch.Run(line)
}

// Logout ends the session: the playlist stops, any forced song is released
// and the arbiter returns to its zero state. Saved rules, playlists and
// settings are kept.
func (a *Application) Logout() {
	a.logger.Info("session ended")
	a.sequencer.Stop()
	a.arbiter.Reset()
}

// Shutdown gracefully shuts down the application.
// It is safe to call more than once.
func (a *Application) Shutdown() error {
	var errs []error
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")

		a.catalog.CancelRefresh()

		// hand the music back to the environment before anything stops listening
		a.sequencer.Stop()
		a.arbiter.Reset()

		if a.watcher != nil {
			if err := a.watcher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("cache watcher: %w", err))
			}
		}

		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("ipc server: %w", err))
			}
			cancel()
		}

		if a.collector != nil {
			a.collector.Close()
		}
		a.notifier.Close()

		if err := a.eventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}

		a.logger.Info("application shutdown complete")
	})
	return errors.Join(errs...)
}

// Controller returns the command boundary.
func (a *Application) Controller() *service.Controller { return a.controller }

// Arbiter returns the playback arbiter.
func (a *Application) Arbiter() *service.PlaybackArbiter { return a.arbiter }

// Catalog returns the song catalog.
func (a *Application) Catalog() *service.SongCatalog { return a.catalog }

// Preferences returns the preference service.
func (a *Application) Preferences() *service.PreferenceService { return a.prefs }

// StatusBar returns the status-bar entry.
func (a *Application) StatusBar() *notify.StatusBar { return a.statusBar }

// EventBus returns the event bus.
func (a *Application) EventBus() ports.EventBus { return a.eventBus }

// Environment returns the environment bridge in use.
func (a *Application) Environment() Environment { return a.env }

// PlaylistRepository returns the playlist store.
func (a *Application) PlaylistRepository() ports.PlaylistRepository { return a.playlistRepo }

// IPCAddr returns the IPC server address, or "" when it is not running.
func (a *Application) IPCAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}
