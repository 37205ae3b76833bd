// Package mock provides an in-memory implementation of the environment bridge.
// It stands in for the live host when testing services and when running the
// interactive simulator in cmd.
package mock

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// ErrForceFailed is returned by ForcePlayback when failure injection is on.
var ErrForceFailed = errors.New("mock force playback failed")

// ForceCall records one ForcePlayback directive.
type ForceCall struct {
	ID      int
	Restart bool
}

// Environment is a scriptable environment bridge and resource index.
// Tests set the live tracks directly; every forced directive is recorded.
//
// Thread-safety: This implementation is thread-safe.
type Environment struct {
	logger *slog.Logger

	// Live signal
	primary   int
	secondary int
	loading   bool

	// Forced state
	forced int
	calls  []ForceCall

	// BGM table
	resources map[int]domain.BGMResource
	missing   map[string]bool
	anyID     bool

	// Behavior configuration (for testing error scenarios)
	failForce bool

	mu sync.RWMutex
}

// NewEnvironment creates a new mock environment with an empty BGM table.
func NewEnvironment() *Environment {
	return &Environment{
		resources: make(map[int]domain.BGMResource),
		missing:   make(map[string]bool),
	}
}

// SetLogger sets the logger for this environment.
func (e *Environment) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

// SetTracks sets what the environment currently wants to play.
func (e *Environment) SetTracks(primary, secondary int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.primary = primary
	e.secondary = secondary
}

// SetLoadingScreen toggles the loading-screen flag.
func (e *Environment) SetLoadingScreen(loading bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = loading
}

// SetFailForce configures ForcePlayback to fail (for testing).
func (e *Environment) SetFailForce(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failForce = fail
}

// AddResource registers a BGM table entry.
func (e *Environment) AddResource(res domain.BGMResource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resources[res.ID] = res
}

// SetResolveAnyID makes every positive id resolve to a generated BGM entry
// unless one was added explicitly. The simulator uses it so any catalog row loads.
func (e *Environment) SetResolveAnyID(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.anyID = enabled
}

// SetFileMissing marks a resource path as absent on disk.
func (e *Environment) SetFileMissing(path string, missing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if missing {
		e.missing[path] = true
	} else {
		delete(e.missing, path)
	}
}

// CurrentTracks returns the live primary and secondary ids.
func (e *Environment) CurrentTracks() (int, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.primary, e.secondary
}

// ForcePlayback records the directive and updates the forced id.
func (e *Environment) ForcePlayback(id int, restart bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failForce {
		return ErrForceFailed
	}

	e.forced = id
	e.calls = append(e.calls, ForceCall{ID: id, Restart: restart})
	if e.logger != nil {
		e.logger.Debug("forced playback", slog.Int("id", id), slog.Bool("restart", restart))
	}
	return nil
}

// IsLoadingScreen reports the loading-screen flag.
func (e *Environment) IsLoadingScreen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

// Forced returns the id most recently forced (0 = ambient).
func (e *Environment) Forced() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.forced
}

// Calls returns a copy of every ForcePlayback directive received.
func (e *Environment) Calls() []ForceCall {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ForceCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// Resource returns the BGM table entry for id.
func (e *Environment) Resource(id int) (domain.BGMResource, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	res, ok := e.resources[id]
	if !ok && e.anyID && id > 0 {
		return domain.BGMResource{ID: id, FilePath: fmt.Sprintf("music/bgm/%05d.scd", id)}, true
	}
	return res, ok
}

// FileExists reports whether path has not been marked missing.
func (e *Environment) FileExists(path string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return path != "" && !e.missing[path]
}

// Verify interface implementations
var (
	_ ports.Environment   = (*Environment)(nil)
	_ ports.ResourceIndex = (*Environment)(nil)
)
