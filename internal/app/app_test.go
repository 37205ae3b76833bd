package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/environment/mock"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/ipc"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/sheet"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/testutil"
)

const (
	testMetadata = `"id","duration"
"1","120"
"2","95.5"
"3","60"
`
	testEnglish = `"id","name","alt","special","locations","info"
"1","Answers","","","Limsa Lominsa","Day theme"
"2","Torn from the Heavens","","","",""
"3","Null BGM","","","",""
`
)

// seedCache writes the given metadata and English sheets to dir.
func seedCache(t *testing.T, dir, metadata, english string) {
	t.Helper()
	cache := sheet.NewFileCache(dir)
	require.NoError(t, cache.SaveSheet(domain.SheetMetadata, metadata))
	require.NoError(t, cache.SaveSheet("en", english))
}

func testConfig(t *testing.T, env *mock.Environment, chat *bytes.Buffer) Config {
	t.Helper()
	dir := t.TempDir()
	seedCache(t, dir, testMetadata, testEnglish)

	cfg := DefaultConfig()
	cfg.TestFyneApp = test.NewApp()
	cfg.Environment = env
	cfg.ChatOutput = chat
	cfg.Languages = []string{"en"}
	cfg.LogLevel = "ERROR"
	cfg.Catalog.Offline = true
	cfg.Catalog.CacheDir = dir
	cfg.Catalog.WatchCache = false
	cfg.IPC.Addr = "127.0.0.1:0"
	return cfg
}

func newTestEnvironment() *mock.Environment {
	env := mock.NewEnvironment()
	env.SetResolveAnyID(true)
	return env
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "com.orchestra.app", config.AppID)
	assert.Equal(t, "Orchestra", config.AppName)
	assert.Equal(t, []string{"en", "ja", "de", "fr", "zh"}, config.Languages)
	assert.Equal(t, sheet.DefaultURLTemplate, config.Catalog.SheetURL)
	assert.NotEmpty(t, config.Catalog.CacheDir)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
languages: [en, ja]
catalog:
  cache_dir: /tmp/orchestra-sheets
  fetch_timeout: 3s
ipc:
  addr: 127.0.0.1:9999
settings:
  showid: "on"
`), 0o644))

	t.Setenv("ORCHESTRA_TICK_INTERVAL", "250ms")
	t.Setenv("ORCHESTRA_CATALOG_OFFLINE", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ja"}, cfg.Languages)
	assert.Equal(t, "/tmp/orchestra-sheets", cfg.Catalog.CacheDir)
	assert.Equal(t, 3*time.Second, cfg.Catalog.FetchTimeout)
	assert.Equal(t, "127.0.0.1:9999", cfg.IPC.Addr)
	assert.Equal(t, map[string]string{"showid": "on"}, cfg.Settings)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.True(t, cfg.Catalog.Offline)

	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().AppID, cfg.AppID)
	assert.True(t, cfg.IPC.Metrics)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick_interval: 0s\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "tick_interval")
}

func TestNewApplication_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Languages = nil

	_, err := NewApplication(cfg)
	assert.Error(t, err)
}

func TestApplication_EndToEnd(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, append(testutil.IgnoreFyneGoroutines(), testutil.IgnoreHTTPGoroutines()...)...)

	env := newTestEnvironment()
	var chat bytes.Buffer
	cfg := testConfig(t, env, &chat)
	cfg.Settings = map[string]string{"showid": "on"}

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Shutdown()) }()

	require.NoError(t, app.Start(context.Background()))
	assert.Equal(t, 2, app.Catalog().Len(), "Null BGM is not a song")
	assert.True(t, app.Preferences().Settings().ShowIDInStatusBar)

	// the environment starts playing song 1
	env.SetTracks(1, 0)
	app.Update(time.Now())
	assert.Contains(t, chat.String(), "Now playing Answers.")
	assert.Equal(t, "♪ Answers - 1", app.StatusBar().Text())
	assert.Equal(t, "Limsa Lominsa\nDay theme", app.StatusBar().Tooltip())

	// a manual play is forced and bracketed
	require.NoError(t, app.HandleCommand("/porch play 2"))
	assert.Equal(t, 2, env.Forced())
	app.Update(time.Now())
	assert.Contains(t, chat.String(), "Now playing [Torn from the Heavens].")

	// the IPC server reports it
	resp, err := http.Get("http://" + app.IPCAddr() + "/song")
	require.NoError(t, err)
	var song ipc.SongResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&song))
	resp.Body.Close()
	assert.Equal(t, ipc.SongResponse{SongID: 2, Live: 1, Audible: 2, Override: true}, song)

	// metrics are exposed alongside
	resp, err = http.Get("http://" + app.IPCAddr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// bad input is reported in chat and changes nothing
	assert.Error(t, app.HandleCommand("porch play 999"))
	assert.Contains(t, chat.String(), "Song ID 999 not found.")
	assert.Equal(t, 2, env.Forced())

	require.NoError(t, app.HandleCommand("porch stop"))
	assert.Equal(t, 0, env.Forced())

	// logout clears the session
	require.NoError(t, app.HandleCommand("porch play 1"))
	require.Equal(t, 1, env.Forced())
	app.Logout()
	assert.Equal(t, domain.ArbiterState{}, app.Arbiter().State())
	assert.Zero(t, env.Forced(), "logout releases the forced song")

	// nothing is left for stop to clear
	require.NoError(t, app.HandleCommand("porch stop"))
	assert.Zero(t, env.Forced())

	http.DefaultClient.CloseIdleConnections()
}

func TestApplication_PlaylistAdvancesOnTick(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreFyneGoroutines()...)

	env := newTestEnvironment()
	var chat bytes.Buffer
	cfg := testConfig(t, env, &chat)
	cfg.IPC.Addr = ""

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer app.Shutdown()
	require.NoError(t, app.Start(context.Background()))

	require.NoError(t, app.PlaylistRepository().Save(&domain.Playlist{
		Name:  "Night Drive",
		Songs: []int{1, 2},
	}))

	require.NoError(t, app.HandleCommand("porch play playlist Night Drive"))
	assert.Equal(t, 1, env.Forced())

	start := time.Now()
	app.Update(start.Add(time.Minute))
	assert.Equal(t, 1, env.Forced(), "song 1 runs for two minutes")

	app.Update(start.Add(2*time.Minute + time.Second))
	assert.Equal(t, 2, env.Forced())
	assert.Empty(t, app.IPCAddr())
}

func TestApplication_PorchModeCommandsAreCoupled(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreFyneGoroutines()...)

	env := newTestEnvironment()
	var chat bytes.Buffer
	cfg := testConfig(t, env, &chat)
	cfg.IPC.Addr = ""

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer app.Shutdown()
	require.NoError(t, app.Start(context.Background()))

	require.NoError(t, app.PlaylistRepository().Save(&domain.Playlist{
		Name:       "Night Drive",
		Songs:      []int{1, 2},
		RepeatMode: domain.RepeatOnce,
	}))
	require.NoError(t, app.HandleCommand("porch play playlist Night Drive"))

	require.NoError(t, app.HandleCommand("porch shuffle on"))
	saved, err := app.PlaylistRepository().Load("Night Drive")
	require.NoError(t, err)
	assert.Equal(t, domain.ShuffleOn, saved.ShuffleMode)
	assert.Equal(t, domain.RepeatAll, saved.RepeatMode)

	require.NoError(t, app.HandleCommand("porch repeat one"))
	saved, err = app.PlaylistRepository().Load("Night Drive")
	require.NoError(t, err)
	assert.Equal(t, domain.ShuffleOff, saved.ShuffleMode)
	assert.Equal(t, domain.RepeatOne, saved.RepeatMode)
}

func TestApplication_WatcherReloadsCache(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreFyneGoroutines()...)

	env := newTestEnvironment()
	var chat bytes.Buffer
	cfg := testConfig(t, env, &chat)
	cfg.IPC.Addr = ""
	cfg.Catalog.WatchCache = true
	cfg.Catalog.WatchDebounce = 20 * time.Millisecond

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer app.Shutdown()
	require.NoError(t, app.Start(context.Background()))
	require.False(t, app.Catalog().Exists(4))

	// an external edit to the cached sheets
	cache := sheet.NewFileCache(cfg.Catalog.CacheDir)
	metadata := testMetadata + `"4","30"` + "\n"
	english := strings.Replace(testEnglish, `"3","Null BGM"`, `"4","Footsteps in the Snow"`, 1)
	require.NoError(t, os.WriteFile(cache.Path("en"), []byte(english), 0o644))
	require.NoError(t, os.WriteFile(cache.Path(domain.SheetMetadata), []byte(metadata), 0o644))

	require.Eventually(t, func() bool {
		return app.Catalog().Exists(4)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplication_ShutdownTwice(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreFyneGoroutines()...)

	env := newTestEnvironment()
	var chat bytes.Buffer
	cfg := testConfig(t, env, &chat)

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	assert.NoError(t, app.Shutdown())
	assert.NoError(t, app.Shutdown())
}

func TestApplication_ShutdownReleasesForcedSong(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreFyneGoroutines()...)

	env := newTestEnvironment()
	var chat bytes.Buffer
	cfg := testConfig(t, env, &chat)
	cfg.IPC.Addr = ""

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	env.SetTracks(1, 0)
	app.Update(time.Now())
	require.NoError(t, app.HandleCommand("porch play 2"))
	require.Equal(t, 2, env.Forced())

	require.NoError(t, app.Shutdown())
	assert.Zero(t, env.Forced())
	assert.Equal(t, domain.ArbiterState{}, app.Arbiter().State())
}

func TestApplication_RunStopsWithContext(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreFyneGoroutines()...)

	env := newTestEnvironment()
	var chat bytes.Buffer
	cfg := testConfig(t, env, &chat)
	cfg.IPC.Addr = ""
	cfg.TickInterval = 5 * time.Millisecond

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer app.Shutdown()
	require.NoError(t, app.Start(context.Background()))

	env.SetTracks(2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return app.Arbiter().State().LiveSongID == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestVersionInfo(t *testing.T) {
	info := VersionInfo{Version: "dev", GitCommit: "abc123", BuildTime: "today"}
	assert.Equal(t, "Orchestra dev (commit: abc123, built: today)", info.FullString())

	info.GitTag = "v1.2.0"
	assert.Equal(t, "Orchestra v1.2.0 (commit: abc123, built: today)", info.FullString())
	assert.Equal(t, Version, GetVersionInfo().Version)
}
