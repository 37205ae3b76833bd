package main

import (
	"bytes"
	"context"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/environment/mock"
	"github.com/tejashwikalptaru/orchestra/internal/app"
)

func TestHandleLine(t *testing.T) {
	env := mock.NewEnvironment()
	env.SetResolveAnyID(true)

	var out bytes.Buffer
	cfg := app.DefaultConfig()
	cfg.TestFyneApp = test.NewApp()
	cfg.Environment = env
	cfg.ChatOutput = &out
	cfg.LogLevel = "ERROR"
	cfg.Catalog.Offline = true
	cfg.Catalog.CacheDir = t.TempDir()
	cfg.Catalog.WatchCache = false
	cfg.IPC.Addr = ""

	application, err := app.NewApplication(cfg)
	require.NoError(t, err)
	defer application.Shutdown()
	require.NoError(t, application.Start(context.Background()))

	assert.False(t, handleLine(application, env, "env 12 3", &out))
	primary, secondary := env.CurrentTracks()
	assert.Equal(t, []int{12, 3}, []int{primary, secondary})

	assert.False(t, handleLine(application, env, "env twelve", &out))
	assert.Contains(t, out.String(), `invalid song id "twelve"`)

	assert.False(t, handleLine(application, env, "loading on", &out))
	assert.True(t, env.IsLoadingScreen())

	// the catalog is empty, so porch reports the song as unknown
	assert.False(t, handleLine(application, env, "/porch play 5", &out))
	assert.Contains(t, out.String(), "Song ID 5 not found.")

	out.Reset()
	assert.False(t, handleLine(application, env, "status", &out))
	assert.Contains(t, out.String(), "audible=0")

	assert.False(t, handleLine(application, env, "dance", &out))
	assert.True(t, handleLine(application, env, "quit", &out))
}
