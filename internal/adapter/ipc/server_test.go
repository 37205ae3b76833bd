package ipc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/logger"
	"github.com/tejashwikalptaru/orchestra/internal/testutil"
)

type fakeState struct {
	mu    sync.Mutex
	state domain.ArbiterState
}

func (f *fakeState) State() domain.ArbiterState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeState) EffectiveSongID() int {
	s := f.State()
	if s.AudibleSongID != 0 {
		return s.AudibleSongID
	}
	return s.LiveSongID
}

func newTestServer(t *testing.T, state *fakeState) (*Server, *eventbus.SyncEventBus, *httptest.Server) {
	t.Helper()
	bus := eventbus.NewSyncEventBus()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "orchestra_test_total", Help: "test"}))

	s := NewServer(logger.NewTestLogger(), bus, state, reg, false)
	return s, bus, httptest.NewServer(s.Handler())
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_HealthAndSong(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreHTTPGoroutines()...)

	state := &fakeState{state: domain.ArbiterState{LiveSongID: 12, AudibleSongID: 40, PlayingViaOverride: true}}
	s, bus, srv := newTestServer(t, state)
	defer bus.Close()
	defer srv.Close()
	defer func() { require.NoError(t, s.Shutdown(context.Background())) }()

	var health map[string]any
	getJSON(t, srv.URL+"/health", &health)
	assert.Equal(t, "ok", health["status"])

	var song SongResponse
	getJSON(t, srv.URL+"/song", &song)
	assert.Equal(t, SongResponse{SongID: 40, Live: 12, Audible: 40, Override: true}, song)
}

func TestServer_Metrics(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreHTTPGoroutines()...)

	s, bus, srv := newTestServer(t, &fakeState{})
	defer bus.Close()
	defer srv.Close()
	defer func() { require.NoError(t, s.Shutdown(context.Background())) }()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "orchestra_test_total 0")
}

func TestServer_WebsocketFeed(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreHTTPGoroutines()...)

	state := &fakeState{state: domain.ArbiterState{LiveSongID: 12}}
	s, bus, srv := newTestServer(t, state)
	defer bus.Close()
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	greeting := readMessage(t, conn)
	assert.Equal(t, ChannelCurrentSong, greeting.Channel)
	assert.Equal(t, 12, greeting.SongID)
	assert.NotEmpty(t, greeting.ID)
	assert.Equal(t, 1, s.hub.Len())

	bus.Publish(domain.NewSongChangedEvent(12, 30, false))
	msg := readMessage(t, conn)
	assert.Equal(t, ChannelSongChanged, msg.Channel)
	assert.Equal(t, 30, msg.SongID)

	bus.Publish(domain.NewSongChangedEvent(30, 44, true))
	first, second := readMessage(t, conn), readMessage(t, conn)
	assert.Equal(t, ChannelSongChanged, first.Channel)
	assert.Equal(t, ChannelOverrideSongChanged, second.Channel)
	assert.Equal(t, 44, second.SongID)
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 0, s.hub.Len())

	// the server says goodbye with a close frame
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	// no more broadcasts after shutdown
	assert.False(t, bus.HasSubscribers(domain.EventSongChanged))
}

func TestServer_StartAndShutdown(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreHTTPGoroutines()...)

	bus := eventbus.NewSyncEventBus()
	defer bus.Close()

	s := NewServer(logger.NewTestLogger(), bus, &fakeState{}, nil, false)
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start("127.0.0.1:0"))
	require.NotEmpty(t, s.URL())

	resp, err := http.Get(s.URL() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no gatherer, no metrics route")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	http.DefaultClient.CloseIdleConnections()
}
