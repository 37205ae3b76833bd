// Package ipc exposes song changes to other local processes: a small HTTP API
// for polling, a websocket feed for push notifications and the metrics endpoint.
package ipc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// Channels a Message can be sent on.
const (
	// ChannelSongChanged carries every song change
	ChannelSongChanged = "song_changed"

	// ChannelOverrideSongChanged carries only songs forced by the arbiter
	ChannelOverrideSongChanged = "override_song_changed"

	// ChannelCurrentSong is the greeting sent to a new websocket client
	ChannelCurrentSong = "current_song"
)

// Message is one notification pushed to websocket clients.
type Message struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	SongID    int       `json:"songId"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(channel string, songID int) Message {
	return Message{
		ID:        uuid.NewString(),
		Channel:   channel,
		SongID:    songID,
		Timestamp: time.Now(),
	}
}

// SongResponse is the body of GET /song.
type SongResponse struct {
	SongID   int  `json:"songId"`
	Live     int  `json:"live"`
	Audible  int  `json:"audible"`
	Override bool `json:"override"`
}

// StateSource is the part of the arbiter the server reads.
type StateSource interface {
	State() domain.ArbiterState
	EffectiveSongID() int
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// only local processes connect
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the IPC HTTP server.
type Server struct {
	// Dependencies (injected)
	logger *slog.Logger
	bus    ports.EventBus
	state  StateSource

	router *gin.Engine
	hub    *Hub
	sub    domain.SubscriptionID

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
	mu         sync.Mutex
}

// NewServer creates the server and subscribes it to song changes. gatherer
// may be nil to leave out the metrics endpoint.
func NewServer(logger *slog.Logger, bus ports.EventBus, state StateSource, gatherer prometheus.Gatherer, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = logger.With(slog.String("component", "ipc"))
	s := &Server{
		logger: logger,
		bus:    bus,
		state:  state,
		router: gin.New(),
		hub:    NewHub(logger),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes(gatherer)

	s.sub = bus.Subscribe(domain.EventSongChanged, s.onSongChanged)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.Len()})
	})
	s.router.GET("/song", s.getSong)
	s.router.GET("/ws", s.websocket)

	if gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("ipc request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) getSong(c *gin.Context) {
	state := s.state.State()
	c.JSON(http.StatusOK, SongResponse{
		SongID:   s.state.EffectiveSongID(),
		Live:     state.LiveSongID,
		Audible:  state.AudibleSongID,
		Override: state.PlayingViaOverride,
	})
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	greeting := newMessage(ChannelCurrentSong, s.state.EffectiveSongID())
	s.hub.serve(conn, &greeting)
}

func (s *Server) onSongChanged(event domain.Event) {
	ev, ok := event.(domain.SongChangedEvent)
	if !ok {
		return
	}
	s.hub.Broadcast(newMessage(ChannelSongChanged, ev.New))
	if ev.PlayedByOverride {
		s.hub.Broadcast(newMessage(ChannelOverrideSongChanged, ev.New))
	}
}

// Handler returns the HTTP handler, for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	s.serveErr = make(chan error, 1)
	srv, errCh := s.httpServer, s.serveErr
	s.mu.Unlock()

	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	s.logger.Info("ipc server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL of a started server.
func (s *Server) URL() string {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return ""
	}
	if p, _ := strconv.Atoi(port); p == 0 {
		return ""
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Shutdown unsubscribes from the bus, disconnects websocket clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bus.Unsubscribe(s.sub)
	s.hub.Close()

	s.mu.Lock()
	srv, errCh := s.httpServer, s.serveErr
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-errCh
}
