// Package httpapi wires the session server onto an Echo router: the
// websocket upgrade, the text-only control endpoint, and the two streaming
// endpoints that serve track bytes. Grounded on bken's
// internal/httpapi/server.go (Echo app construction, slog request logger,
// graceful Run/Shutdown).
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rustyguts/syncradio/internal/session"
	"github.com/rustyguts/syncradio/internal/wire"
)

// Server is the Echo application exposing the session server's external
// interfaces (§6).
type Server struct {
	echo *echo.Echo

	sess      *session.Server
	trackPath func(trackURL string) (string, bool)
}

// New constructs an Echo app with the /ws, /control, /stream, /stream/live
// and /health routes. trackPath resolves the current track_url to a local
// file path for range-aware serving; it returns ok=false for sentinels like
// "live" or "stream" that have no local file. idleTimeout is applied to the
// underlying http.Server; pass 0 to keep Go's default (no idle timeout).
func New(sess *session.Server, trackPath func(trackURL string) (string, bool), idleTimeout time.Duration) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Server.IdleTimeout = idleTimeout

	s := &Server{echo: e, sess: sess, trackPath: trackPath}
	s.registerRoutes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			path := req.URL.Path
			if path == "/ws" || path == "/health" {
				slog.Debug("http request", "method", req.Method, "path", path, "status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds())
			} else {
				slog.Info("http request", "method", req.Method, "path", path, "status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds(), "remote", c.RealIP())
			}
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance, for tests and for cmd/
// wiring that wants to add further middleware.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/control", s.handleControl)
	s.echo.GET("/stream", s.handleStream)
	s.echo.GET("/stream/live", s.handleStreamLive)
	session.NewWSHandler(s.sess).Register(s.echo)
}

// Run starts Echo at addr and blocks until ctx is canceled or startup
// fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down http server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		slog.Info("http server stopped")
		return nil
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Peers  int    `json:"peers"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Peers: s.sess.PeerCount()})
}

// controlCommandRequest mirrors wire.ControlCommand in a JSON-friendly text
// form; POST /control is text-only per §6.
type controlCommandRequest struct {
	Kind       string `json:"kind"`
	StartAtMs  uint64 `json:"start_at_ms,omitempty"`
	DelayMs    uint64 `json:"delay_ms,omitempty"`
	PositionMs uint64 `json:"position_ms,omitempty"`
}

func (s *Server) handleControl(c echo.Context) error {
	var req controlCommandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid control command body")
	}

	var kind wire.CommandKind
	switch req.Kind {
	case "play":
		kind = wire.CommandPlay
	case "pause":
		kind = wire.CommandPause
	case "seek":
		kind = wire.CommandSeek
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown control command kind")
	}

	if err := s.sess.ApplyCommand(wire.ControlCommand{
		Kind:       kind,
		StartAtMs:  req.StartAtMs,
		DelayMs:    req.DelayMs,
		PositionMs: req.PositionMs,
	}); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// handleStream serves the currently hosted track file with HTTP range
// support via Echo's c.File, which delegates range handling to
// net/http.ServeContent.
func (s *Server) handleStream(c echo.Context) error {
	trackURL := s.sess.TrackURL()
	if trackURL == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no track selected")
	}
	path, ok := s.trackPath(trackURL)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "track has no local file")
	}
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "track file not found")
	}
	return c.File(path)
}

// handleStreamLive streams concatenated audio chunks from the audio bus
// for the lifetime of the request. The subscription is closed on every
// return path so the producer goroutine's blocked sub.Next() call wakes
// immediately instead of leaking until the next unrelated Publish.
func (s *Server) handleStreamLive(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/octet-stream")
	c.Response().WriteHeader(http.StatusOK)

	sub := s.sess.SubscribeAudio()
	defer sub.Close()
	ctx := c.Request().Context()

	chunks := make(chan []byte, 16)
	go func() {
		for {
			chunk, _, ok := sub.Next()
			if !ok {
				return
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk := <-chunks:
			if _, err := c.Response().Write(chunk); err != nil {
				return err
			}
			c.Response().Flush()
		}
	}
}
