// Package http serves the MCP streamable HTTP transport on echo.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/slighter12/vault-mcp-go/dispatch"
	"github.com/slighter12/vault-mcp-go/lifecycle"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/vault-mcp-go/notify"
	"github.com/slighter12/vault-mcp-go/tools"
)

const defaultSessionTimeout = 10 * time.Minute

// StatsFunc reports per-tool call counts for the info endpoint.
type StatsFunc func(ctx context.Context) (map[string]int64, error)

type Server struct {
	echo       *echo.Echo
	sessions   *SessionManager
	snap       *tools.Snapshot
	dispatcher *dispatch.Dispatcher

	report         func(error)
	stats          StatsFunc
	sessionTimeout time.Duration

	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*Server)

// WithErrorReporter receives transport errors that are not HTTP errors.
func WithErrorReporter(report func(error)) Option {
	return func(s *Server) {
		if report != nil {
			s.report = report
		}
	}
}

// WithSessionTimeout sets how long an idle session without a stream lives.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.sessionTimeout = d
		}
	}
}

func WithStats(stats StatsFunc) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

// NewServer builds a server that dispatches calls for the tools in snap.
func NewServer(snap *tools.Snapshot, d *dispatch.Dispatcher, opts ...Option) *Server {
	s := &Server{
		echo:           echo.New(),
		sessions:       NewSessionManager(),
		snap:           snap,
		dispatcher:     d,
		report:         func(err error) { logger.Error("Transport error", "error", err) },
		sessionTimeout: defaultSessionTimeout,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_addr", v.RemoteIP,
			}
			if v.Error != nil {
				logger.Warn("HTTP request failed", append(args, "error", v.Error)...)
				return nil
			}
			logger.Debug("HTTP request", args...)
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerSessionID, headerProtocolVersion, "Last-Event-ID"},
		ExposeHeaders: []string{headerSessionID},
	}))
	s.echo.HTTPErrorHandler = s.handleError
	RegisterRoutes(s.echo, s)
}

func (s *Server) handleError(err error, c echo.Context) {
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		s.report(err)
	}
	s.echo.DefaultHTTPErrorHandler(err, c)
}

// Serve starts accepting on ln in the background.
func (s *Server) Serve(ln net.Listener) {
	s.listener = ln
	s.echo.Listener = ln
	go s.cleanupLoop()
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.report(err)
		}
	}()
}

// Listen binds addr and serves snap on it.
func Listen(ctx context.Context, addr string, snap *tools.Snapshot, d *dispatch.Dispatcher, opts ...Option) (*Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	s := NewServer(snap, d, opts...)
	s.Serve(ln)
	logger.Info("Streamable HTTP transport listening", "address", ln.Addr().String(), "endpoint", endpointPath)
	return s, nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown closes every SSE stream, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	s.sessions.CloseAll()

	err := s.echo.Shutdown(ctx)
	if s.listener != nil {
		if closeErr := s.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = errors.Join(err, closeErr)
		}
	}
	if err != nil {
		return fmt.Errorf("shutdown http transport: %w", err)
	}
	return nil
}

// Notify forwards a notice to every open SSE stream as an MCP log message.
func (s *Server) Notify(n notify.Notice) {
	level := string(n.Level)
	if n.Level == notify.LevelWarn {
		level = "warning"
	}
	msg := jsonrpc.NewNotification("notifications/message", map[string]any{
		"level":  level,
		"logger": "vault-mcp",
		"data": map[string]any{
			"key":     n.Key,
			"message": n.Message,
		},
	})
	for _, stream := range s.sessions.Streams() {
		if err := stream.SendSSE("message", msg); err != nil && !errors.Is(err, ErrStreamClosed) {
			s.report(err)
		}
	}
}

func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(s.sessionTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if removed := s.sessions.Cleanup(s.sessionTimeout); removed > 0 {
				logger.Debug("Expired idle MCP sessions", "count", removed)
			}
		}
	}
}

var (
	_ lifecycle.Listener = (*Server)(nil)
	_ notify.Sink        = (*Server)(nil)
)
