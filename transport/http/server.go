package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/slighter12/calc-mcp-go/config"
	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/transport/shared"
)

// Server serves one ToolHost over MCP streamable HTTP.
type Server struct {
	host           shared.ToolHost
	info           mcp.Implementation
	sessionManager *SessionManager
	config         *config.Config
	echo           *echo.Echo
}

func NewServer(cfg *config.Config, host shared.ToolHost, info mcp.Implementation) *Server {
	s := &Server{
		host:           host,
		info:           info,
		sessionManager: NewSessionManager(),
		config:         cfg,
		echo:           echo.New(),
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_addr", c.RealIP())
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, mcp.HeaderSessionID, mcp.HeaderProtocolVersion, "Last-Event-ID"},
		ExposeHeaders: []string{mcp.HeaderSessionID},
	}))
	RegisterRoutes(s.echo, s)
}

// Handler exposes the routed echo instance, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Address is the host:port the server listens on.
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Start listens until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	stopCleanup, err := s.StartSessionCleanup()
	if err != nil {
		return err
	}
	defer stopCleanup()

	addr := s.Address()
	logger.Info("Streamable HTTP server starting to listen",
		"address", addr,
		"endpoint", s.config.Server.Endpoint,
		"stateless", s.config.Server.Stateless)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(s.config.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Shutting down streamable HTTP server", "timeout", timeout)
	// Open SSE streams block Shutdown, so end them first.
	s.closeAllSessions()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartSessionCleanup schedules idle session expiry. The returned func stops
// the scheduler and waits for a running job.
func (s *Server) StartSessionCleanup() (func(), error) {
	if s.config.Server.Stateless {
		return func() {}, nil
	}

	idle := time.Duration(s.config.Server.Sessions.IdleTimeoutSeconds) * time.Second
	scheduler := cron.New()
	_, err := scheduler.AddFunc(s.config.Server.Sessions.CleanupSchedule, func() {
		if removed := s.sessionManager.CleanupSessions(idle); removed > 0 {
			logger.Info("Expired idle MCP sessions", "removed", removed, "remaining", s.sessionManager.Count())
		}
	})
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	logger.Debug("Session cleanup scheduled", "schedule", s.config.Server.Sessions.CleanupSchedule, "idle_timeout", idle)

	return func() {
		<-scheduler.Stop().Done()
	}, nil
}

func (s *Server) closeAllSessions() {
	for _, sessionID := range s.sessionManager.SessionIDsWithTransport() {
		if transport, ok := s.sessionManager.GetTransport(sessionID); ok {
			transport.Close()
		}
	}
}

func (s *Server) GetSessionManager() *SessionManager {
	return s.sessionManager
}

func (s *Server) GetConfig() *config.Config {
	return s.config
}
