// Package server exposes notification sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// streamBuffer is the per-client snapshot queue for the event stream.
const streamBuffer = 4

// Server is the HTTP API for notification sessions.
type Server struct {
	// router is the gin engine.
	router *gin.Engine
	// port is the listen port.
	port string
	// sessions holds one notification service per user.
	sessions *Sessions
	logger   *slog.Logger
}

// NewServer builds the router. jwtSecret verifies bearer tokens.
func NewServer(port, jwtSecret string, sessions *Sessions, logger *slog.Logger) *Server {
	router := gin.New()
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))

	s := &Server{
		router:   router,
		port:     port,
		sessions: sessions,
		logger:   logger,
	}
	s.setupRoutes(jwtSecret)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully and stops
// every session.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	// Close sessions first so event streams end and shutdown can drain.
	s.sessions.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) setupRoutes(jwtSecret string) {
	api := s.router.Group("/api/v1")
	api.Use(JWTAuth(jwtSecret))
	{
		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleList())
			notifications.GET("/unread", s.handleListUnread())
			notifications.GET("/stream", s.handleStream())
			notifications.POST("/refresh", s.handleRefresh())
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
			notifications.DELETE("/read", s.handleClearRead())
		}

		api.DELETE("/session", s.handleLogout())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notifyd", "sessions": s.sessions.Len()})
	})
}

// session resolves the caller's service. On failure the response has been
// written and ok is false.
func (s *Server) session(c *gin.Context) (*notify.Service, bool) {
	role, err := model.ParseRecipient(GetRole(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	svc, err := s.sessions.Get(GetUserID(c), role)
	if err != nil {
		s.logger.Error("Failed to open session", "user_id", GetUserID(c), "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "session unavailable"})
		return nil, false
	}
	return svc, true
}

func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := s.session(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Snapshot())
	}
}

// unreadResponse is the body of GET /notifications/unread.
type unreadResponse struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := s.session(c)
		if !ok {
			return
		}
		snap := svc.Snapshot()
		c.JSON(http.StatusOK, unreadResponse{
			Notifications: snap.Unread(),
			UnreadCount:   snap.UnreadCount,
		})
	}
}

func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := s.session(c)
		if !ok {
			return
		}
		svc.Refresh(c.Request.Context())
		c.JSON(http.StatusOK, svc.Snapshot())
	}
}

func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "notification id required"})
			return
		}
		svc, ok := s.session(c)
		if !ok {
			return
		}
		svc.MarkRead(c.Request.Context(), id)
		c.JSON(http.StatusOK, svc.Snapshot())
	}
}

func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := s.session(c)
		if !ok {
			return
		}
		svc.MarkAllRead(c.Request.Context())
		c.JSON(http.StatusOK, svc.Snapshot())
	}
}

func (s *Server) handleClearRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := s.session(c)
		if !ok {
			return
		}
		svc.ClearRead(c.Request.Context())
		c.JSON(http.StatusOK, svc.Snapshot())
	}
}

// handleStream sends the current snapshot and every later one as
// server-sent events until the client leaves or the session ends.
func (s *Server) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, ok := s.session(c)
		if !ok {
			return
		}

		id, ch, cancel := svc.Subscribe(streamBuffer)
		defer cancel()
		s.logger.Debug("Stream opened", "user_id", GetUserID(c), "subscriber", id)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		c.Status(http.StatusOK)

		for {
			select {
			case snap, open := <-ch:
				if !open {
					s.logger.Debug("Stream ended by session", "user_id", GetUserID(c), "subscriber", id)
					return
				}
				c.SSEvent("snapshot", snap)
				c.Writer.Flush()
			case <-c.Request.Context().Done():
				s.logger.Debug("Stream closed by client", "user_id", GetUserID(c), "subscriber", id)
				return
			}
		}
	}
}

func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		stopped := s.sessions.Stop(GetUserID(c))
		c.JSON(http.StatusOK, gin.H{"stopped": stopped})
	}
}
