package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luispater/feeOptOut/internal/portal"
	log "github.com/sirupsen/logrus"
)

// Server represents the API server
type Server struct {
	engine      *gin.Engine
	server      *http.Server
	queue       *RequestQueue
	handlers    *APIHandlers
	sessionTTL  time.Duration
	stopSweeper context.CancelFunc
}

// ServerConfig contains configuration for the API server
type ServerConfig struct {
	Port            string
	Debug           bool
	Handler         *portal.Handler
	ResponseTimeout time.Duration
	// SessionTTL is how long an idle session is kept. Zero keeps the default.
	SessionTTL time.Duration
}

const (
	defaultSessionTTL = time.Hour
	maxSweepInterval  = time.Minute
)

// NewServer creates a new API server instance
func NewServer(config *ServerConfig) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	queue := NewRequestQueue(HandlerProcessor{Handler: config.Handler})
	handlers := NewAPIHandlers(queue, config.Handler, config.ResponseTimeout)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(corsMiddleware())

	sessionTTL := config.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}

	s := &Server{
		engine:     engine,
		queue:      queue,
		handlers:   handlers,
		sessionTTL: sessionTTL,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    ":" + config.Port,
		Handler: engine,
	}
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	v1 := s.engine.Group("/v1")
	{
		v1.POST("/message", s.handlers.Message)
		v1.GET("/page", s.handlers.Page)
		v1.GET("/session/:id", s.handlers.Session)
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Fee Opt-out Agent",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /v1/message",
				"GET /v1/page",
				"GET /v1/session/:id",
			},
		})
	})
}

// Handler exposes the routes, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// StartQueue starts the message queue and the session sweeper without
// listening.
func (s *Server) StartQueue() error {
	if err := s.queue.Start(); err != nil {
		return fmt.Errorf("failed to start request queue: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweeper = cancel
	go s.sweepSessions(ctx)
	return nil
}

// StopQueue stops what StartQueue started.
func (s *Server) StopQueue() error {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	return s.queue.Stop()
}

func (s *Server) sweepSessions(ctx context.Context) {
	interval := min(s.sessionTTL, maxSweepInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.handlers.sweepSessions(now, s.sessionTTL); n > 0 {
				log.Debugf("Forgot %d idle session(s)", n)
			}
		}
	}
}

// Start starts the API server
func (s *Server) Start() error {
	if err := s.StartQueue(); err != nil {
		return err
	}

	log.Debugf("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	if err := s.StopQueue(); err != nil {
		log.Debugf("Error stopping request queue: %v", err)
	}

	log.Debug("API server stopped")
	return nil
}

// requestLogger logs each request through logrus instead of gin's own writer.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s -> %d in %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, "+SessionHeader)
		c.Header("Access-Control-Expose-Headers", SessionHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
