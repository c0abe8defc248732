// Package server exposes the batch intake workflow and the invoice
// persistence endpoints over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/talkoren/invoice-intake/internal/commit"
	"github.com/talkoren/invoice-intake/internal/export"
	"github.com/talkoren/invoice-intake/internal/extraction"
	"github.com/talkoren/invoice-intake/internal/reconcile"
	"github.com/talkoren/invoice-intake/internal/repository"
	"github.com/talkoren/invoice-intake/internal/session"
	"github.com/talkoren/invoice-intake/internal/staging"
	"go.uber.org/zap"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wires the intake workflow components behind a gin router.
type Server struct {
	config       Config
	httpServer   *http.Server
	router       *gin.Engine
	sessions     *session.Manager
	store        *staging.Store
	orchestrator *extraction.Orchestrator
	reconciler   *reconcile.Reconciler
	committer    *commit.Committer
	exporter     *export.Exporter
	writer       *repository.BatchWriter
	invoices     *repository.InvoiceRepository
	logger       *zap.Logger
}

// New creates the HTTP server with all routes registered.
func New(
	cfg Config,
	sessions *session.Manager,
	store *staging.Store,
	orchestrator *extraction.Orchestrator,
	reconciler *reconcile.Reconciler,
	committer *commit.Committer,
	exporter *export.Exporter,
	writer *repository.BatchWriter,
	invoices *repository.InvoiceRepository,
	logger *zap.Logger,
) *Server {
	router := gin.New()

	s := &Server{
		config:       cfg,
		router:       router,
		sessions:     sessions,
		store:        store,
		orchestrator: orchestrator,
		reconciler:   reconciler,
		committer:    committer,
		exporter:     exporter,
		writer:       writer,
		invoices:     invoices,
		logger:       logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "invoice-intake",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := s.router.Group("/api/v1")
	{
		batches := api.Group("/batches")
		{
			batches.POST("", s.createBatch)
			batches.GET("/:id", s.getBatch)
			batches.DELETE("/:id", s.deleteBatch)
			batches.POST("/:id/files", s.uploadFiles)
			batches.POST("/:id/extract", s.runExtraction)
			batches.PATCH("/:id/records/:index", s.editRecord)
			batches.GET("/:id/records/:index/boxes", s.recordBoxes)
			batches.POST("/:id/commit", s.commitAll)
			batches.POST("/:id/commit/:index", s.commitOne)
			batches.GET("/:id/export", s.exportBatch)
		}

		invoices := api.Group("/invoices")
		{
			invoices.POST("/check-conflicts", s.checkConflicts)
			invoices.POST("/batch", s.writeBatch)
			invoices.GET("", s.listInvoices)
		}
	}
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start begins serving. It blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
