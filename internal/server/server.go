// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
	"github.com/report-qa/cli/internal/pipeline"
	"github.com/report-qa/cli/internal/rag"
)

// Service is the part of the pipeline the HTTP layer drives.
type Service interface {
	IngestFile(ctx context.Context, path, companyName string) (pipeline.IngestResult, error)
	IngestDirectory(ctx context.Context, dir string) (*pipeline.IngestReport, error)
	Answer(ctx context.Context, text string, kind domain.Kind, sessionID string) rag.Result
	NewSession() string
	ClearSession(id string)
	DeleteSession(id string)
	ActiveSessionCount() int
}

// Server is the HTTP server.
type Server struct {
	router *gin.Engine
	addr   string
	server *http.Server
	logger *slog.Logger
}

// NewServer registers every route against svc.
func NewServer(svc Service, addr string) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	h := NewHandler(svc)

	router.GET("/health", h.Health)
	router.POST("/upload-pdf", h.UploadPDF)
	router.POST("/upload-pdf-by-path", h.UploadPDFByPath)
	router.POST("/process-directory", h.ProcessDirectory)
	router.POST("/ask", h.Ask)

	chat := router.Group("/chat")
	{
		chat.POST("/new", h.NewSession)
		chat.GET("/stats", h.Stats)
		chat.DELETE("/:sessionId/clear", h.ClearSession)
		chat.DELETE("/:sessionId", h.DeleteSession)
	}

	return &Server{
		router: router,
		addr:   addr,
		logger: log.NewModuleLogger("http", "server"),
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server starting", "addr", s.addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
