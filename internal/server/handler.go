package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/report-qa/cli/internal/documents"
	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
)

// Handler serves the HTTP routes.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler creates a handler.
func NewHandler(svc Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: log.NewModuleLogger("http", "handler"),
	}
}

// UploadResponse reports the outcome of an ingestion request.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Skipped  bool   `json:"skipped"`
}

// UploadByPathRequest names a file already on the server.
type UploadByPathRequest struct {
	FilePath    string `form:"filePath" json:"filePath" binding:"required"`
	CompanyName string `form:"companyName" json:"companyName"`
}

// ProcessDirectoryRequest names a directory to ingest.
type ProcessDirectoryRequest struct {
	Directory string `json:"directory" binding:"required"`
}

// AskRequest is a question. An empty SessionID starts a new session.
type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	Kind      string `json:"kind"`
	SessionID string `json:"sessionId"`
}

// AskResponse carries the answer and the session it belongs to.
type AskResponse struct {
	SessionID string        `json:"sessionId"`
	Answer    domain.Answer `json:"answer"`
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UploadPDF ingests an uploaded report.
// POST /upload-pdf
func (h *Handler) UploadPDF(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if !documents.IsSupported(file.Filename) {
		c.JSON(http.StatusBadRequest, UploadResponse{Message: "unsupported file type", Filename: file.Filename})
		return
	}

	companyName := strings.TrimSpace(c.PostForm("companyName"))
	if companyName == "" {
		companyName = documents.CompanyFromFileName(file.Filename)
	}

	tmp, err := os.CreateTemp("", "rag-upload-*"+strings.ToLower(filepath.Ext(file.Filename)))
	if err != nil {
		h.logger.Error("failed to create temp file", "error", err)
		c.JSON(http.StatusInternalServerError, UploadResponse{Message: err.Error(), Filename: file.Filename})
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		h.logger.Error("failed to save upload", "file", file.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, UploadResponse{Message: err.Error(), Filename: file.Filename})
		return
	}

	h.logger.Info("upload received", "file", file.Filename, "company", companyName, "size", file.Size)
	h.ingest(c, tmpPath, companyName, file.Filename)
}

// UploadPDFByPath ingests a report already on the server's disk.
// POST /upload-pdf-by-path
func (h *Handler) UploadPDFByPath(c *gin.Context) {
	var req UploadByPathRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("ingest by path", "path", req.FilePath, "company", req.CompanyName)
	h.ingest(c, req.FilePath, strings.TrimSpace(req.CompanyName), req.FilePath)
}

func (h *Handler) ingest(c *gin.Context, path, companyName, displayName string) {
	res, err := h.svc.IngestFile(c.Request.Context(), path, companyName)
	if err != nil {
		h.logger.Error("failed to ingest document", "file", displayName, "error", err)
		c.JSON(http.StatusInternalServerError, UploadResponse{
			Message:  "processing failed: " + err.Error(),
			Filename: displayName,
		})
		return
	}

	message := "document processed"
	if res.Skipped {
		message = "document already ingested"
	}
	c.JSON(http.StatusOK, UploadResponse{
		Success:  true,
		Message:  message,
		Filename: displayName,
		Chunks:   res.Chunks,
		Skipped:  res.Skipped,
	})
}

// ProcessDirectory ingests every supported file in a directory.
// POST /process-directory
func (h *Handler) ProcessDirectory(c *gin.Context) {
	var req ProcessDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.svc.IngestDirectory(c.Request.Context(), req.Directory)
	if err != nil {
		h.logger.Error("directory ingestion failed", "dir", req.Directory, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingested": report.Ingested(),
		"skipped":  report.Skipped(),
		"failed":   len(report.Failures),
		"report":   report,
	})
}

// Ask answers a question within a session, creating one when none is given.
// POST /ask
func (h *Handler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.svc.NewSession()
		h.logger.Info("session created", "session_id", sessionID)
	}

	result := h.svc.Answer(c.Request.Context(), req.Question, kind, sessionID)
	if !result.OK() {
		h.logger.Warn("question not answered", "session_id", sessionID, "stage", result.Failure.Stage, "error", result.Failure.Err)
	}

	c.JSON(http.StatusOK, AskResponse{SessionID: sessionID, Answer: result.Answer})
}

// NewSession starts a conversation.
// POST /chat/new
func (h *Handler) NewSession(c *gin.Context) {
	id := h.svc.NewSession()
	h.logger.Info("session created", "session_id", id)
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "message": "session created"})
}

// ClearSession empties a session's history.
// DELETE /chat/:sessionId/clear
func (h *Handler) ClearSession(c *gin.Context) {
	id := c.Param("sessionId")
	h.svc.ClearSession(id)
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "message": "session history cleared"})
}

// DeleteSession forgets a session.
// DELETE /chat/:sessionId
func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("sessionId")
	h.svc.DeleteSession(id)
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "message": "session deleted"})
}

// Stats reports session counts.
// GET /chat/stats
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"activeSessions": h.svc.ActiveSessionCount()})
}
