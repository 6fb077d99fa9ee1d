package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/germanilia/presentation-maker/internal/infra/limiter"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/internal/service/imagegen"
	"github.com/germanilia/presentation-maker/internal/service/orchestrator"
	"github.com/germanilia/presentation-maker/internal/service/research"
	"github.com/germanilia/presentation-maker/internal/service/storage"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	storage      *storage.Service
	runs         *limiter.Limiter
	logger       *logger.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, store *storage.Service, runs *limiter.Limiter, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		storage:      store,
		runs:         runs,
		logger:       log,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Generate runs the full pipeline for the submitted brief and responds when
// the deck is published. Degradations come back as diagnostics alongside a
// succeeded status; only assembly and storage failures fail the request.
// Excess concurrent requests are rejected immediately rather than queued
// behind a running generation.
func (h *Handler) Generate(c *gin.Context) {
	release, ok := h.runs.TryAcquire()
	if !ok {
		c.JSON(http.StatusTooManyRequests, GenerateResponse{
			Status: StatusFailed,
			Error:  &ErrorResponse{Code: errors.ErrCodeRateLimited, Message: "another generation is already running, try again later"},
		})
		return
	}
	defer release()

	var req BriefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request", "error", err)
		c.JSON(http.StatusBadRequest, GenerateResponse{
			Status: StatusFailed,
			Error:  &ErrorResponse{Code: errors.ErrCodeInvalidReq, Message: err.Error()},
		})
		return
	}

	requestID := req.ClientRequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	logo, err := decodeLogo(req.LogoBase64)
	if err != nil {
		h.logger.Error("failed to decode logo", "error", err, "request_id", requestID)
		c.JSON(http.StatusBadRequest, GenerateResponse{
			RequestID: requestID,
			Status:    StatusFailed,
			Error:     &ErrorResponse{Code: errors.ErrCodeInvalidReq, Message: "failed to decode base64 logo"},
		})
		return
	}

	if len(logo) > 0 {
		if _, serr := h.storage.SaveUpload(logoFilename(logo), logo); serr != nil {
			h.logger.Warn("failed to persist logo upload", "error", serr, "request_id", requestID)
		}
	}

	brief := orchestrator.Brief{
		Topic:        req.Topic,
		SubTopics:    req.SubTopics,
		Instructions: req.GeneralInstructions,
		Source:       research.ParseSource(req.SearchSource),
		Theme:        req.Theme,
		Logo:         logo,
		OutputPath:   req.OutputPath,
	}

	result, err := h.orchestrator.Run(c.Request.Context(), brief)
	if err != nil {
		h.handleError(c, requestID, result, err)
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		RequestID:    requestID,
		Status:       StatusSucceeded,
		ArtifactPath: result.ArtifactPath,
		DownloadURL:  "/api/download/" + filepath.Base(result.ArtifactPath),
		Diagnostics:  result.Diagnostics,
	})
}

// SaveConfig persists the raw brief JSON verbatim so LoadConfig can return
// exactly what the UI sent.
func (h *Handler) SaveConfig(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: errors.ErrCodeInvalidReq, Message: "failed to read body"})
		return
	}

	var req BriefRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: errors.ErrCodeInvalidReq, Message: err.Error()})
		return
	}

	if err := h.storage.SaveBrief(raw); err != nil {
		h.logger.Error("failed to save brief", "error", err)
		c.JSON(statusFor(err), ErrorResponse{Code: errors.CodeOf(err), Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SaveConfigResponse{Status: "saved"})
}

func (h *Handler) LoadConfig(c *gin.Context) {
	raw, err := h.storage.LoadBrief()
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Code: errors.CodeOf(err), Message: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) Download(c *gin.Context) {
	path, err := h.storage.FilePath("output", c.Param("filename"))
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Code: errors.CodeOf(err), Message: err.Error()})
		return
	}
	if !h.storage.FileExists("output", c.Param("filename")) {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: errors.ErrCodeNotFound, Message: "file not found"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (h *Handler) CheckFile(c *gin.Context) {
	exists := h.storage.FileExists(c.Param("folder"), c.Param("filename"))
	c.JSON(http.StatusOK, CheckFileResponse{Exists: exists})
}

func (h *Handler) handleError(c *gin.Context, requestID string, result *orchestrator.Result, err error) {
	h.logger.Error("generation failed", "error", err, "request_id", requestID)

	resp := GenerateResponse{
		RequestID: requestID,
		Status:    StatusFailed,
		Error:     &ErrorResponse{Code: errors.CodeOf(err), Message: err.Error()},
	}
	if result != nil {
		resp.Diagnostics = result.Diagnostics
	}
	c.JSON(statusFor(err), resp)
}

func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidReq:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func logoFilename(data []byte) string {
	switch imagegen.DetectMimeType(data) {
	case "image/jpeg":
		return "logo.jpg"
	case "image/gif":
		return "logo.gif"
	default:
		return "logo.png"
	}
}

// decodeLogo accepts both plain base64 and data URLs
// (data:image/png;base64,xxxx).
func decodeLogo(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if idx := strings.Index(s, ","); idx >= 0 {
		s = s[idx+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}
