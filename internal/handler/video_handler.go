package handler

import (
	"errors"
	"net/http"

	"videorelay/internal/model"
	"videorelay/internal/service"
	"videorelay/internal/storage"
	"videorelay/pkg/logger"
	"videorelay/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errCoder is implemented by every error that maps to an API error code
type errCoder interface {
	ErrCode() int
}

// errorEnvelope maps err to its envelope, defaulting to 900
func errorEnvelope(err error) model.Envelope {
	var coded errCoder
	if errors.As(err, &coded) {
		return model.ErrorEnvelope(coded.ErrCode(), err.Error())
	}
	return model.ErrorEnvelope(model.CodeUnclassified, err.Error())
}

// VideoHandler handles metadata requests
type VideoHandler struct {
	videoService   *service.VideoService
	storageManager *storage.Manager
	cfg            *model.Config
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(vs *service.VideoService, sm *storage.Manager, cfg *model.Config) *VideoHandler {
	return &VideoHandler{
		videoService:   vs,
		storageManager: sm,
		cfg:            cfg,
	}
}

// GetMetadata handles GET /metadata
func (h *VideoHandler) GetMetadata(c *gin.Context) {
	itemID := c.Query("id")
	if itemID == "" {
		logger.Logger.Warn("Empty item id provided")
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeBadRequest, "missing parameter: id"))
		return
	}
	if !validator.ValidateItemID(itemID) {
		logger.Logger.Warn("Invalid item id", zap.String("id", itemID))
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeBadRequest, "invalid parameter: id"))
		return
	}

	resp, err := h.videoService.Metadata(c.Request.Context(), itemID, requestBase(c))
	if err != nil {
		logger.Logger.Warn("Metadata request failed", zap.String("id", itemID), zap.Error(err))
		c.JSON(http.StatusOK, errorEnvelope(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAltMetadata handles GET /alt-metadata
func (h *VideoHandler) GetAltMetadata(c *gin.Context) {
	sourceURL := c.Query("url")
	if sourceURL == "" {
		logger.Logger.Warn("Empty URL provided")
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeBadRequest, "missing parameter: url"))
		return
	}

	if !validator.ValidateHost(sourceURL, h.cfg.Security.AltAllowedHosts) {
		logger.Logger.Warn("URL host not allowed",
			zap.String("url", sourceURL),
			zap.Strings("allowed_hosts", h.cfg.Security.AltAllowedHosts))
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeBadRequest, "invalid parameter: url host is not allowed"))
		return
	}

	resp, err := h.videoService.AltMetadata(c.Request.Context(), sourceURL)
	if err != nil {
		logger.Logger.Warn("Alt metadata request failed", zap.String("url", sourceURL), zap.Error(err))
		c.JSON(http.StatusOK, errorEnvelope(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HealthCheck handles GET /health
func (h *VideoHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     "videorelay",
		"active_jobs": h.storageManager.ActiveJobs(),
	})
}

// requestBase is the scheme and host the client used to reach us
func requestBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
