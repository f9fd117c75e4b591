package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"videorelay/internal/backend"
	"videorelay/internal/metrics"
	"videorelay/internal/model"
	"videorelay/internal/progress"
	"videorelay/internal/service"
	"videorelay/internal/storage"
	"videorelay/internal/transfer"
	"videorelay/pkg/logger"
	"videorelay/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DownloadHandler runs a download job and streams the result
type DownloadHandler struct {
	videoService    *service.VideoService
	downloadService *service.DownloadService
	storageManager  *storage.Manager
	tracker         progress.Tracker
	cfg             *model.Config
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(vs *service.VideoService, ds *service.DownloadService, sm *storage.Manager, tracker progress.Tracker, cfg *model.Config) *DownloadHandler {
	if tracker == nil {
		tracker = progress.Nop
	}
	return &DownloadHandler{
		videoService:    vs,
		downloadService: ds,
		storageManager:  sm,
		tracker:         tracker,
		cfg:             cfg,
	}
}

// bindParams reads id and format from a POST body (JSON or form), falling
// back to the query string.
func bindParams(c *gin.Context) model.DownloadRequest {
	var req model.DownloadRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			logger.Logger.Debug("Download body not bound, using query", zap.Error(err))
		}
	}
	if req.ID == "" {
		req.ID = c.Query("id")
	}
	if req.Format == "" {
		req.Format = c.Query("format")
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Format = strings.TrimSpace(req.Format)
	return req
}

// Download handles GET|POST /download
func (h *DownloadHandler) Download(c *gin.Context) {
	req := bindParams(c)

	if req.ID == "" || req.Format == "" {
		logger.Logger.Warn("Missing download parameters", zap.String("id", req.ID), zap.String("format", req.Format))
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeBadRequest, "missing parameter: id and format are required"))
		return
	}
	if !validator.ValidateItemID(req.ID) {
		logger.Logger.Warn("Invalid item id", zap.String("id", req.ID))
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeBadRequest, "invalid parameter: id"))
		return
	}
	if !validator.ValidateCompositeFormat(req.Format) {
		logger.Logger.Warn("Invalid format ID", zap.String("format", req.Format))
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeBadRequest, "invalid parameter: format"))
		return
	}

	ctx := c.Request.Context()
	lease, err := h.storageManager.Acquire(ctx, req.ID)
	if err != nil {
		if ctx.Err() != nil {
			logger.Logger.Info("Download request interrupted",
				zap.String("item_id", req.ID),
				zap.String("stage", "waiting"),
				zap.Error(err))
			return
		}
		logger.Logger.Error("Failed to prepare job directory", zap.String("item_id", req.ID), zap.Error(err))
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeUnclassified, "failed to prepare download"))
		return
	}
	metrics.SetActiveJobs(h.storageManager.ActiveJobs())

	job := model.NewDownloadJob(lease.JobID, req.ID, h.videoService.SourceURL(req.ID), req.Format, lease.Path)

	outcome := "failed"
	var session *transfer.Session
	defer func() {
		lease.Release()
		metrics.SetActiveJobs(h.storageManager.ActiveJobs())

		fields := []zap.Field{
			zap.String("job_id", job.ID),
			zap.String("item_id", job.ItemID),
			zap.String("format", job.FormatID),
			zap.Duration("elapsed", time.Since(job.StartedAt)),
		}
		if session != nil {
			fields = append(fields, zap.Int64("bytes_sent", session.Sent()), zap.Int64("size", session.Total()))
		}
		switch outcome {
		case "completed":
			logger.Logger.Info("Transfer completed", fields...)
		case "interrupted":
			logger.Logger.Info("Download request interrupted", append(fields, zap.Error(job.LastError))...)
		default:
			logger.Logger.Warn("Download request failed", append(fields, zap.Error(job.LastError))...)
		}
	}()

	videoBars := progress.NewStreamSet(h.tracker, fmt.Sprintf("video [%s]", req.ID))
	audioBars := progress.NewStreamSet(h.tracker, fmt.Sprintf("audio [%s]", req.ID))
	onProgress := func(ev backend.ProgressEvent) {
		bars := audioBars
		if ev.HasVideo {
			bars = videoBars
		}
		bars.Update(ev.FormatID, ev.Downloaded, ev.Total)
		if ev.Status == backend.StatusFinished {
			bars.Finish(ev.FormatID)
		}
	}

	err = h.downloadService.Run(ctx, job, onProgress)
	videoBars.Close()
	audioBars.Close()
	if err != nil {
		lease.Release()
		if ctx.Err() != nil {
			outcome = "interrupted"
			return
		}
		c.JSON(http.StatusOK, errorEnvelope(err))
		return
	}

	session, err = transfer.NewSession(lease.Path, job,
		transfer.WithChunkSize(h.cfg.Storage.ChunkSize),
		transfer.WithTracker(h.tracker),
		transfer.WithLogger(logger.Logger))
	if err != nil {
		job.LastError = err
		lease.Release()
		c.JSON(http.StatusOK, model.ErrorEnvelope(model.CodeUnclassified, "failed to open downloaded file"))
		return
	}

	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", buildContentDispositionHeader(req.ID+".mp4"))
	c.Header("Content-Length", strconv.FormatInt(session.Total(), 10))
	c.Status(http.StatusOK)

	streamErr := session.Stream(ctx, c.Writer)
	metrics.RecordTransfer(session.State().String(), session.Sent())
	if streamErr != nil {
		job.LastError = streamErr
		outcome = "interrupted"
		c.Abort()
		return
	}
	outcome = "completed"
}

// buildContentDispositionHeader builds a Content-Disposition header, using
// RFC 5987 encoding when the name is not plain ASCII.
func buildContentDispositionHeader(filename string) string {
	filename = validator.SanitizeFilename(filename)

	needsEncoding := false
	for _, r := range filename {
		if r > 127 || r == ';' || r == ',' {
			needsEncoding = true
			break
		}
	}
	if strings.ContainsAny(filename, " \t") {
		needsEncoding = true
	}

	if !needsEncoding {
		return fmt.Sprintf(`attachment; filename="%s"`, filename)
	}
	return fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename))
}
