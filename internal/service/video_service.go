package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"videorelay/internal/backend"
	"videorelay/internal/catalog"
	"videorelay/internal/metrics"
	"videorelay/internal/model"
	"videorelay/pkg/logger"

	"go.uber.org/zap"
)

// MetadataError is a failed metadata lookup carrying its API error code
type MetadataError struct {
	Code int
	Msg  string
	Err  error
}

func (e *MetadataError) Error() string {
	return e.Msg
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// ErrCode returns the API error code
func (e *MetadataError) ErrCode() int {
	return e.Code
}

// VideoService resolves item metadata and the format a download would use
type VideoService struct {
	backend           backend.Backend
	sourceURLTemplate string
	log               *zap.Logger
}

// NewVideoService creates a new video service. A nil logger uses the global
// one.
func NewVideoService(b backend.Backend, cfg *model.BackendConfig, log *zap.Logger) *VideoService {
	if log == nil {
		log = logger.Logger
	}
	tmpl := cfg.SourceURLTemplate
	if tmpl == "" {
		tmpl = "https://www.youtube.com/watch?v=%s"
	}
	return &VideoService{
		backend:           b,
		sourceURLTemplate: tmpl,
		log:               log,
	}
}

// SourceURL builds the origin URL of an item
func (s *VideoService) SourceURL(itemID string) string {
	return fmt.Sprintf(s.sourceURLTemplate, itemID)
}

// Metadata extracts the catalog of itemID and selects the download pair.
// Errors are *MetadataError values carrying 900, 901 or 902.
func (s *VideoService) Metadata(ctx context.Context, itemID, downloadBase string) (*model.MetadataResponse, error) {
	sourceURL := s.SourceURL(itemID)

	info, err := s.backend.ExtractInfo(ctx, sourceURL)
	if err != nil {
		s.log.Error("Failed to extract video info", zap.String("item_id", itemID), zap.Error(err))
		return nil, &MetadataError{Code: model.CodeUnclassified, Msg: extractionMessage(err), Err: err}
	}

	video, audioOnly := catalog.Partition(info.Formats)
	s.log.Info("Video info retrieved",
		zap.String("item_id", itemID),
		zap.String("title", info.Title),
		zap.Int("formats", len(info.Formats)),
		zap.Int("video_formats", len(video)),
		zap.Int("audio_formats", len(audioOnly)))
	for _, d := range video {
		s.log.Debug("Video format", zap.String("item_id", itemID), zap.String("format", catalog.Describe(d)))
	}

	sel, err := catalog.Select(video, audioOnly)
	if err != nil {
		var selErr *catalog.SelectionError
		if !errors.As(err, &selErr) {
			return nil, &MetadataError{Code: model.CodeUnclassified, Msg: err.Error(), Err: err}
		}
		metrics.RecordSelection(selErr.Kind.String())
		s.log.Warn("Format selection failed", zap.String("item_id", itemID), zap.Error(err))
		return nil, &MetadataError{Code: selErr.ErrCode(), Msg: selErr.Error(), Err: err}
	}
	metrics.RecordSelection("selected")
	s.log.Info("Format selected",
		zap.String("item_id", itemID),
		zap.String("video", catalog.Describe(sel.Video)),
		zap.String("audio", catalog.Describe(sel.Audio)),
		zap.String("format", sel.CompositeID),
		zap.Int64("estimated_size", sel.TotalSize),
		zap.Bool("size_complete", sel.SizeComplete))

	resp := s.baseResponse(info)
	resp.ItemID = itemID
	resp.SourceURL = sourceURL
	resp.Format = sel.CompositeID
	resp.DownloadURL = downloadURL(downloadBase, itemID, sel.CompositeID)
	resp.SizeBytes = sel.TotalSize
	resp.SizeMB = toMB(sel.TotalSize)
	return resp, nil
}

// AltMetadata resolves a source whose best stream is already combined. The
// last descriptor carrying both tracks wins and its direct URL is returned.
func (s *VideoService) AltMetadata(ctx context.Context, sourceURL string) (*model.MetadataResponse, error) {
	info, err := s.backend.ExtractInfo(ctx, sourceURL)
	if err != nil {
		s.log.Error("Failed to extract video info", zap.String("url", sourceURL), zap.Error(err))
		return nil, &MetadataError{Code: model.CodeUnclassified, Msg: extractionMessage(err), Err: err}
	}

	var best *model.Descriptor
	for i := range info.Formats {
		d := &info.Formats[i]
		if d.HasVideo && d.HasAudio {
			best = d
		}
	}
	if best == nil {
		metrics.RecordSelection(catalog.NoVideoFormat.String())
		s.log.Warn("No combined stream found", zap.String("url", sourceURL), zap.Int("formats", len(info.Formats)))
		return nil, &MetadataError{Code: model.CodeNoVideoFormat, Msg: (&catalog.SelectionError{Kind: catalog.NoVideoFormat}).Error()}
	}
	metrics.RecordSelection("selected")

	size, _ := catalog.Size(*best)
	resp := s.baseResponse(info)
	resp.ItemID = info.ID
	resp.SourceURL = sourceURL
	resp.Format = best.FormatID
	resp.DownloadURL = best.URL
	resp.SizeBytes = size
	resp.SizeMB = toMB(size)

	s.log.Info("Combined stream selected",
		zap.String("url", sourceURL),
		zap.String("format", catalog.Describe(*best)))
	return resp, nil
}

func (s *VideoService) baseResponse(info *model.VideoInfo) *model.MetadataResponse {
	return &model.MetadataResponse{
		Envelope:        model.Envelope{ErrCode: model.CodeOK, Msg: "success"},
		Title:           info.Title,
		Author:          info.Uploader,
		PublishedDate:   publishedDate(info.UploadDate),
		DurationSeconds: info.Duration,
		Views:           info.ViewCount,
		Description:     info.Description,
		ThumbnailURL:    info.Thumbnail,
	}
}

func extractionMessage(err error) string {
	if msg := backend.FirstLine(err.Error()); msg != "" {
		return msg
	}
	return "failed to extract video info"
}

// publishedDate turns YYYYMMDD into "YYYY-MM-DD 00:00:00"
func publishedDate(uploadDate string) string {
	t, err := time.Parse("20060102", uploadDate)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func downloadURL(base, itemID, format string) string {
	q := url.Values{}
	q.Set("id", itemID)
	q.Set("format", format)
	return strings.TrimRight(base, "/") + "/download?" + q.Encode()
}

func toMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}
