package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"videorelay/internal/backend"
	"videorelay/internal/catalog"
	"videorelay/internal/metrics"
	"videorelay/internal/model"
	"videorelay/pkg/logger"

	"go.uber.org/zap"
)

// DownloadErrorKind classifies a failed download
type DownloadErrorKind int

const (
	KindDownloadFailed DownloadErrorKind = iota + 1
	KindAuthRequired
)

func (k DownloadErrorKind) String() string {
	switch k {
	case KindAuthRequired:
		return "auth_required"
	case KindDownloadFailed:
		return "download_failed"
	default:
		return "unknown"
	}
}

// DownloadError is returned by DownloadService.Run
type DownloadError struct {
	Kind DownloadErrorKind
	Msg  string
	Err  error
}

func (e *DownloadError) Error() string {
	return e.Msg
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ErrCode maps the kind to the API error code
func (e *DownloadError) ErrCode() int {
	if e.Kind == KindAuthRequired {
		return model.CodeAuthRequired
	}
	return model.CodeUnclassified
}

const authRequiredMsg = "authorization required: the source asks for a signed-in session"

// DownloadService fetches and merges the selected sub-streams of a job
type DownloadService struct {
	backend     backend.Backend
	mergeFormat string
	log         *zap.Logger
}

// NewDownloadService creates a new download service. A nil logger uses the
// global one.
func NewDownloadService(b backend.Backend, log *zap.Logger) *DownloadService {
	if log == nil {
		log = logger.Logger
	}
	return &DownloadService{
		backend:     b,
		mergeFormat: "mp4",
		log:         log,
	}
}

// Run downloads job.FormatID from job.SourceURL into job.Path. Progress
// events are handed to onProgress in arrival order on the calling
// goroutine. On success job.Path is a non-empty file.
func (s *DownloadService) Run(ctx context.Context, job *model.DownloadJob, onProgress func(backend.ProgressEvent)) error {
	streams := catalog.SplitComposite(job.FormatID)
	kinds := make(map[string]int, len(streams))
	for i, id := range streams {
		kinds[id] = i
	}

	s.log.Info("Download started",
		zap.String("job_id", job.ID),
		zap.String("item_id", job.ItemID),
		zap.String("format", job.FormatID),
		zap.String("output", job.Path))

	events := make(chan backend.ProgressEvent, 16)
	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- s.backend.Download(ctx, backend.DownloadRequest{
			URL:         job.SourceURL,
			FormatID:    job.FormatID,
			Output:      job.Path,
			MergeFormat: s.mergeFormat,
		}, events)
	}()

	var mergeStarted time.Time
	for ev := range events {
		if ev.FormatID != "" && !ev.HasVideo && !ev.HasAudio {
			// composite ids list the video stream first
			if i, ok := kinds[ev.FormatID]; ok {
				ev.HasVideo = i == 0
				ev.HasAudio = i > 0 || len(streams) == 1
			}
		}

		if ev.FormatID != "" {
			job.Downloaded[ev.FormatID] = ev.Downloaded
			if ev.Status == backend.StatusFinished && !job.Finished[ev.FormatID] {
				job.Finished[ev.FormatID] = true
				s.log.Info("Sub-stream finished",
					zap.String("job_id", job.ID),
					zap.String("format_id", ev.FormatID),
					zap.Int64("bytes", ev.Downloaded))
			}
		}
		if onProgress != nil {
			onProgress(ev)
		}

		if !job.Merging && allFinished(job, streams) {
			job.Merging = true
			mergeStarted = time.Now()
			s.log.Info("Merging streams",
				zap.String("job_id", job.ID),
				zap.String("format", job.FormatID))
		}
	}
	err := <-done
	elapsed := time.Since(job.StartedAt)

	if err != nil {
		dlErr := s.classify(err)
		job.LastError = dlErr
		metrics.RecordDownload(dlErr.Kind.String(), elapsed.Seconds(), 0)
		s.log.Error("Download failed",
			zap.String("job_id", job.ID),
			zap.String("item_id", job.ItemID),
			zap.String("kind", dlErr.Kind.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return dlErr
	}

	info, statErr := os.Stat(job.Path)
	if statErr != nil || info.Size() == 0 {
		dlErr := &DownloadError{Kind: KindDownloadFailed, Msg: "output file missing", Err: statErr}
		job.LastError = dlErr
		metrics.RecordDownload(dlErr.Kind.String(), elapsed.Seconds(), 0)
		s.log.Error("Download produced no output",
			zap.String("job_id", job.ID),
			zap.String("path", job.Path),
			zap.Error(statErr))
		return dlErr
	}

	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("item_id", job.ItemID),
		zap.Float64("size_mb", float64(info.Size())/1024/1024),
		zap.Duration("elapsed", elapsed),
	}
	if elapsed > 0 {
		fields = append(fields, zap.Float64("avg_speed_mbps", float64(info.Size())/elapsed.Seconds()/1024/1024))
	}
	if !mergeStarted.IsZero() {
		fields = append(fields, zap.Duration("merge_elapsed", time.Since(mergeStarted)))
	}
	s.log.Info("Download completed", fields...)
	metrics.RecordDownload("success", elapsed.Seconds(), info.Size())
	return nil
}

func allFinished(job *model.DownloadJob, streams []string) bool {
	if len(streams) == 0 {
		return false
	}
	for _, id := range streams {
		if !job.Finished[id] {
			return false
		}
	}
	return true
}

// classify turns a backend failure into a DownloadError. Backends that
// cannot produce a typed AuthRequiredError are matched on message text.
func (s *DownloadService) classify(err error) *DownloadError {
	var dlErr *DownloadError
	if errors.As(err, &dlErr) {
		return dlErr
	}

	var authErr *backend.AuthRequiredError
	if errors.As(err, &authErr) || backend.IsAuthMessage(err.Error()) {
		return &DownloadError{Kind: KindAuthRequired, Msg: authRequiredMsg, Err: err}
	}

	msg := backend.FirstLine(err.Error())
	if msg == "" {
		msg = "download failed"
	}
	return &DownloadError{Kind: KindDownloadFailed, Msg: fmt.Sprintf("download failed: %s", msg), Err: err}
}
