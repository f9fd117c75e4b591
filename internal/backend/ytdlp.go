package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"videorelay/internal/model"
	"videorelay/pkg/logger"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

const defaultProgressInterval = 250 * time.Millisecond

// YTDLP drives the yt-dlp binary through go-ytdlp.
type YTDLP struct {
	executable       string
	cookiesFile      string
	extractTimeout   time.Duration
	progressInterval time.Duration
}

// NewYTDLP creates a yt-dlp backend
func NewYTDLP(cfg *model.BackendConfig) *YTDLP {
	return &YTDLP{
		executable:       cfg.Executable,
		cookiesFile:      cfg.CookiesFile,
		extractTimeout:   cfg.ExtractTimeout,
		progressInterval: defaultProgressInterval,
	}
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	if y.cookiesFile != "" {
		if _, err := os.Stat(y.cookiesFile); err == nil {
			cmd.Cookies(y.cookiesFile)
		} else {
			logger.Logger.Debug("Cookies file not found, continuing without it", zap.String("path", y.cookiesFile))
		}
	}
	return cmd
}

// ExtractInfo runs yt-dlp -J and decodes the catalog
func (y *YTDLP) ExtractInfo(ctx context.Context, url string) (*model.VideoInfo, error) {
	if y.extractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.extractTimeout)
		defer cancel()
	}

	res, err := y.command().Quiet().SkipDownload().DumpSingleJSON().Run(ctx, url)
	if err != nil {
		return nil, classifyExecError("extract", res, err)
	}
	return ParseInfo([]byte(res.Stdout))
}

// Download fetches and merges the requested formats into req.Output
func (y *YTDLP) Download(ctx context.Context, req DownloadRequest, events chan<- ProgressEvent) error {
	cmd := y.command().
		Format(req.FormatID).
		Output(req.Output).
		ForceOverwrites()
	if req.MergeFormat != "" {
		cmd.MergeOutputFormat(req.MergeFormat)
	}

	cmd.ProgressFunc(y.progressInterval, func(update ytdlp.ProgressUpdate) {
		formatID := ""
		if update.Info != nil && update.Info.FormatID != nil {
			formatID = *update.Info.FormatID
		}
		ev, ok := progressEvent(formatID, update.Filename, update.Status, update.DownloadedBytes, update.TotalBytes)
		if !ok {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return classifyExecError("download", res, err)
	}
	return nil
}

var subStreamPattern = regexp.MustCompile(`\.f([0-9A-Za-z_-]+)\.[0-9A-Za-z]+(\.part)?$`)

// progressEvent maps a yt-dlp progress update. When the update carries no
// format id, the id is recovered from yt-dlp's "<name>.f<id>.<ext>"
// intermediate file name.
func progressEvent(formatID, filename string, status ytdlp.ProgressStatus, downloaded, total int) (ProgressEvent, bool) {
	var st ProgressStatus
	switch status {
	case ytdlp.ProgressStatusStarting, ytdlp.ProgressStatusDownloading:
		st = StatusInProgress
	case ytdlp.ProgressStatusFinished:
		st = StatusFinished
	default:
		return ProgressEvent{}, false
	}

	if formatID == "" && filename != "" {
		if m := subStreamPattern.FindStringSubmatch(filepath.Base(filename)); m != nil {
			formatID = m[1]
		}
	}

	return ProgressEvent{
		FormatID:   formatID,
		Status:     st,
		Downloaded: int64(downloaded),
		Total:      int64(total),
	}, true
}

func classifyExecError(op string, res *ytdlp.Result, err error) error {
	execErr := &ExecError{Op: op, ExitCode: -1, Err: err}
	if res != nil {
		execErr.ExitCode = res.ExitCode
		execErr.Stderr = res.Stderr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return execErr
	}
	if IsAuthMessage(execErr.Stderr) || IsAuthMessage(err.Error()) {
		return &AuthRequiredError{Detail: FirstLine(execErr.Error()), Err: execErr}
	}
	return execErr
}

type rawInfo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Uploader    string      `json:"uploader"`
	UploadDate  string      `json:"upload_date"`
	Duration    *float64    `json:"duration"`
	ViewCount   *float64    `json:"view_count"`
	Description string      `json:"description"`
	Thumbnail   string      `json:"thumbnail"`
	Formats     []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
	Height         *float64 `json:"height"`
	Resolution     *string  `json:"resolution"`
	TBR            *float64 `json:"tbr"`
	FileSize       *float64 `json:"filesize"`
	FileSizeApprox *float64 `json:"filesize_approx"`
	URL            string   `json:"url"`
}

// ParseInfo decodes yt-dlp's single JSON document.
func ParseInfo(data []byte) (*model.VideoInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}

	info := &model.VideoInfo{
		ID:          raw.ID,
		Title:       raw.Title,
		Uploader:    raw.Uploader,
		UploadDate:  raw.UploadDate,
		Description: raw.Description,
		Thumbnail:   raw.Thumbnail,
		Formats:     make([]model.Descriptor, 0, len(raw.Formats)),
	}
	if raw.Duration != nil {
		info.Duration = *raw.Duration
	}
	if raw.ViewCount != nil {
		info.ViewCount = int64(*raw.ViewCount)
	}
	for _, f := range raw.Formats {
		info.Formats = append(info.Formats, f.descriptor())
	}
	return info, nil
}

// descriptor converts a yt-dlp format. A codec of "none" means the stream
// lacks that track; a missing codec field does not.
func (f rawFormat) descriptor() model.Descriptor {
	d := model.Descriptor{
		FormatID: f.FormatID,
		Ext:      f.Ext,
		HasVideo: f.VCodec == nil || *f.VCodec != "none",
		HasAudio: f.ACodec == nil || *f.ACodec != "none",
		TBR:      f.TBR,
		URL:      f.URL,
	}
	if f.VCodec != nil {
		d.VCodec = *f.VCodec
	}
	if f.ACodec != nil {
		d.ACodec = *f.ACodec
	}
	if f.Resolution != nil {
		d.Resolution = *f.Resolution
	}
	if f.Height != nil {
		h := int(*f.Height)
		d.Height = &h
	}
	if f.FileSize != nil {
		s := int64(*f.FileSize)
		d.FileSize = &s
	}
	if f.FileSizeApprox != nil {
		s := int64(*f.FileSizeApprox)
		d.FileSizeApprox = &s
	}
	return d
}
