package model

import "time"

// Error codes carried in the errcode field of every JSON response
const (
	CodeOK            = 0
	CodeBadRequest    = 400
	CodeAuthRequired  = 403
	CodeRateLimited   = 429
	CodeUnclassified  = 900
	CodeNoVideoFormat = 901
	CodeNoAudioFormat = 902
)

// Descriptor is one encoding reported by the extraction backend
type Descriptor struct {
	FormatID       string
	HasVideo       bool
	HasAudio       bool
	Height         *int
	Resolution     string // "WxH", may be empty or "audio only"
	Ext            string
	TBR            *float64 // total bitrate in kbps
	FileSize       *int64
	FileSizeApprox *int64
	VCodec         string
	ACodec         string
	URL            string
}

// SelectedFormat is the video+audio pair chosen for a download
type SelectedFormat struct {
	Video       Descriptor
	Audio       Descriptor
	CompositeID string
	// TotalSize sums the known sizes only. SizeComplete is false when
	// either descriptor had no size, so TotalSize under-reports.
	TotalSize    int64
	SizeComplete bool
}

// VideoInfo is the item level metadata returned by the backend
type VideoInfo struct {
	ID          string
	Title       string
	Uploader    string
	UploadDate  string // YYYYMMDD
	Duration    float64
	ViewCount   int64
	Description string
	Thumbnail   string
	Formats     []Descriptor
}

// DownloadJob is one download-and-merge unit of work
type DownloadJob struct {
	ID        string
	ItemID    string
	SourceURL string
	FormatID  string
	Path      string
	StartedAt time.Time

	// Downloaded holds the last cumulative byte count per sub-stream format id.
	Downloaded map[string]int64
	Finished   map[string]bool
	Merging    bool
	Completed  bool
	LastError  error
}

// NewDownloadJob creates a job with empty per-stream counters
func NewDownloadJob(id, itemID, sourceURL, formatID, path string) *DownloadJob {
	return &DownloadJob{
		ID:         id,
		ItemID:     itemID,
		SourceURL:  sourceURL,
		FormatID:   formatID,
		Path:       path,
		StartedAt:  time.Now(),
		Downloaded: make(map[string]int64),
		Finished:   make(map[string]bool),
	}
}

// TransferState tracks one response body
type TransferState struct {
	Sent      int64
	Total     int64
	StartedAt time.Time
	Completed bool
}

// Envelope is the errcode/msg pair present in every JSON response
type Envelope struct {
	ErrCode int    `json:"errcode"`
	Msg     string `json:"msg"`
}

// MetadataResponse is returned by the metadata endpoints
type MetadataResponse struct {
	Envelope
	Title           string  `json:"title"`
	ItemID          string  `json:"item_id"`
	Author          string  `json:"author"`
	PublishedDate   string  `json:"published_date"`
	DurationSeconds float64 `json:"duration_seconds"`
	Views           int64   `json:"views"`
	Description     string  `json:"description"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	SourceURL       string  `json:"source_url"`
	DownloadURL     string  `json:"download_url"`
	Format          string  `json:"format"`
	SizeBytes       int64   `json:"size_bytes"`
	SizeMB          float64 `json:"size_mb"`
}

// DownloadRequest carries the download parameters of a POST body
type DownloadRequest struct {
	ID     string `json:"id" form:"id"`
	Format string `json:"format" form:"format"`
}

// ErrorEnvelope builds a failed response
func ErrorEnvelope(code int, msg string) Envelope {
	return Envelope{ErrCode: code, Msg: msg}
}
