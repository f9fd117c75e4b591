// Package backend defines the extraction/download capability the service
// drives, and its yt-dlp implementation.
package backend

import (
	"context"
	"fmt"
	"strings"

	"videorelay/internal/model"
)

// ProgressStatus is the state reported by a progress event
type ProgressStatus string

const (
	StatusInProgress ProgressStatus = "in-progress"
	StatusFinished   ProgressStatus = "finished"
)

// ProgressEvent reports cumulative progress of one sub-stream
type ProgressEvent struct {
	FormatID   string
	Status     ProgressStatus
	Downloaded int64
	Total      int64 // 0 when unknown
	HasVideo   bool
	HasAudio   bool
}

// DownloadRequest describes one backend download
type DownloadRequest struct {
	URL         string
	FormatID    string
	Output      string
	MergeFormat string
}

// Backend extracts catalogs and downloads selected formats.
//
// Download must send every progress event on events in arrival order and
// must not close the channel.
type Backend interface {
	ExtractInfo(ctx context.Context, url string) (*model.VideoInfo, error)
	Download(ctx context.Context, req DownloadRequest, events chan<- ProgressEvent) error
}

// AuthRequiredError means the origin wants an authorized (cookie) session.
type AuthRequiredError struct {
	Detail string
	Err    error
}

func (e *AuthRequiredError) Error() string {
	return "authorization required: " + e.Detail
}

func (e *AuthRequiredError) Unwrap() error {
	return e.Err
}

// ExecError carries the diagnostics of a failed backend invocation.
type ExecError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// authMarkers are lower-cased yt-dlp messages that mean cookies are needed.
// yt-dlp has no structured error for this, so its text is matched.
var authMarkers = []string{
	"sign in to confirm",
	"--cookies for the authentication",
}

// IsAuthMessage reports whether a backend message asks for authorization.
func IsAuthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// FirstLine returns the first non-empty line of s.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
