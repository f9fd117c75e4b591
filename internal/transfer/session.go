// Package transfer streams a finished download to a client.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"videorelay/internal/model"
	"videorelay/internal/progress"

	"go.uber.org/zap"
)

// DefaultChunkSize is the read/write unit of a session
const DefaultChunkSize = 8 * 1024

// ErrAborted is returned when the client goes away before end of file.
var ErrAborted = errors.New("transfer aborted by client")

// State of a session
type State int

const (
	Created State = iota
	FirstChunkSent
	Streaming
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case FirstChunkSent:
		return "first_chunk_sent"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == Completed || s == Aborted
}

// Session sends one file to one client. It is not safe for concurrent use
// and is never shared between transfers.
type Session struct {
	file      *os.File
	job       *model.DownloadJob
	state     State
	transfer  model.TransferState
	chunkSize int
	tracker   progress.Tracker
	handle    progress.Handle
	log       *zap.Logger
}

// Option configures a Session
type Option func(*Session)

// WithChunkSize overrides the 8 KiB default
func WithChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithTracker sets the progress tracker
func WithTracker(t progress.Tracker) Option {
	return func(s *Session) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSession opens path for streaming. The caller owns the file on disk;
// the session only closes its handle.
func NewSession(path string, job *model.DownloadJob, opts ...Option) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transfer source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat transfer source: %w", err)
	}

	s := &Session{
		file:      f,
		job:       job,
		state:     Created,
		chunkSize: DefaultChunkSize,
		tracker:   progress.Nop,
		log:       zap.NewNop(),
	}
	s.transfer.Total = info.Size()
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stream writes the file to w chunk by chunk. A failed write or a done ctx
// moves the session to Aborted and the returned error wraps both ErrAborted
// and the cause.
func (s *Session) Stream(ctx context.Context, w io.Writer) (err error) {
	if s.state != Created {
		return fmt.Errorf("session already %s", s.state)
	}
	defer s.file.Close()
	defer func() {
		if err != nil && s.state != Completed {
			s.abort(err)
		}
	}()

	s.transfer.StartedAt = time.Now()
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, s.chunkSize)

	s.log.Info("File transfer started",
		zap.String("item_id", s.itemID()),
		zap.Float64("size_mb", float64(s.transfer.Total)/1024/1024))

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrAborted, ctxErr)
		}

		n, readErr := s.file.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("%w: %w", ErrAborted, writeErr)
			}
			s.transfer.Sent += int64(n)
			s.advance(int64(n), flusher)
		}
		if readErr == io.EOF {
			s.complete()
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read transfer source: %w", readErr)
		}
	}
}

// advance performs the per-chunk transitions after a successful write.
func (s *Session) advance(n int64, flusher http.Flusher) {
	switch s.state {
	case Created:
		// first bytes go out before any progress setup
		if flusher != nil {
			flusher.Flush()
		}
		s.state = FirstChunkSent
	case FirstChunkSent:
		if s.transfer.Total > 0 {
			s.handle = s.tracker.Observe(fmt.Sprintf("transfer [%s]", s.itemID()), s.transfer.Total)
			s.handle.Advance(s.transfer.Sent)
		}
		s.state = Streaming
	case Streaming:
		if s.handle != nil {
			s.handle.Advance(n)
		}
	}
}

func (s *Session) complete() {
	s.closeHandle()
	s.state = Completed
	s.transfer.Completed = true
	if s.job != nil {
		s.job.Completed = true
	}

	elapsed := time.Since(s.transfer.StartedAt)
	speed := 0.0
	if elapsed > 0 {
		speed = float64(s.transfer.Sent) / elapsed.Seconds() / (1024 * 1024)
	}
	s.log.Info("File transfer finished",
		zap.String("item_id", s.itemID()),
		zap.Int64("bytes_sent", s.transfer.Sent),
		zap.Duration("elapsed", elapsed),
		zap.Float64("avg_speed_mbps", speed))
}

func (s *Session) abort(cause error) {
	s.closeHandle()
	s.state = Aborted
	if s.job != nil {
		s.job.LastError = cause
	}
	s.log.Info("Transfer interrupted by client",
		zap.String("item_id", s.itemID()),
		zap.Int64("bytes_sent", s.transfer.Sent),
		zap.Float64("sent_mb", float64(s.transfer.Sent)/1024/1024),
		zap.Error(cause))
}

func (s *Session) closeHandle() {
	if s.handle != nil {
		s.handle.Close()
	}
}

func (s *Session) itemID() string {
	if s.job == nil {
		return ""
	}
	return s.job.ItemID
}

// State returns the current state
func (s *Session) State() State { return s.state }

// Sent returns the bytes written so far
func (s *Session) Sent() int64 { return s.transfer.Sent }

// Total returns the file size
func (s *Session) Total() int64 { return s.transfer.Total }
