package service

import (
	"context"
	"os"
	"sync"

	"videorelay/internal/backend"
	"videorelay/internal/model"
)

// fakeBackend replays scripted events and writes a payload to the output.
type fakeBackend struct {
	mu sync.Mutex

	info       *model.VideoInfo
	extractErr error

	events      []backend.ProgressEvent
	payload     []byte
	downloadErr error
	calls       int
	lastRequest backend.DownloadRequest
	lastURL     string
}

func (f *fakeBackend) ExtractInfo(ctx context.Context, url string) (*model.VideoInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastURL = url
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.info, nil
}

func (f *fakeBackend) Download(ctx context.Context, req backend.DownloadRequest, events chan<- backend.ProgressEvent) error {
	f.mu.Lock()
	f.calls++
	f.lastRequest = req
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, ev := range f.events {
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.downloadErr != nil {
		return f.downloadErr
	}
	if f.payload != nil {
		return os.WriteFile(req.Output, f.payload, 0644)
	}
	return nil
}
