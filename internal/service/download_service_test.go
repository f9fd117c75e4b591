package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"videorelay/internal/backend"
	"videorelay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestJob(t *testing.T, format string) *model.DownloadJob {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abc.mp4")
	return model.NewDownloadJob("job-1", "abc", "https://www.youtube.com/watch?v=abc", format, path)
}

func TestRunForwardsEventsAndMerges(t *testing.T) {
	fb := &fakeBackend{
		events: []backend.ProgressEvent{
			{FormatID: "137", Status: backend.StatusInProgress, Downloaded: 100, Total: 400},
			{FormatID: "137", Status: backend.StatusFinished, Downloaded: 400, Total: 400},
			{FormatID: "140", Status: backend.StatusInProgress, Downloaded: 50, Total: 100},
			{FormatID: "140", Status: backend.StatusFinished, Downloaded: 100, Total: 100},
		},
		payload: []byte("merged"),
	}
	core, logs := observer.New(zap.InfoLevel)
	svc := NewDownloadService(fb, zap.New(core))
	job := newTestJob(t, "137+140")

	var got []backend.ProgressEvent
	err := svc.Run(context.Background(), job, func(ev backend.ProgressEvent) {
		got = append(got, ev)
	})
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, "137", got[0].FormatID)
	assert.True(t, got[0].HasVideo)
	assert.False(t, got[0].HasAudio)
	assert.True(t, got[2].HasAudio)
	assert.Equal(t, backend.StatusFinished, got[3].Status)

	assert.Equal(t, map[string]int64{"137": 400, "140": 100}, job.Downloaded)
	assert.True(t, job.Finished["137"])
	assert.True(t, job.Finished["140"])
	assert.True(t, job.Merging)
	assert.NoError(t, job.LastError)

	assert.Equal(t, 1, fb.calls)
	assert.Equal(t, "137+140", fb.lastRequest.FormatID)
	assert.Equal(t, job.Path, fb.lastRequest.Output)
	assert.Equal(t, "mp4", fb.lastRequest.MergeFormat)

	assert.Equal(t, 1, logs.FilterMessage("Merging streams").Len())
	assert.Equal(t, 1, logs.FilterMessage("Download completed").Len())
}

func TestRunSingleStreamComposite(t *testing.T) {
	fb := &fakeBackend{
		events: []backend.ProgressEvent{
			{FormatID: "18", Status: backend.StatusFinished, Downloaded: 10, Total: 10},
		},
		payload: []byte("x"),
	}
	svc := NewDownloadService(fb, zap.NewNop())
	job := newTestJob(t, "18+18")

	require.NoError(t, svc.Run(context.Background(), job, nil))
	assert.True(t, job.Merging)
	assert.Len(t, job.Finished, 1)
}

func TestRunClassifiesTypedAuthError(t *testing.T) {
	fb := &fakeBackend{downloadErr: &backend.AuthRequiredError{Detail: "cookies needed"}}
	svc := NewDownloadService(fb, zap.NewNop())
	job := newTestJob(t, "137+140")

	err := svc.Run(context.Background(), job, nil)

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, KindAuthRequired, dlErr.Kind)
	assert.Equal(t, model.CodeAuthRequired, dlErr.ErrCode())
	assert.Equal(t, 1, fb.calls)
	assert.Equal(t, dlErr, job.LastError)
}

func TestRunClassifiesAuthMessage(t *testing.T) {
	fb := &fakeBackend{downloadErr: errors.New("ERROR: [youtube] abc: Sign in to confirm you're not a bot")}
	svc := NewDownloadService(fb, zap.NewNop())

	err := svc.Run(context.Background(), newTestJob(t, "137+140"), nil)

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, KindAuthRequired, dlErr.Kind)
}

func TestRunClassifiesOtherFailures(t *testing.T) {
	fb := &fakeBackend{downloadErr: errors.New("ERROR: unable to download video data: HTTP Error 410\nsecond line")}
	svc := NewDownloadService(fb, zap.NewNop())

	err := svc.Run(context.Background(), newTestJob(t, "137+140"), nil)

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, KindDownloadFailed, dlErr.Kind)
	assert.Equal(t, model.CodeUnclassified, dlErr.ErrCode())
	assert.Contains(t, dlErr.Msg, "HTTP Error 410")
	assert.NotContains(t, dlErr.Msg, "second line")
}

func TestRunRejectsMissingOutput(t *testing.T) {
	fb := &fakeBackend{}
	svc := NewDownloadService(fb, zap.NewNop())

	err := svc.Run(context.Background(), newTestJob(t, "137+140"), nil)

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, KindDownloadFailed, dlErr.Kind)
	assert.Equal(t, "output file missing", dlErr.Msg)
}

func TestRunRejectsEmptyOutput(t *testing.T) {
	fb := &fakeBackend{payload: []byte{}}
	svc := NewDownloadService(fb, zap.NewNop())

	err := svc.Run(context.Background(), newTestJob(t, "137+140"), nil)
	assert.EqualError(t, err, "output file missing")
}

func TestRunStopsOnCancel(t *testing.T) {
	fb := &fakeBackend{
		events: []backend.ProgressEvent{
			{FormatID: "137", Status: backend.StatusInProgress, Downloaded: 1, Total: 2},
		},
	}
	svc := NewDownloadService(fb, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx, newTestJob(t, "137+140"), nil)
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, KindDownloadFailed, dlErr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}
