package backend

import (
	"errors"
	"testing"

	"github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInfo = `{
  "id": "dQw4w9WgXcQ",
  "title": "Sample",
  "uploader": "Someone",
  "upload_date": "20091025",
  "duration": 212,
  "view_count": 1500000000,
  "description": "desc",
  "thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
  "formats": [
    {"format_id": "sb0", "ext": "mhtml", "vcodec": "none", "acodec": "none", "resolution": "48x27"},
    {"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2", "resolution": "audio only", "tbr": 129.5, "filesize": 3433514},
    {"format_id": "137", "ext": "mp4", "vcodec": "avc1.640028", "acodec": "none", "height": 1080, "resolution": "1920x1080", "filesize_approx": 80000000},
    {"format_id": "18", "ext": "mp4", "vcodec": "avc1.42001E", "acodec": "mp4a.40.2", "height": null, "resolution": "640x360", "url": "https://example.com/18"},
    {"format_id": "hls-1", "ext": "mp4"}
  ]
}`

func TestParseInfo(t *testing.T) {
	info, err := ParseInfo([]byte(sampleInfo))
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", info.ID)
	assert.Equal(t, "20091025", info.UploadDate)
	assert.Equal(t, float64(212), info.Duration)
	assert.Equal(t, int64(1500000000), info.ViewCount)
	require.Len(t, info.Formats, 5)

	sb := info.Formats[0]
	assert.False(t, sb.HasVideo)
	assert.False(t, sb.HasAudio)

	audio := info.Formats[1]
	assert.False(t, audio.HasVideo)
	assert.True(t, audio.HasAudio)
	require.NotNil(t, audio.TBR)
	assert.Equal(t, 129.5, *audio.TBR)
	require.NotNil(t, audio.FileSize)
	assert.Equal(t, int64(3433514), *audio.FileSize)

	video := info.Formats[2]
	assert.True(t, video.HasVideo)
	assert.False(t, video.HasAudio)
	require.NotNil(t, video.Height)
	assert.Equal(t, 1080, *video.Height)
	assert.Nil(t, video.FileSize)
	require.NotNil(t, video.FileSizeApprox)

	combined := info.Formats[3]
	assert.Nil(t, combined.Height)
	assert.Equal(t, "640x360", combined.Resolution)
	assert.Equal(t, "https://example.com/18", combined.URL)

	// missing codec fields do not mean a missing track
	bare := info.Formats[4]
	assert.True(t, bare.HasVideo)
	assert.True(t, bare.HasAudio)
}

func TestParseInfoInvalid(t *testing.T) {
	_, err := ParseInfo([]byte("WARNING: something\n"))
	assert.Error(t, err)
}

func TestProgressEvent(t *testing.T) {
	ev, ok := progressEvent("137", "", ytdlp.ProgressStatusDownloading, 1024, 4096)
	require.True(t, ok)
	assert.Equal(t, ProgressEvent{FormatID: "137", Status: StatusInProgress, Downloaded: 1024, Total: 4096}, ev)

	ev, ok = progressEvent("", "/tmp/youtube/job/abc.f140.m4a.part", ytdlp.ProgressStatusFinished, 10, 10)
	require.True(t, ok)
	assert.Equal(t, "140", ev.FormatID)
	assert.Equal(t, StatusFinished, ev.Status)

	_, ok = progressEvent("137", "", ytdlp.ProgressStatusPostProcessing, 0, 0)
	assert.False(t, ok)
}

func TestClassifyExecError(t *testing.T) {
	res := &ytdlp.Result{
		ExitCode: 1,
		Stderr:   "ERROR: [youtube] abc: Sign in to confirm you're not a bot. Use --cookies-from-browser or --cookies for the authentication.\nmore detail",
	}
	err := classifyExecError("download", res, errors.New("exit status 1"))

	var authErr *AuthRequiredError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, authErr.Detail, "Sign in to confirm")

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 1, execErr.ExitCode)

	err = classifyExecError("download", &ytdlp.Result{ExitCode: 1, Stderr: "ERROR: Requested format is not available"}, errors.New("exit status 1"))
	assert.False(t, errors.As(err, &authErr))
	assert.Equal(t, "download: ERROR: Requested format is not available", err.Error())
}

func TestIsAuthMessage(t *testing.T) {
	assert.True(t, IsAuthMessage("ERROR: Sign in to confirm your age"))
	assert.True(t, IsAuthMessage("use --cookies-from-browser or --cookies for the authentication"))
	assert.False(t, IsAuthMessage("HTTP Error 403: Forbidden"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "first", FirstLine("\n  first  \nsecond"))
	assert.Equal(t, "", FirstLine(""))
}
