package catalog

import (
	"testing"

	"videorelay/internal/model"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int           { return &v }
func int64p(v int64) *int64     { return &v }
func floatp(v float64) *float64 { return &v }

func TestPartition(t *testing.T) {
	descs := []model.Descriptor{
		{FormatID: "18", HasVideo: true, HasAudio: true},
		{FormatID: "140", HasAudio: true},
		{FormatID: "137", HasVideo: true},
		{FormatID: "sb0"},
		{FormatID: "251", HasAudio: true},
	}

	video, audio := Partition(descs)

	assert.Equal(t, []string{"18", "137"}, ids(video))
	assert.Equal(t, []string{"140", "251"}, ids(audio))
}

func TestPartitionEmpty(t *testing.T) {
	video, audio := Partition(nil)
	assert.Empty(t, video)
	assert.Empty(t, audio)
}

func TestSize(t *testing.T) {
	tests := []struct {
		name  string
		desc  model.Descriptor
		size  int64
		known bool
	}{
		{"exact wins", model.Descriptor{FileSize: int64p(10), FileSizeApprox: int64p(20)}, 10, true},
		{"approx fallback", model.Descriptor{FileSizeApprox: int64p(20)}, 20, true},
		{"zero is a real size", model.Descriptor{FileSize: int64p(0)}, 0, true},
		{"unknown", model.Descriptor{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, known := Size(tt.desc)
			assert.Equal(t, tt.size, size)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestSortKeyPutsUnknownLast(t *testing.T) {
	assert.Equal(t, UnknownSize, SortKey(model.Descriptor{}))
	assert.Less(t, SortKey(model.Descriptor{FileSizeApprox: int64p(1 << 40)}), SortKey(model.Descriptor{}))
}

func TestHeight(t *testing.T) {
	h, ok := Height(model.Descriptor{Height: intp(720)})
	assert.True(t, ok)
	assert.Equal(t, 720, h)

	h, ok = Height(model.Descriptor{Resolution: "854x480"})
	assert.True(t, ok)
	assert.Equal(t, 480, h)

	_, ok = Height(model.Descriptor{Resolution: "audio only"})
	assert.False(t, ok)
}

func ids(descs []model.Descriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.FormatID)
	}
	return out
}
