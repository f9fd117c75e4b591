// Package catalog turns a backend format list into a deterministic
// video+audio selection.
package catalog

import (
	"math"
	"strconv"
	"strings"

	"videorelay/internal/model"
)

// UnknownSize is the sort key of a descriptor without any size information.
const UnknownSize int64 = math.MaxInt64

// Partition splits descriptors into video-capable and audio-only lists,
// keeping catalog order.
func Partition(descs []model.Descriptor) (video, audioOnly []model.Descriptor) {
	for _, d := range descs {
		switch {
		case d.HasVideo:
			video = append(video, d)
		case d.HasAudio:
			audioOnly = append(audioOnly, d)
		}
	}
	return video, audioOnly
}

// Size returns the exact size, else the approximate size. ok is false when
// neither is known.
func Size(d model.Descriptor) (size int64, ok bool) {
	if d.FileSize != nil {
		return *d.FileSize, true
	}
	if d.FileSizeApprox != nil {
		return *d.FileSizeApprox, true
	}
	return 0, false
}

// SortKey is Size with unknown mapped to UnknownSize so it sorts last.
func SortKey(d model.Descriptor) int64 {
	if size, ok := Size(d); ok {
		return size
	}
	return UnknownSize
}

// Height returns the structured height, falling back to the H of a "WxH"
// resolution string.
func Height(d model.Descriptor) (int, bool) {
	if d.Height != nil && *d.Height > 0 {
		return *d.Height, true
	}
	_, h, ok := parseResolution(d.Resolution)
	return h, ok
}

func parseResolution(resolution string) (w, h int, ok bool) {
	ws, hs, found := strings.Cut(strings.TrimSpace(resolution), "x")
	if !found {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return w, h, true
}
