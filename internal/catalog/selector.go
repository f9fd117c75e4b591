package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"videorelay/internal/model"
)

// Tiers are the target heights tried in order.
var Tiers = []int{1080, 720, 480, 360}

// SelectionErrorKind identifies why no pair could be selected
type SelectionErrorKind int

const (
	NoVideoFormat SelectionErrorKind = iota + 1
	NoAudioFormat
)

func (k SelectionErrorKind) String() string {
	switch k {
	case NoVideoFormat:
		return "no_video_format"
	case NoAudioFormat:
		return "no_audio_format"
	default:
		return "unknown"
	}
}

// SelectionError is returned when the catalog has no acceptable pair.
type SelectionError struct {
	Kind SelectionErrorKind
}

func (e *SelectionError) Error() string {
	switch e.Kind {
	case NoVideoFormat:
		return "no suitable video format found"
	case NoAudioFormat:
		return "no suitable audio format found"
	default:
		return "format selection failed"
	}
}

// ErrCode maps the kind to the API error code.
func (e *SelectionError) ErrCode() int {
	if e.Kind == NoAudioFormat {
		return model.CodeNoAudioFormat
	}
	return model.CodeNoVideoFormat
}

// Select picks one video and one audio-only descriptor.
//
// Video: the first mp4 candidate of the highest tier that has one. A tier
// whose candidates are all non-mp4 is skipped. Audio: highest bitrate,
// absent bitrate counts as zero, ties keep catalog order.
func Select(video, audioOnly []model.Descriptor) (*model.SelectedFormat, error) {
	v, ok := selectVideo(video)
	if !ok {
		return nil, &SelectionError{Kind: NoVideoFormat}
	}
	a, ok := selectAudio(audioOnly)
	if !ok {
		return nil, &SelectionError{Kind: NoAudioFormat}
	}

	sel := &model.SelectedFormat{
		Video:        v,
		Audio:        a,
		CompositeID:  v.FormatID + "+" + a.FormatID,
		SizeComplete: true,
	}
	for _, d := range []model.Descriptor{v, a} {
		if size, known := Size(d); known {
			sel.TotalSize += size
		} else {
			sel.SizeComplete = false
		}
	}
	return sel, nil
}

// MatchesTier reports whether d is a candidate for the given tier.
func MatchesTier(d model.Descriptor, tier int) bool {
	if d.Height != nil && *d.Height == tier {
		return true
	}
	res := d.Resolution
	return strings.HasSuffix(res, "x"+strconv.Itoa(tier)) || strings.HasPrefix(res, strconv.Itoa(tier)+"x")
}

func selectVideo(video []model.Descriptor) (model.Descriptor, bool) {
	for _, tier := range Tiers {
		for _, d := range video {
			if MatchesTier(d, tier) && strings.EqualFold(d.Ext, "mp4") {
				return d, true
			}
		}
	}
	return model.Descriptor{}, false
}

func selectAudio(audioOnly []model.Descriptor) (model.Descriptor, bool) {
	if len(audioOnly) == 0 {
		return model.Descriptor{}, false
	}
	best := audioOnly[0]
	for _, d := range audioOnly[1:] {
		if bitrate(d) > bitrate(best) {
			best = d
		}
	}
	return best, true
}

func bitrate(d model.Descriptor) float64 {
	if d.TBR == nil {
		return 0
	}
	return *d.TBR
}

// SplitComposite returns the distinct sub-stream ids of a composite id.
func SplitComposite(composite string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, id := range strings.Split(composite, "+") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Describe renders a descriptor for logs.
func Describe(d model.Descriptor) string {
	h, _ := Height(d)
	size := "unknown"
	if s, ok := Size(d); ok {
		size = fmt.Sprintf("%.2fMB", float64(s)/(1024*1024))
	}
	return fmt.Sprintf("id=%s height=%dp ext=%s vcodec=%s acodec=%s size=%s", d.FormatID, h, d.Ext, d.VCodec, d.ACodec, size)
}
