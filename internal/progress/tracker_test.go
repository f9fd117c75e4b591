package progress

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBarTrackerCloseIsIdempotent(t *testing.T) {
	tracker := NewBarTracker(io.Discard, 0)

	h := tracker.Observe("transfer [abc]", 1024)
	h.Advance(512)
	h.Close()
	h.Close()
	h.Advance(512) // ignored after close
}

func TestBarTrackerCompletes(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewBarTracker(&buf, 10*time.Millisecond)

	h := tracker.Observe("transfer [abc]", 2048)
	h.Advance(1024)
	h.Advance(1024)
	h.Close()
	<-h.(*barHandle).done

	assert.Contains(t, buf.String(), "transfer [abc]")
}

func TestBarTrackerCloseDoesNotWaitForRender(t *testing.T) {
	tracker := NewBarTracker(io.Discard, 2*time.Second)

	h := tracker.Observe("audio [abc] (format: 140)", 4096)
	h.Advance(1024)

	start := time.Now()
	h.Close()
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	select {
	case <-h.(*barHandle).done:
	case <-time.After(10 * time.Second):
		t.Fatal("bar never shut down")
	}
}

func TestBarTrackerIgnoresEmptyTotals(t *testing.T) {
	tracker := NewBarTracker(io.Discard, 0)
	assert.IsType(t, nopHandle{}, tracker.Observe("empty", 0))
	assert.IsType(t, nopHandle{}, tracker.Observe("unknown", -1))
}

func TestBarTrackerHandlesAreIndependent(t *testing.T) {
	tracker := NewBarTracker(io.Discard, 0)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := tracker.Observe("parallel", 4096)
			for j := 0; j < 4; j++ {
				h.Advance(1024)
			}
			h.Close()
		}()
	}
	wg.Wait()
}

type recordingTracker struct {
	mu      sync.Mutex
	handles map[string]*recordingHandle
}

type recordingHandle struct {
	total    int64
	advanced int64
	closes   int
}

func (r *recordingTracker) Observe(name string, total int64) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles == nil {
		r.handles = make(map[string]*recordingHandle)
	}
	h := &recordingHandle{total: total}
	r.handles[name] = h
	return h
}

func (h *recordingHandle) Advance(n int64) { h.advanced += n }
func (h *recordingHandle) Close()          { h.closes++ }

func TestStreamSetConvertsCumulativeCounts(t *testing.T) {
	rec := &recordingTracker{}
	set := NewStreamSet(rec, "download [abc]")

	set.Update("137", 0, 0) // no total yet, no bar
	set.Update("137", 100, 1000)
	set.Update("137", 600, 1000)
	set.Update("137", 600, 1000)
	set.Update("137", 1000, 1000)
	set.Finish("137")

	set.Update("140", 50, 200)
	set.Close()
	set.Close()

	video := rec.handles["download [abc] (format: 137)"]
	assert.Equal(t, int64(1000), video.total)
	assert.Equal(t, int64(1000), video.advanced)
	assert.Equal(t, 1, video.closes)

	audio := rec.handles["download [abc] (format: 140)"]
	assert.Equal(t, int64(50), audio.advanced)
	assert.Equal(t, 1, audio.closes)
}

func TestStreamSetNilTracker(t *testing.T) {
	set := NewStreamSet(nil, "x")
	set.Update("1", 10, 10)
	set.Finish("1")
	set.Close()
}
