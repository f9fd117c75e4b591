// Package progress renders byte counters as console progress bars. It is
// purely observational: nothing in the pipeline waits on it.
package progress

import (
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v6"
	"github.com/vbauerster/mpb/v6/decor"
)

// DefaultRefresh renders at most ten times per second.
const DefaultRefresh = 100 * time.Millisecond

// Tracker hands out one Handle per logical transfer
type Tracker interface {
	Observe(name string, total int64) Handle
}

// Handle is an additive byte counter. Close is idempotent.
type Handle interface {
	Advance(n int64)
	Close()
}

// Nop discards everything
var Nop Tracker = nopTracker{}

type nopTracker struct{}

func (nopTracker) Observe(string, int64) Handle { return nopHandle{} }

type nopHandle struct{}

func (nopHandle) Advance(int64) {}
func (nopHandle) Close()        {}

// BarTracker renders each observed transfer in its own mpb container, so
// closing one transfer never touches another's bar.
type BarTracker struct {
	out     io.Writer
	refresh time.Duration
}

// NewBarTracker creates a tracker writing to out
func NewBarTracker(out io.Writer, refresh time.Duration) *BarTracker {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &BarTracker{out: out, refresh: refresh}
}

// Observe starts a bar. Unknown or empty totals get a no-op handle.
func (t *BarTracker) Observe(name string, total int64) Handle {
	if total <= 0 {
		return nopHandle{}
	}

	p := mpb.New(
		mpb.WithOutput(t.out),
		mpb.WithWidth(90),
		mpb.WithRefreshRate(t.refresh),
	)
	bar := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .2f / % .2f"),
			decor.Name(" "),
			decor.AverageSpeed(decor.UnitKiB, "% .2f"),
			decor.Name(" "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
	return &barHandle{progress: p, bar: bar, total: total, done: make(chan struct{})}
}

type barHandle struct {
	mu       sync.Mutex
	progress *mpb.Progress
	bar      *mpb.Bar
	total    int64
	current  int64
	closed   bool
	once     sync.Once
	done     chan struct{}
}

func (h *barHandle) Advance(n int64) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.current += n
	h.bar.IncrInt64(n)
}

// Close stops counting at once; the final render happens in the background
// so callers never wait for a refresh tick.
func (h *barHandle) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		complete := h.current >= h.total
		h.mu.Unlock()

		go func() {
			defer close(h.done)
			if !complete {
				h.bar.Abort(false)
			}
			h.progress.Wait()
		}()
	})
}
