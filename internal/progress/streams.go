package progress

import "sync"

// StreamSet keeps one handle per sub-stream of a download and converts
// cumulative byte counts into increments.
type StreamSet struct {
	tracker Tracker
	label   string

	mu      sync.Mutex
	handles map[string]Handle
	last    map[string]int64
}

// NewStreamSet creates a set whose bars are named "<label> (format: <id>)"
func NewStreamSet(tracker Tracker, label string) *StreamSet {
	if tracker == nil {
		tracker = Nop
	}
	return &StreamSet{
		tracker: tracker,
		label:   label,
		handles: make(map[string]Handle),
		last:    make(map[string]int64),
	}
}

// Update records the cumulative count of one sub-stream. The first update
// with a known total opens its bar.
func (s *StreamSet) Update(formatID string, downloaded, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[formatID]
	if !ok {
		if total <= 0 {
			return
		}
		h = s.tracker.Observe(s.label+" (format: "+formatID+")", total)
		s.handles[formatID] = h
	}
	if delta := downloaded - s.last[formatID]; delta > 0 {
		h.Advance(delta)
		s.last[formatID] = downloaded
	}
}

// Finish closes the bar of one sub-stream.
func (s *StreamSet) Finish(formatID string) {
	s.mu.Lock()
	h, ok := s.handles[formatID]
	delete(s.handles, formatID)
	s.mu.Unlock()

	if ok {
		h.Close()
	}
}

// Close closes every remaining bar.
func (s *StreamSet) Close() {
	s.mu.Lock()
	handles := s.handles
	s.handles = make(map[string]Handle)
	s.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}
