package activity

import (
	"slices"
	"sync"
)

// DefaultSubtitleLines is the number of fragments kept on screen.
const DefaultSubtitleLines = 5

// Subtitles is a bounded FIFO of the most recent text fragments.
type Subtitles struct {
	mu    sync.RWMutex
	max   int
	lines []string
	subs  []func([]string)
}

// NewSubtitles returns a buffer holding at most max lines. Non-positive max
// uses DefaultSubtitleLines.
func NewSubtitles(max int) *Subtitles {
	if max <= 0 {
		max = DefaultSubtitleLines
	}
	return &Subtitles{max: max, lines: make([]string, 0, max)}
}

// Push appends s, evicting the oldest fragment when full.
func (s *Subtitles) Push(text string) {
	s.mu.Lock()
	if len(s.lines) == s.max {
		copy(s.lines, s.lines[1:])
		s.lines = s.lines[:s.max-1]
	}
	s.lines = append(s.lines, text)
	snapshot := slices.Clone(s.lines)
	subs := s.subs
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Lines returns the buffered fragments, oldest first.
func (s *Subtitles) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines)
}

// Subscribe registers fn for every change.
func (s *Subtitles) Subscribe(fn func([]string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
