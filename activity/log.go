// Package activity keeps the user-visible event log and the rolling
// subtitle buffer.
package activity

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Entry is one line of the activity log.
type Entry struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log is an append-only, ordered activity log. Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	subs    []func(Entry)
	now     func() time.Time
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append adds a line.
func (l *Log) Append(text string) {
	l.mu.Lock()
	e := Entry{Time: l.now(), Text: text}
	l.entries = append(l.entries, e)
	subs := l.subs
	l.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Appendf adds a formatted line.
func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the log in arrival order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe registers fn for every later entry. fn runs on the appending
// goroutine.
func (l *Log) Subscribe(fn func(Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}
