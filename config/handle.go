package config

import (
	"sync"
	"time"
)

// Handle is a shared, mutable reference to the commentary parameters.
// Readers call Load at the moment they need the values, so edits apply to
// every later read.
type Handle struct {
	mu       sync.RWMutex
	current  Commentary
	onChange []func(old, updated Commentary)
}

// NewHandle creates a Handle holding c.
func NewHandle(c Commentary) *Handle {
	return &Handle{current: c.normalized()}
}

// Load returns a copy of the current values.
func (h *Handle) Load() Commentary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Update mutates the values under lock and notifies subscribers.
func (h *Handle) Update(fn func(*Commentary)) {
	h.mu.Lock()
	old := h.current
	next := old
	fn(&next)
	next = next.normalized()
	h.current = next
	subs := h.onChange
	h.mu.Unlock()

	for _, cb := range subs {
		cb(old, next)
	}
}

// Set applies a single key=value edit.
func (h *Handle) Set(key, value string) error {
	var err error
	h.Update(func(c *Commentary) {
		err = c.set(key, value)
	})
	return err
}

// OnChange registers a callback invoked after every Update.
func (h *Handle) OnChange(fn func(old, updated Commentary)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Interval returns the sampling interval as a duration.
func (c Commentary) Interval() time.Duration {
	return time.Duration(c.SamplingInterval * float64(time.Second))
}
