package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Sentinel errors.
var (
	ErrNotReady = errors.New("channel not ready")
	ErrClosed   = errors.New("channel closed")
)

// DataChannel is the subset of *webrtc.DataChannel the control channel uses.
type DataChannel interface {
	ReadyState() webrtc.DataChannelState
	SendText(s string) error
	Close() error
}

// EventHandler consumes decoded inbound messages.
type EventHandler interface {
	HandleEvent(Event)
	// HandleParseError receives messages that failed to decode. It must not
	// panic; the channel keeps delivering after it returns.
	HandleParseError(error)
}

// Channel is the control channel: outbound instructions, inbound events.
type Channel struct {
	mu      sync.Mutex
	dc      DataChannel
	handler EventHandler
	closed  bool
	sent    int
}

// NewChannel wraps dc. handler may be nil, in which case inbound messages are
// decoded and dropped.
func NewChannel(dc DataChannel, handler EventHandler) *Channel {
	return &Channel{dc: dc, handler: handler}
}

// IsOpen reports whether the underlying channel is in the open state.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.dc != nil && c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Send serializes ev and transmits it. Nothing is queued: when the channel is
// not open the message is discarded and ErrNotReady returned.
func (c *Channel) Send(ev ResponseCreate) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	dc := c.dc
	c.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotReady
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}

	slog.Debug("sending event", "type", ev.Type, "bytes", len(data))
	if err := dc.SendText(string(data)); err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}

	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
	return nil
}

// Sent returns the number of messages transmitted so far.
func (c *Channel) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// HandleMessage decodes one inbound message and hands it to the handler.
// Decode failures are reported to the handler and never returned.
func (c *Channel) HandleMessage(data []byte) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()

	ev, err := ParseEvent(data)
	if err != nil {
		slog.Warn("failed to parse event", "error", err)
		if h != nil {
			h.HandleParseError(err)
		}
		return
	}
	if h != nil {
		h.HandleEvent(ev)
	}
}

// Close closes the underlying channel. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.dc == nil {
		return nil
	}
	return c.dc.Close()
}
