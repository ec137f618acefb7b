// Package sampler periodically sends the sketch to the agent as visual
// context.
package sampler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.aimuz.me/commentator/config"
	"go.aimuz.me/commentator/realtime"
	"go.aimuz.me/commentator/sketch"
)

// Snapshotter captures the drawable surface.
type Snapshotter interface {
	Snapshot() (sketch.Snapshot, error)
}

// Sender is the control channel as seen by the sampler.
type Sender interface {
	IsOpen() bool
	Send(realtime.ResponseCreate) error
}

// Journal receives user-visible progress lines.
type Journal interface {
	Append(line string)
}

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func stdTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithJournal reports each send to j.
func WithJournal(j Journal) Option {
	return func(s *Sampler) { s.journal = j }
}

// WithTicker replaces the wall-clock ticker.
func WithTicker(fn TickerFunc) Option {
	return func(s *Sampler) { s.newTicker = fn }
}

// Sampler sends a snapshot on every tick while the channel is open.
// Configuration is read from the handle at send time.
type Sampler struct {
	cfg       *config.Handle
	surface   Snapshotter
	ch        Sender
	journal   Journal
	newTicker TickerFunc

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New creates a stopped sampler.
func New(cfg *config.Handle, surface Snapshotter, ch Sender, opts ...Option) *Sampler {
	s := &Sampler{
		cfg:       cfg,
		surface:   surface,
		ch:        ch,
		newTicker: stdTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins sampling every interval, replacing any running timer.
func (s *Sampler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Duration(config.DefaultSamplingInterval * float64(time.Second))
	}

	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tick, stopTicker := s.newTicker(interval)
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		defer stopTicker()
		for {
			select {
			case <-stop:
				return
			case <-tick:
			}
			// A stop racing the tick wins.
			select {
			case <-stop:
				return
			default:
			}
			if err := s.sample(); err != nil {
				slog.Debug("canvas sample skipped", "error", err)
			}
		}
	}()

	slog.Debug("sampler started", "interval", interval)
}

// Stop cancels the timer and waits for an in-flight sample to finish.
// Safe to call when not running.
func (s *Sampler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	slog.Debug("sampler stopped")
}

// Running reports whether the timer is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Sampler) sample() error {
	if !s.ch.IsOpen() {
		return realtime.ErrNotReady
	}
	b64, err := s.snapshot()
	if err != nil {
		return err
	}
	if err := s.ch.Send(realtime.SampleInstruction(s.cfg.Load(), b64)); err != nil {
		return fmt.Errorf("send sample: %w", err)
	}
	s.log("Sent canvas sample")
	return nil
}

// SendStroke sends one reaction request for the stroke just completed,
// independent of the timer.
func (s *Sampler) SendStroke() error {
	if !s.ch.IsOpen() {
		return realtime.ErrNotReady
	}
	b64, err := s.snapshot()
	if err != nil {
		return err
	}
	if err := s.ch.Send(realtime.StrokeInstruction(s.cfg.Load(), b64)); err != nil {
		return fmt.Errorf("send stroke: %w", err)
	}
	s.log("Sent stroke reaction")
	return nil
}

func (s *Sampler) snapshot() (string, error) {
	snap, err := s.surface.Snapshot()
	if err != nil {
		slog.Warn("canvas snapshot failed", "error", err)
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return snap.Base64(), nil
}

func (s *Sampler) log(line string) {
	if s.journal != nil {
		s.journal.Append(line)
	}
}
