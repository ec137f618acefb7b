// Package session owns the single active commentary session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/commentator/audiocapture"
	"go.aimuz.me/commentator/config"
	"go.aimuz.me/commentator/credential"
	"go.aimuz.me/commentator/internal/types"
	"go.aimuz.me/commentator/realtime"
	"go.aimuz.me/commentator/sampler"
)

// ErrNoSession is returned by operations that need an active session.
var ErrNoSession = errors.New("no active session")

// TokenFetcher obtains an ephemeral credential.
type TokenFetcher interface {
	Fetch(ctx context.Context) (credential.Token, error)
}

// Conn is a negotiated realtime connection.
type Conn interface {
	Channel() *realtime.Channel
	RemoteAudio() *realtime.RemoteAudio
	ConnectionState() string
	Close() error
}

// Dialer negotiates a realtime connection.
type Dialer interface {
	Dial(ctx context.Context, token string, mic audiocapture.Capturer, h realtime.Handlers) (Conn, error)
}

// NegotiatorDialer adapts a realtime.Negotiator to Dialer.
type NegotiatorDialer struct {
	*realtime.Negotiator
}

func (d NegotiatorDialer) Dial(ctx context.Context, token string, mic audiocapture.Capturer, h realtime.Handlers) (Conn, error) {
	conn, err := d.Negotiate(ctx, token, mic, h)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Journal receives user-visible progress lines.
type Journal interface {
	Append(line string)
}

// Session is one negotiated connection plus its sampler.
type Session struct {
	ID      string
	started time.Time

	conn    Conn
	sampler *sampler.Sampler

	opened   chan struct{}
	openOnce sync.Once

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// Channel returns the control channel.
func (s *Session) Channel() *realtime.Channel { return s.conn.Channel() }

// RemoteAudio returns the agent's audio, or nil until it arrives.
func (s *Session) RemoteAudio() *realtime.RemoteAudio { return s.conn.RemoteAudio() }

// Opened is closed once the control channel opens.
func (s *Session) Opened() <-chan struct{} { return s.opened }

// Sampler returns the session's visual sampler.
func (s *Session) Sampler() *sampler.Sampler { return s.sampler }

// Close stops sampling and tears down the connection. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	if s.sampler != nil {
		s.sampler.Stop()
	}
	s.closeErr = s.conn.Close()
	return s.closeErr
}

// restartSampler restarts the timer unless the session is closed.
func (s *Session) restartSampler(interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.sampler == nil {
		return false
	}
	s.sampler.Start(interval)
	return true
}

func (s *Session) status() types.SessionStatus {
	return types.SessionStatus{
		Active:          true,
		ID:              s.ID,
		ChannelOpen:     s.conn.Channel() != nil && s.conn.Channel().IsOpen(),
		ConnectionState: s.conn.ConnectionState(),
		Sampling:        s.sampler != nil && s.sampler.Running(),
		Duration:        int64(time.Since(s.started).Seconds()),
	}
}

// Options configures a Manager.
type Options struct {
	Fetcher TokenFetcher
	Dialer  Dialer
	Config  *config.Handle
	Surface sampler.Snapshotter
	Journal Journal
	// Events receives decoded inbound control messages.
	Events realtime.EventHandler
	// Microphone opens the local audio input. Nil sends no local audio.
	Microphone func() (audiocapture.Capturer, error)
	// OnAudio runs when a session's agent audio arrives.
	OnAudio func(*realtime.RemoteAudio)
	// SamplerOptions are passed to every session's sampler.
	SamplerOptions []sampler.Option
}

// Manager holds at most one active Session. Starting a new one always
// closes the previous one first.
type Manager struct {
	opts Options

	startMu sync.Mutex // serializes Start and Stop
	mu      sync.RWMutex
	current *Session
}

// NewManager creates a manager and subscribes it to configuration changes.
func NewManager(opts Options) *Manager {
	m := &Manager{opts: opts}
	if opts.Config != nil {
		opts.Config.OnChange(m.configChanged)
	}
	return m
}

func (m *Manager) log(line string) {
	if m.opts.Journal != nil {
		m.opts.Journal.Append(line)
	}
}

func (m *Manager) fail(err error) error {
	m.log("Error: " + err.Error())
	return err
}

// Start tears down any current session, then fetches a credential,
// negotiates and starts sampling. The initial instruction is sent exactly
// once, when the control channel opens. On failure no session is current.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.closeCurrent()

	m.log("Connecting to server...")
	tok, err := m.opts.Fetcher.Fetch(ctx)
	if err != nil {
		slog.Warn("fetch credential", "error", err)
		return nil, m.fail(err)
	}
	m.log("Got session token")

	var mic audiocapture.Capturer
	if m.opts.Microphone != nil {
		mic, err = m.opts.Microphone()
		if err != nil {
			return nil, m.fail(fmt.Errorf("%w: %w", types.ErrMediaAccess, err))
		}
	}

	s := &Session{
		ID:      uuid.NewString(),
		started: time.Now(),
		opened:  make(chan struct{}),
	}

	conn, err := m.opts.Dialer.Dial(ctx, tok.Value, mic, realtime.Handlers{
		OnOpen:  func(ch *realtime.Channel) { m.opened(s, ch) },
		OnAudio: m.opts.OnAudio,
		Events:  m.opts.Events,
	})
	if err != nil {
		slog.Warn("negotiate session", "error", err)
		return nil, m.fail(err)
	}
	s.conn = conn

	opts := append([]sampler.Option{sampler.WithJournal(m.opts.Journal)}, m.opts.SamplerOptions...)
	s.sampler = sampler.New(m.opts.Config, m.opts.Surface, conn.Channel(), opts...)
	s.sampler.Start(m.opts.Config.Load().Interval())

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	slog.Info("session started", "id", s.ID)
	return s, nil
}

// opened delivers the initial instruction. A dropped open callback is not
// retried.
func (m *Manager) opened(s *Session, ch *realtime.Channel) {
	s.openOnce.Do(func() {
		close(s.opened)
		if err := ch.Send(realtime.InitialInstruction(m.opts.Config.Load())); err != nil {
			slog.Warn("send initial instruction", "session", s.ID, "error", err)
			m.log("Error: " + err.Error())
			return
		}
		m.log("Sent initial instruction")
	})
}

// Stop closes the current session, if any.
func (m *Manager) Stop() error {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	return m.closeCurrent()
}

func (m *Manager) closeCurrent() error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	err := s.Close()
	slog.Info("session closed", "id", s.ID, "error", err)
	return err
}

// Current returns the active session or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Status describes the active session.
func (m *Manager) Status() types.SessionStatus {
	s := m.Current()
	if s == nil {
		return types.SessionStatus{}
	}
	return s.status()
}

// ReportStroke sends the stroke-completion reaction on the current session.
func (m *Manager) ReportStroke() error {
	s := m.Current()
	if s == nil {
		return ErrNoSession
	}
	return s.sampler.SendStroke()
}

// configChanged restarts the sampler so the timer follows the new values.
func (m *Manager) configChanged(_, updated config.Commentary) {
	s := m.Current()
	if s == nil || !s.restartSampler(updated.Interval()) {
		return
	}
	slog.Debug("sampler restarted", "session", s.ID, "interval", updated.Interval())
}
