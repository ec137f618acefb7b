// Package app wires the commentary components into one service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.aimuz.me/commentator/activity"
	"go.aimuz.me/commentator/audiocapture"
	"go.aimuz.me/commentator/config"
	"go.aimuz.me/commentator/credential"
	"go.aimuz.me/commentator/internal/types"
	"go.aimuz.me/commentator/realtime"
	"go.aimuz.me/commentator/recorder"
	"go.aimuz.me/commentator/session"
	"go.aimuz.me/commentator/sketch"
)

// Emitter receives named events for the front end.
type Emitter func(name string, data any)

// Options overrides the default collaborators. Zero values use the
// configured defaults.
type Options struct {
	Fetcher    session.TokenFetcher
	Dialer     session.Dialer
	Exporter   recorder.Exporter
	Microphone func() (audiocapture.Capturer, error)
	Emit       Emitter
}

// Service orchestrates sessions, the sketch surface and recording.
// Business logic lives in the component packages.
type Service struct {
	cfg       *config.Config
	handle    *config.Handle
	log       *activity.Log
	subtitles *activity.Subtitles
	canvas    *sketch.Canvas
	sessions  *session.Manager
	recorder  *recorder.Recorder
	emit      Emitter
}

// New creates a Service from cfg.
func New(cfg *config.Config, opts Options) *Service {
	s := &Service{
		cfg:       cfg,
		handle:    config.NewHandle(cfg.Commentary),
		log:       activity.NewLog(),
		subtitles: activity.NewSubtitles(activity.DefaultSubtitleLines),
		canvas:    sketch.New(cfg.Canvas.Width, cfg.Canvas.Height, cfg.Canvas.SnapshotMaxWidth),
		recorder:  recorder.New(opts.Exporter),
		emit:      opts.Emit,
	}

	if opts.Fetcher == nil {
		opts.Fetcher = credential.NewFetcher(cfg.Realtime.SessionURL)
	}
	if opts.Dialer == nil {
		opts.Dialer = session.NegotiatorDialer{Negotiator: &realtime.Negotiator{
			BaseURL:    cfg.Realtime.BaseURL,
			Model:      cfg.Realtime.Model,
			ICEServers: cfg.Realtime.ICEServers,
			Journal:    s.log,
		}}
	}
	if opts.Microphone == nil {
		audioCfg := audiocapture.Config{
			Device:     cfg.Audio.Device,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		}
		opts.Microphone = func() (audiocapture.Capturer, error) {
			return audiocapture.New(audioCfg)
		}
	}

	s.sessions = session.NewManager(session.Options{
		Fetcher:    opts.Fetcher,
		Dialer:     opts.Dialer,
		Config:     s.handle,
		Surface:    s.canvas,
		Journal:    s.log,
		Events:     activity.NewAggregator(s.log, s.subtitles),
		Microphone: opts.Microphone,
		OnAudio: func(*realtime.RemoteAudio) {
			s.log.Append("Receiving agent audio")
		},
	})

	s.applyPen(s.handle.Load())
	s.handle.OnChange(func(_, updated config.Commentary) { s.applyPen(updated) })
	s.canvas.OnStrokeComplete(func(sketch.Stroke) { go s.reportStroke() })

	s.log.Subscribe(func(e activity.Entry) { s.send(EventLogEntry, e) })
	s.subtitles.Subscribe(func(lines []string) { s.send(EventSubtitles, lines) })
	s.recorder.OnChange(func(st types.RecordingStatus) { s.send(EventRecording, st) })
	s.recorder.OnSourceEnded(s.recordingEnded)

	return s
}

func (s *Service) send(name string, data any) {
	if s.emit != nil {
		s.emit(name, data)
	}
}

func (s *Service) applyPen(c config.Commentary) {
	s.canvas.SetPen(config.ParseStrokeColor(c.StrokeColor), c.StrokeWidth)
}

func (s *Service) reportStroke() {
	err := s.sessions.ReportStroke()
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoSession), errors.Is(err, realtime.ErrNotReady):
		slog.Debug("stroke not reported", "error", err)
	default:
		slog.Warn("report stroke", "error", err)
	}
}

// Log returns the activity log.
func (s *Service) Log() *activity.Log { return s.log }

// Subtitles returns the subtitle buffer.
func (s *Service) Subtitles() *activity.Subtitles { return s.subtitles }

// Canvas returns the sketch surface.
func (s *Service) Canvas() *sketch.Canvas { return s.canvas }

// Config returns the live commentary handle.
func (s *Service) Config() *config.Handle { return s.handle }

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

// GenerateCommentary starts a fresh session, replacing any current one.
// Failures are already in the log; the service stays usable.
func (s *Service) GenerateCommentary(ctx context.Context) error {
	if _, err := s.sessions.Start(ctx); err != nil {
		s.send(EventSession, s.sessions.Status())
		return fmt.Errorf("start session: %w", err)
	}
	s.send(EventSession, s.sessions.Status())
	return nil
}

// StopCommentary closes the current session.
func (s *Service) StopCommentary() error {
	err := s.sessions.Stop()
	s.send(EventSession, s.sessions.Status())
	return err
}

// Status describes the current session.
func (s *Service) Status() types.SessionStatus {
	return s.sessions.Status()
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording
// ─────────────────────────────────────────────────────────────────────────────

// ToggleRecording starts recording the agent's voice, or stops and exports
// the recording. Starting before the agent's audio has arrived does nothing.
func (s *Service) ToggleRecording(ctx context.Context) (*recorder.Artifact, error) {
	var stream recorder.Stream
	if cur := s.sessions.Current(); cur != nil {
		if audio := cur.RemoteAudio(); audio != nil {
			stream = audio
		}
	}
	if stream == nil && s.recorder.State() == recorder.Idle {
		slog.Info("recording unavailable: no agent audio yet")
	}

	a, err := s.recorder.Toggle(ctx, stream)
	if err != nil {
		s.log.Append("Error: " + err.Error())
		return a, err
	}
	if a != nil {
		s.log.Appendf("Saved %s (%d bytes)", a.Name, len(a.Data))
	}
	return a, nil
}

// recordingEnded reports a recording finalized because its session closed.
func (s *Service) recordingEnded(a *recorder.Artifact, err error) {
	s.log.Append("Recording source ended")
	if err != nil {
		s.log.Append("Error: " + err.Error())
		return
	}
	s.log.Appendf("Saved %s (%d bytes)", a.Name, len(a.Data))
}

// RecordingStatus returns the recorder state.
func (s *Service) RecordingStatus() types.RecordingStatus {
	return s.recorder.Status()
}

// ─────────────────────────────────────────────────────────────────────────────
// Sketch & settings
// ─────────────────────────────────────────────────────────────────────────────

// Stroke draws a complete stroke through points.
func (s *Service) Stroke(points []types.Point) {
	s.canvas.Draw(points)
}

// ClearCanvas wipes the sketch.
func (s *Service) ClearCanvas() {
	s.canvas.Clear()
}

// Set applies one commentary setting. Later instructions use the new value.
func (s *Service) Set(key, value string) error {
	if err := s.handle.Set(key, value); err != nil {
		return err
	}
	s.cfg.Commentary = s.handle.Load()
	return nil
}

// Shutdown finalizes any recording and closes the session.
func (s *Service) Shutdown(ctx context.Context) {
	if s.recorder.State() == recorder.Recording {
		if _, err := s.ToggleRecording(ctx); err != nil {
			slog.Error("finalize recording", "error", err)
		}
	}
	if err := s.sessions.Stop(); err != nil {
		slog.Error("close session", "error", err)
	}
}
