// Package recorder captures the agent's voice into a single audio artifact.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.aimuz.me/commentator/internal/types"
)

// Exported artifact name and type.
const (
	ArtifactName = "ai-commentary.ogg"
	ArtifactMIME = "audio/ogg"
)

// Stream is an inbound media stream that can be recorded. Record emits
// encoded chunks until ctx is cancelled.
type Stream interface {
	Record(ctx context.Context, emit func([]byte)) error
}

// Artifact is a finished recording.
type Artifact struct {
	Name      string
	MIMEType  string
	Data      []byte
	Chunks    int
	CreatedAt time.Time
}

// Exporter hands a finished artifact to the user and returns where it went.
type Exporter interface {
	Export(ctx context.Context, a Artifact) (string, error)
}

// State is the recorder state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Recorder toggles between Idle and Recording.
type Recorder struct {
	exporter Exporter

	mu       sync.Mutex
	state    State
	stopping bool // a stop has claimed cancel and done
	chunks   [][]byte
	cancel   context.CancelFunc
	done     chan error
	location string
	onChange []func(types.RecordingStatus)
	onEnded  []func(*Artifact, error)
}

// New returns an idle recorder. exporter may be nil, in which case artifacts
// are only returned from Toggle.
func New(exporter Exporter) *Recorder {
	return &Recorder{exporter: exporter}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns the state as reported to subscribers.
func (r *Recorder) Status() types.RecordingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Recorder) statusLocked() types.RecordingStatus {
	return types.RecordingStatus{
		Recording: r.state == Recording,
		Chunks:    len(r.chunks),
		Location:  r.location,
	}
}

// OnChange registers fn for every state transition.
func (r *Recorder) OnChange(fn func(types.RecordingStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// OnSourceEnded registers fn for recordings finalized because the stream
// ended on its own, such as when the session carrying it is closed.
func (r *Recorder) OnSourceEnded(fn func(*Artifact, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnded = append(r.onEnded, fn)
}

func (r *Recorder) notify() {
	r.mu.Lock()
	st := r.statusLocked()
	subs := r.onChange
	r.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

// Toggle starts recording stream when idle, or finalizes and exports the
// recording when active. Starting without a stream is a no-op. The artifact
// is returned on the Recording to Idle transition; a toggle that overlaps a
// stop already in progress returns nil.
func (r *Recorder) Toggle(ctx context.Context, stream Stream) (*Artifact, error) {
	r.mu.Lock()
	if r.state == Recording {
		cancel, done, ok := r.claimLocked()
		r.mu.Unlock()
		if !ok {
			return nil, nil
		}
		return r.finish(ctx, cancel, done)
	}
	if stream == nil {
		r.mu.Unlock()
		slog.Debug("recording not started: no inbound stream")
		return nil, nil
	}

	recCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan error, 1)
	r.state = Recording
	r.chunks = nil
	r.location = ""
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		done <- stream.Record(recCtx, r.append)
		if recCtx.Err() == nil {
			r.sourceEnded(done)
		}
	}()

	slog.Info("recording started")
	r.notify()
	return nil, nil
}

func (r *Recorder) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Recording {
		return
	}
	r.chunks = append(r.chunks, chunk)
}

// claimLocked hands the running recording to exactly one stopper.
func (r *Recorder) claimLocked() (context.CancelFunc, chan error, bool) {
	if r.stopping {
		return nil, nil, false
	}
	cancel, done := r.cancel, r.done
	r.stopping = true
	r.cancel, r.done = nil, nil
	return cancel, done, true
}

// sourceEnded finalizes the recording that owns done after its stream
// returned without being cancelled.
func (r *Recorder) sourceEnded(done chan error) {
	r.mu.Lock()
	if r.state != Recording || r.done != done {
		r.mu.Unlock()
		return
	}
	cancel, done, ok := r.claimLocked()
	subs := r.onEnded
	r.mu.Unlock()
	if !ok {
		return
	}

	slog.Info("recording source ended")
	a, err := r.finish(context.Background(), cancel, done)
	for _, fn := range subs {
		fn(a, err)
	}
}

func (r *Recorder) finish(ctx context.Context, cancel context.CancelFunc, done chan error) (*Artifact, error) {
	cancel()
	if err := <-done; err != nil {
		slog.Warn("recording stream ended with error", "error", err)
	}

	r.mu.Lock()
	a := &Artifact{
		Name:      ArtifactName,
		MIMEType:  ArtifactMIME,
		Data:      bytes.Join(r.chunks, nil),
		Chunks:    len(r.chunks),
		CreatedAt: time.Now(),
	}
	r.state = Idle
	r.stopping = false
	r.chunks = nil
	r.mu.Unlock()

	slog.Info("recording stopped", "chunks", a.Chunks, "bytes", len(a.Data))

	var err error
	if r.exporter != nil {
		var loc string
		loc, err = r.exporter.Export(ctx, *a)
		if err != nil {
			err = fmt.Errorf("export recording: %w", err)
		} else {
			r.mu.Lock()
			r.location = loc
			r.mu.Unlock()
		}
	}

	r.notify()
	return a, err
}
