package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// Opus parameters of the agent's voice track.
const (
	remoteSampleRate = 48000
	remoteChannels   = 2
)

// RemoteAudio drains the agent's inbound audio track and fans packets out to
// active recordings.
type RemoteAudio struct {
	read func() (*rtp.Packet, error)

	mu      sync.Mutex
	sinks   map[int]func(*rtp.Packet)
	nextID  int
	packets int
	done    chan struct{}
	err     error
}

// NewRemoteAudio starts draining track. The loop ends when the track does.
func NewRemoteAudio(track *webrtc.TrackRemote) *RemoteAudio {
	return newRemoteAudio(func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	})
}

func newRemoteAudio(read func() (*rtp.Packet, error)) *RemoteAudio {
	a := &RemoteAudio{
		read:  read,
		sinks: make(map[int]func(*rtp.Packet)),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *RemoteAudio) loop() {
	defer close(a.done)
	for {
		pkt, err := a.read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote audio ended", "error", err)
				a.mu.Lock()
				a.err = err
				a.mu.Unlock()
			}
			return
		}

		a.mu.Lock()
		a.packets++
		for _, sink := range a.sinks {
			sink(pkt)
		}
		a.mu.Unlock()
	}
}

// Done is closed once the track stops delivering packets.
func (a *RemoteAudio) Done() <-chan struct{} { return a.done }

// Packets returns the number of RTP packets received so far.
func (a *RemoteAudio) Packets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.packets
}

// Record writes the stream as Ogg/Opus, handing each written chunk to emit,
// until ctx is cancelled or the track ends. emit must not retain the slice
// beyond the call unless it copies it; Record passes fresh copies.
func (a *RemoteAudio) Record(ctx context.Context, emit func([]byte)) error {
	w, err := oggwriter.NewWith(chunkWriter(emit), remoteSampleRate, remoteChannels)
	if err != nil {
		return fmt.Errorf("create ogg writer: %w", err)
	}

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.sinks[id] = func(pkt *rtp.Packet) {
		if err := w.WriteRTP(pkt); err != nil {
			slog.Debug("write rtp to recording", "error", err)
		}
	}
	a.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-a.done:
	}

	a.mu.Lock()
	delete(a.sinks, id)
	a.mu.Unlock()

	if err := w.Close(); err != nil {
		return fmt.Errorf("close ogg writer: %w", err)
	}
	return nil
}

// chunkWriter adapts an emit callback to io.Writer, copying each write.
type chunkWriter func([]byte)

func (f chunkWriter) Write(p []byte) (int, error) {
	f(append([]byte(nil), p...))
	return len(p), nil
}
