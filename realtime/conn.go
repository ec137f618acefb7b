package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	opuscodec "github.com/jj11hh/opus"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"go.aimuz.me/commentator/audiocapture"
)

// Conn is an established realtime session: peer connection, control channel,
// local microphone and the agent's audio once it arrives.
type Conn struct {
	// Hot path: microphone frames are encoded and written here.
	encoder    *opuscodec.Encoder
	track      *webrtc.TrackLocalStaticSample
	opusBuffer []byte

	pc      *webrtc.PeerConnection
	channel *Channel
	mic     audiocapture.Capturer

	mu     sync.Mutex
	remote *RemoteAudio
	closed bool
}

// Channel returns the control channel. It may not be open yet.
func (c *Conn) Channel() *Channel { return c.channel }

// RemoteAudio returns the agent's audio, or nil until the track arrives.
func (c *Conn) RemoteAudio() *RemoteAudio {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *Conn) setRemote(a *RemoteAudio) {
	c.mu.Lock()
	c.remote = a
	c.mu.Unlock()
}

// ConnectionState returns the peer connection state name.
func (c *Conn) ConnectionState() string {
	if c.pc == nil {
		return webrtc.PeerConnectionStateUnknown.String()
	}
	return c.pc.ConnectionState().String()
}

// SendAudio encodes and sends one microphone frame.
//
// Expects stereo interleaved float32 samples at 48kHz.
func (c *Conn) SendAudio(samples []float32) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if c.track == nil || c.encoder == nil {
		return ErrNotReady
	}

	n, err := c.encoder.EncodeFloat32(samples, c.opusBuffer)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}

	// Duration = samples / 2 (stereo) / 48000
	return c.track.WriteSample(media.Sample{
		Data:     c.opusBuffer[:n],
		Duration: time.Duration(len(samples)/audiocapture.OutputChannels) * time.Second / audiocapture.OutputSampleRate,
	})
}

// Close stops the microphone, closes the channel and the peer connection.
// Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if c.mic != nil {
		if err := c.mic.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop microphone: %w", err))
		}
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close peer connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
