// Package audiocapture provides the local audio input attached to a
// realtime session.
package audiocapture

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Sentinel errors.
var (
	ErrRunning      = errors.New("audiocapture: already running")
	ErrUnsupported  = errors.New("audiocapture: unsupported format")
	ErrDeviceAccess = errors.New("audiocapture: device access denied")
)

// Output format delivered to handlers: 20 ms of 48 kHz interleaved stereo.
const (
	OutputSampleRate = 48000
	OutputChannels   = 2
	FrameDuration    = 20 // milliseconds
	FrameSamples     = OutputSampleRate * FrameDuration / 1000 * OutputChannels
)

// AudioHandler receives interleaved float32 samples in [-1, 1]. The slice is
// reused between calls.
type AudioHandler func(samples []float32)

// Capturer is a local audio source.
type Capturer interface {
	Start(handler AudioHandler) error
	Stop() error
}

// Config selects the PCM source.
type Config struct {
	// Device is a file or FIFO carrying signed 16-bit little-endian PCM.
	// "-" reads stdin. Empty generates silence.
	Device     string
	SampleRate int // input rate, default 48000
	Channels   int // 1 or 2, default 1

	// Stdin overrides os.Stdin for Device "-".
	Stdin io.Reader
}

// New validates cfg and returns a capturer. The device itself is opened by
// Start so that access failures surface when the session acquires it.
func New(cfg Config) (Capturer, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = OutputSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.Channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupported, cfg.Channels)
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	return &pcmCapturer{cfg: cfg}, nil
}
