package audiocapture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// pcmCapturer reads s16le PCM and paces it out in 20 ms frames.
type pcmCapturer struct {
	cfg Config

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	closer  io.Closer
}

func (c *pcmCapturer) Start(handler AudioHandler) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrRunning
	}

	src, closer, err := c.open()
	if err != nil {
		return err
	}

	c.closer = closer
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true

	go c.loop(handler, src, c.stop, c.done)
	return nil
}

func (c *pcmCapturer) open() (io.Reader, io.Closer, error) {
	switch c.cfg.Device {
	case "":
		return nil, nil, nil
	case "-":
		return c.cfg.Stdin, nil, nil
	}
	f, err := os.Open(c.cfg.Device)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDeviceAccess, err)
	}
	return f, f, nil
}

func (c *pcmCapturer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stop)
	closer, done := c.closer, c.done
	c.mu.Unlock()

	var err error
	if closer != nil {
		err = closer.Close()
		<-done
	}
	// Stdin cannot be interrupted; the loop exits after its pending read.
	return err
}

func (c *pcmCapturer) loop(handler AudioHandler, src io.Reader, stop, done chan struct{}) {
	defer close(done)

	inFrames := c.cfg.SampleRate * FrameDuration / 1000
	raw := make([]byte, inFrames*c.cfg.Channels*2)
	out := make([]float32, FrameSamples)

	ticker := time.NewTicker(FrameDuration * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if src == nil {
			clear(out)
		} else {
			if _, err := io.ReadFull(src, raw); err != nil {
				select {
				case <-stop:
				default:
					slog.Info("audio source ended", "device", c.cfg.Device, "error", err)
				}
				return
			}
			convert(out, raw, inFrames, c.cfg.Channels)
		}

		select {
		case <-stop:
			return
		default:
		}
		handler(out)
	}
}

// convert maps inFrames of s16le PCM onto the 48 kHz stereo output frame,
// picking the nearest input frame for each output frame.
func convert(out []float32, raw []byte, inFrames, channels int) {
	outFrames := len(out) / OutputChannels
	for i := range outFrames {
		j := i * inFrames / outFrames
		off := j * channels * 2
		l := float32(int16(binary.LittleEndian.Uint16(raw[off:]))) / 32768
		r := l
		if channels == 2 {
			r = float32(int16(binary.LittleEndian.Uint16(raw[off+2:]))) / 32768
		}
		out[i*2] = l
		out[i*2+1] = r
	}
}
