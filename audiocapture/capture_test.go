package audiocapture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"silence", Config{}, nil},
		{"stdin_48k_stereo", Config{Device: "-", SampleRate: 48000, Channels: 2}, nil},
		{"file_16k", Config{Device: "mic.pcm", SampleRate: 16000}, nil},
		{"too_many_channels", Config{Channels: 6}, ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("expected non-nil Capturer")
			}
		})
	}
}

func TestStartWithNilHandler(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Start(nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestStartMissingDevice(t *testing.T) {
	c, err := New(Config{Device: filepath.Join(t.TempDir(), "missing.pcm")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Start(func([]float32) {}); !errors.Is(err, ErrDeviceAccess) {
		t.Fatalf("expected ErrDeviceAccess, got %v", err)
	}
}

func TestDoubleStart(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Stop()

	if err := c.Start(func([]float32) {}); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	if err := c.Start(func([]float32) {}); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop without Start: %v", err)
	}
	if err := c.Start(func([]float32) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("double Stop: %v", err)
	}
}

func TestStdinFrames(t *testing.T) {
	// One 20 ms mono frame at 48 kHz, constant half-scale.
	var pcm bytes.Buffer
	for range 960 {
		_ = binary.Write(&pcm, binary.LittleEndian, int16(16384))
	}

	c, err := New(Config{Device: "-", SampleRate: 48000, Channels: 1, Stdin: &pcm})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var (
		mu     sync.Mutex
		frames [][]float32
	)
	got := make(chan struct{}, 1)
	err = c.Start(func(s []float32) {
		mu.Lock()
		frames = append(frames, append([]float32(nil), s...))
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	f := frames[0]
	if len(f) != FrameSamples {
		t.Fatalf("frame length = %d, want %d", len(f), FrameSamples)
	}
	if f[0] != 0.5 || f[1] != 0.5 {
		t.Errorf("first stereo pair = %v, %v; want 0.5, 0.5", f[0], f[1])
	}
}

func TestConvertUpsamplesStereo(t *testing.T) {
	// 16 kHz stereo: 320 input frames per 20 ms.
	var left, right int16 = -32768, 16384
	raw := make([]byte, 320*2*2)
	for i := range 320 {
		binary.LittleEndian.PutUint16(raw[i*4:], uint16(left))
		binary.LittleEndian.PutUint16(raw[i*4+2:], uint16(right))
	}

	out := make([]float32, FrameSamples)
	convert(out, raw, 320, 2)

	for i := 0; i < len(out); i += 2 {
		if out[i] != -1 || out[i+1] != 0.5 {
			t.Fatalf("out[%d:%d] = %v, %v", i, i+2, out[i], out[i+1])
		}
	}
}
