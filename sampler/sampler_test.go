package sampler

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.aimuz.me/commentator/config"
	"go.aimuz.me/commentator/realtime"
	"go.aimuz.me/commentator/sketch"
)

type mockSender struct {
	mu   sync.Mutex
	open bool
	sent []realtime.ResponseCreate
}

func (m *mockSender) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *mockSender) Send(ev realtime.ResponseCreate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return realtime.ErrNotReady
	}
	m.sent = append(m.sent, ev)
	return nil
}

func (m *mockSender) Sent() []realtime.ResponseCreate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]realtime.ResponseCreate(nil), m.sent...)
}

type mockSurface struct {
	err error
}

func (m *mockSurface) Snapshot() (sketch.Snapshot, error) {
	if m.err != nil {
		return sketch.Snapshot{}, m.err
	}
	return sketch.Snapshot{PNG: []byte("png"), Width: 1, Height: 1}, nil
}

// fakeTicker hands out a channel the test drives by hand.
type fakeTicker struct {
	mu       sync.Mutex
	c        chan time.Time
	interval time.Duration
	stopped  bool
}

func (f *fakeTicker) start(d time.Duration) (<-chan time.Time, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c = make(chan time.Time)
	f.interval = d
	f.stopped = false
	return f.c, func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
	}
}

func (f *fakeTicker) tick() {
	f.mu.Lock()
	c := f.c
	f.mu.Unlock()
	c <- time.Now()
}

type lines struct {
	mu sync.Mutex
	l  []string
}

func (j *lines) Append(s string) {
	j.mu.Lock()
	j.l = append(j.l, s)
	j.mu.Unlock()
}

func (j *lines) Count(s string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, v := range j.l {
		if v == s {
			n++
		}
	}
	return n
}

// waitSent waits until the sender has n messages.
func waitSent(t *testing.T, m *mockSender, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(m.Sent()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("sent %d messages, want %d", len(m.Sent()), n)
}

func TestSamplerSendsOnTickOnly(t *testing.T) {
	cfg := config.NewHandle(config.DefaultCommentary())
	ch := &mockSender{open: true}
	ft := &fakeTicker{}
	j := &lines{}
	s := New(cfg, &mockSurface{}, ch, WithTicker(ft.start), WithJournal(j))

	s.Start(5 * time.Second)
	defer s.Stop()

	if ft.interval != 5*time.Second {
		t.Errorf("ticker interval = %v, want 5s", ft.interval)
	}
	if got := len(ch.Sent()); got != 0 {
		t.Fatalf("sent %d before the first tick", got)
	}

	ft.tick()
	waitSent(t, ch, 1)
	s.Stop()

	if got := len(ch.Sent()); got != 1 {
		t.Errorf("sent %d, want exactly 1", got)
	}
	if j.Count("Sent canvas sample") != 1 {
		t.Errorf("journal = %v", j.l)
	}
	if !strings.Contains(ch.Sent()[0].Response.Instructions, "data:image/png;base64,cG5n") {
		t.Errorf("sample missing image: %q", ch.Sent()[0].Response.Instructions)
	}
}

func TestSamplerStopBeforeTick(t *testing.T) {
	cfg := config.NewHandle(config.DefaultCommentary())
	ch := &mockSender{open: true}
	ft := &fakeTicker{}
	s := New(cfg, &mockSurface{}, ch, WithTicker(ft.start))

	s.Start(5 * time.Second)
	s.Stop()

	if s.Running() {
		t.Error("Running() = true after Stop")
	}
	select {
	case ft.c <- time.Now():
		t.Fatal("sampler still receiving ticks after Stop")
	case <-time.After(20 * time.Millisecond):
	}
	if got := len(ch.Sent()); got != 0 {
		t.Errorf("sent %d after Stop, want 0", got)
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if !ft.stopped {
		t.Error("ticker not stopped")
	}
}

func TestSamplerSkipsClosedChannel(t *testing.T) {
	cfg := config.NewHandle(config.DefaultCommentary())
	ch := &mockSender{}
	ft := &fakeTicker{}
	s := New(cfg, &mockSurface{}, ch, WithTicker(ft.start))

	s.Start(time.Second)
	ft.tick()
	ft.tick() // the second tick is accepted only after the first was handled
	s.Stop()

	if got := len(ch.Sent()); got != 0 {
		t.Errorf("sent %d on a closed channel", got)
	}
}

func TestSamplerReadsConfigAtTick(t *testing.T) {
	cfg := config.NewHandle(config.DefaultCommentary())
	ch := &mockSender{open: true}
	ft := &fakeTicker{}
	s := New(cfg, &mockSurface{}, ch, WithTicker(ft.start))

	s.Start(time.Second)
	defer s.Stop()

	if err := cfg.Set("style", "Play-by-play"); err != nil {
		t.Fatal(err)
	}
	ft.tick()
	waitSent(t, ch, 1)

	if got := ch.Sent()[0].Response.Instructions; !strings.Contains(got, "Play-by-play") {
		t.Errorf("sample built from stale configuration: %q", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	s := New(config.NewHandle(config.DefaultCommentary()), &mockSurface{}, &mockSender{})
	s.Stop()
	s.Stop()
	if s.Running() {
		t.Error("Running() = true")
	}
}

func TestStartReplacesTimer(t *testing.T) {
	ft := &fakeTicker{}
	s := New(config.NewHandle(config.DefaultCommentary()), &mockSurface{}, &mockSender{}, WithTicker(ft.start))

	s.Start(time.Second)
	first := ft.c
	s.Start(2 * time.Second)
	defer s.Stop()

	if ft.c == first {
		t.Fatal("Start did not create a new ticker")
	}
	if ft.interval != 2*time.Second {
		t.Errorf("interval = %v", ft.interval)
	}
	select {
	case first <- time.Now():
		t.Fatal("old timer still running")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSendStroke(t *testing.T) {
	tests := []struct {
		name     string
		open     bool
		surfErr  error
		wantErr  error
		wantSent int
	}{
		{name: "open", open: true, wantSent: 1},
		{name: "not open", open: false, wantErr: realtime.ErrNotReady},
		{name: "snapshot fails", open: true, surfErr: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &mockSender{open: tt.open}
			j := &lines{}
			s := New(config.NewHandle(config.DefaultCommentary()), &mockSurface{err: tt.surfErr}, ch, WithJournal(j))

			err := s.SendStroke()
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			case tt.surfErr != nil:
				if !errors.Is(err, tt.surfErr) {
					t.Fatalf("error = %v, want %v", err, tt.surfErr)
				}
			default:
				if err != nil {
					t.Fatalf("error = %v", err)
				}
			}

			if got := len(ch.Sent()); got != tt.wantSent {
				t.Fatalf("sent %d, want %d", got, tt.wantSent)
			}
			if tt.wantSent == 1 {
				if !strings.Contains(ch.Sent()[0].Response.Instructions, "newest stroke") {
					t.Errorf("stroke prompt missing: %q", ch.Sent()[0].Response.Instructions)
				}
				if j.Count("Sent stroke reaction") != 1 {
					t.Errorf("journal = %v", j.l)
				}
			}
		})
	}
}
