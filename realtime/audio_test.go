package realtime

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
)

// packetFeed is a read function backed by a channel; closing it ends the track.
type packetFeed chan *rtp.Packet

func (f packetFeed) read() (*rtp.Packet, error) {
	pkt, ok := <-f
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

func waitForSinks(t *testing.T, a *RemoteAudio, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		got := len(a.sinks)
		a.mu.Unlock()
		if got == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sinks never reached %d", n)
}

func opusPacket(seq uint16) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 960,
			SSRC:           1,
		},
		Payload: []byte{0xfc, 0xff, 0xfe},
	}
}

func TestRemoteAudioRecord(t *testing.T) {
	feed := make(packetFeed)
	a := newRemoteAudio(feed.read)

	var (
		mu     sync.Mutex
		chunks [][]byte
	)
	emit := func(b []byte) {
		mu.Lock()
		chunks = append(chunks, b)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Record(ctx, emit) }()

	waitForSinks(t, a, 1)
	for i := range 3 {
		feed <- opusPacket(uint16(i + 1))
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) == 0 {
		t.Fatal("no chunks emitted")
	}
	all := bytes.Join(chunks, nil)
	if !bytes.HasPrefix(all, []byte("OggS")) {
		t.Errorf("recording does not start with an Ogg page: % x", all[:min(8, len(all))])
	}
	if !bytes.Contains(all, []byte("OpusHead")) {
		t.Error("recording missing OpusHead")
	}
	if a.Packets() != 3 {
		t.Errorf("Packets() = %d, want 3", a.Packets())
	}

	waitForSinks(t, a, 0)
	close(feed)
	<-a.Done()
}

func TestRemoteAudioRecordEndsWithTrack(t *testing.T) {
	feed := make(packetFeed)
	a := newRemoteAudio(feed.read)

	errc := make(chan error, 1)
	go func() { errc <- a.Record(context.Background(), func([]byte) {}) }()

	waitForSinks(t, a, 1)
	close(feed)

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Record did not return after the track ended")
	}
}
