// Package realtime connects to the realtime voice agent over WebRTC and
// carries instructions and events on its control channel.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	opuscodec "github.com/jj11hh/opus"
	"github.com/pion/webrtc/v4"

	"go.aimuz.me/commentator/audiocapture"
	"go.aimuz.me/commentator/internal/types"
)

// ControlChannelLabel is the data channel name the realtime service expects.
const ControlChannelLabel = "oai-events"

// Journal receives user-visible progress lines.
type Journal interface {
	Append(line string)
}

// Handlers are the asynchronous hooks of a negotiated connection. All are
// optional and run on pion's callback goroutines.
type Handlers struct {
	// OnOpen runs once when the control channel opens.
	OnOpen func(*Channel)
	// OnAudio runs when the agent's audio track arrives.
	OnAudio func(*RemoteAudio)
	// Events receives decoded inbound messages.
	Events EventHandler
}

// Negotiator builds realtime peer connections.
type Negotiator struct {
	BaseURL    string
	Model      string
	ICEServers []string
	HTTP       *http.Client
	Journal    Journal
}

func (n *Negotiator) log(line string) {
	if n.Journal != nil {
		n.Journal.Append(line)
	}
}

// Negotiate connects to the realtime service using token and streams mic as
// the local audio track. On success the control channel opens later,
// signalled through h.OnOpen. On failure nothing is left running.
func (n *Negotiator) Negotiate(ctx context.Context, token string, mic audiocapture.Capturer, h Handlers) (*Conn, error) {
	// Step 1: Peer connection
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: n.iceServers(),
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	conn := &Conn{
		pc:         pc,
		opusBuffer: make([]byte, 1275), // max Opus packet size
	}
	fail := func(err error) (*Conn, error) {
		_ = conn.Close()
		return nil, err
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("peer connection state", "state", state.String())
		n.log("Connection state: " + state.String())
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			n.log("ICE candidate found")
		}
	})

	// Step 2: Microphone on an Opus track
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: audiocapture.OutputSampleRate,
			Channels:  audiocapture.OutputChannels,
		},
		"audio",
		"commentator-mic",
	)
	if err != nil {
		return fail(fmt.Errorf("create audio track: %w", err))
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(fmt.Errorf("add audio track: %w", err))
	}

	enc, err := opuscodec.NewEncoder(audiocapture.OutputSampleRate, audiocapture.OutputChannels, opuscodec.AppRestrictedLowdelay)
	if err != nil {
		return fail(fmt.Errorf("create opus encoder: %w", err))
	}
	conn.track = track
	conn.encoder = enc

	if mic != nil {
		err := mic.Start(func(samples []float32) {
			if err := conn.SendAudio(samples); err != nil {
				slog.Debug("send microphone frame", "error", err)
			}
		})
		if err != nil {
			return fail(fmt.Errorf("%w: %w", types.ErrMediaAccess, err))
		}
		conn.mic = mic
		n.log("Microphone access granted")
	}

	// Step 3: Control channel, created before the offer so it is negotiated.
	dc, err := pc.CreateDataChannel(ControlChannelLabel, nil)
	if err != nil {
		return fail(fmt.Errorf("create data channel: %w", err))
	}
	conn.channel = NewChannel(dc, h.Events)

	dc.OnOpen(func() {
		slog.Info("data channel opened")
		n.log("Data channel opened")
		if h.OnOpen != nil {
			h.OnOpen(conn.channel)
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		conn.channel.HandleMessage(msg.Data)
	})

	pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if t.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		slog.Info("remote audio track received", "codec", t.Codec().MimeType)
		audio := NewRemoteAudio(t)
		conn.setRemote(audio)
		if h.OnAudio != nil {
			h.OnAudio(audio)
		}
	})

	// Step 4: Offer
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fail(fmt.Errorf("create offer: %w", err))
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fail(fmt.Errorf("set local description: %w", err))
	}
	n.log("Created offer")

	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		return fail(fmt.Errorf("gather candidates: %w", ctx.Err()))
	}

	// Step 5: SDP exchange
	answer, err := ExchangeSDP(ctx, n.HTTP, n.BaseURL, n.Model, pc.LocalDescription().SDP, token)
	if err != nil {
		return fail(fmt.Errorf("exchange sdp: %w", err))
	}

	// Step 6: Answer
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return fail(fmt.Errorf("set remote description: %w", err))
	}
	n.log("Connection established")

	return conn, nil
}

func (n *Negotiator) iceServers() []webrtc.ICEServer {
	if len(n.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: n.ICEServers}}
}
