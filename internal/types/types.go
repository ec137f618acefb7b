// Package types provides shared type definitions for the application.
package types

import "errors"

// Failure classes for a commentary attempt. Everything except ErrProtocol
// aborts the attempt; none of them is fatal to the process.
var (
	// ErrConfiguration means the control plane cannot issue credentials.
	ErrConfiguration = errors.New("configuration error")
	// ErrNetwork covers non-2xx responses and transport failures.
	ErrNetwork = errors.New("network error")
	// ErrMediaAccess means the local audio input could not be acquired.
	ErrMediaAccess = errors.New("media access error")
	// ErrProtocol marks a malformed inbound control message.
	ErrProtocol = errors.New("protocol error")
)

// Modalities requested from the agent.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// SessionStatus describes the active commentary session, if any.
type SessionStatus struct {
	Active          bool   `json:"active"`
	ID              string `json:"id,omitempty"`
	ChannelOpen     bool   `json:"channelOpen"`
	ConnectionState string `json:"connectionState,omitempty"`
	Sampling        bool   `json:"sampling"`
	Duration        int64  `json:"duration"` // seconds since the session started
}

// RecordingStatus is emitted whenever the recorder changes state.
type RecordingStatus struct {
	Recording bool   `json:"recording"`
	Chunks    int    `json:"chunks"`
	Location  string `json:"location,omitempty"` // where the last artifact was exported
}

// Point is a pointer position on the sketch surface, in canvas pixels.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}
