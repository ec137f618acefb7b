package app

// Event names for subscribers.
const (
	EventLogEntry  = "log-entry"
	EventSubtitles = "subtitles"
	EventRecording = "recording"
	EventSession   = "session"
)
