package activity

import "go.aimuz.me/commentator/realtime"

// Aggregator turns inbound realtime events into log lines and subtitles.
type Aggregator struct {
	Log       *Log
	Subtitles *Subtitles
}

var _ realtime.EventHandler = (*Aggregator)(nil)

// NewAggregator wires log and subs together.
func NewAggregator(log *Log, subs *Subtitles) *Aggregator {
	return &Aggregator{Log: log, Subtitles: subs}
}

// HandleEvent logs the raw event and pushes any text fragment.
func (a *Aggregator) HandleEvent(e realtime.Event) {
	a.Log.Append(realtime.Pretty(e))
	if d, ok := e.(realtime.TextDelta); ok {
		a.Subtitles.Push(d.Text)
	}
}

// HandleParseError logs a message that could not be decoded.
func (a *Aggregator) HandleParseError(err error) {
	a.Log.Append("Error parsing message: " + parseMessage(err))
}

// parseMessage strips the protocol classification, keeping the decoder's text.
func parseMessage(err error) string {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := u.Unwrap(); len(errs) > 1 {
			return errs[len(errs)-1].Error()
		}
	}
	return err.Error()
}
