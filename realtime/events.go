package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.aimuz.me/commentator/internal/types"
)

// Event is a decoded inbound realtime event. The set of variants is closed:
// TextDelta carries a speakable fragment, Other is everything else.
// Check the concrete type via type switch.
type Event interface {
	EventType() string
	Payload() json.RawMessage
}

// TextDelta is any event whose delta object carries a non-empty text field.
type TextDelta struct {
	Type string
	Text string
	Raw  json.RawMessage
}

func (e TextDelta) EventType() string        { return e.Type }
func (e TextDelta) Payload() json.RawMessage { return e.Raw }

// Other holds events with no speakable fragment. The payload is kept verbatim.
type Other struct {
	Type string
	Raw  json.RawMessage
}

func (e Other) EventType() string        { return e.Type }
func (e Other) Payload() json.RawMessage { return e.Raw }

// ParseEvent classifies an inbound message. Only structurally invalid JSON
// fails; unknown shapes decode to Other.
func ParseEvent(data []byte) (Event, error) {
	var header struct {
		Type  string          `json:"type"`
		Delta json.RawMessage `json:"delta"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrProtocol, err)
	}

	raw := json.RawMessage(bytes.Clone(data))
	if text := deltaText(header.Delta); text != "" {
		return TextDelta{Type: header.Type, Text: text, Raw: raw}, nil
	}
	return Other{Type: header.Type, Raw: raw}, nil
}

// deltaText returns delta.text when delta is an object holding a string.
func deltaText(delta json.RawMessage) string {
	if len(delta) == 0 || delta[0] != '{' {
		return ""
	}
	var d struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(delta, &d); err != nil || d.Text == nil {
		return ""
	}
	return *d.Text
}

// Pretty renders the event payload indented for the activity log.
func Pretty(e Event) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, e.Payload(), "", "  "); err != nil {
		return string(e.Payload())
	}
	return buf.String()
}
