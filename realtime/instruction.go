package realtime

import (
	"fmt"
	"strconv"
	"strings"

	"go.aimuz.me/commentator/config"
	"go.aimuz.me/commentator/internal/types"
)

// EventResponseCreate is the only client event type this package emits.
const EventResponseCreate = "response.create"

// ResponseCreate asks the agent to respond. It is immutable once sent.
type ResponseCreate struct {
	Type     string          `json:"type"`
	Response ResponseOptions `json:"response"`
}

// ResponseOptions carries the requested modalities and the instruction text.
type ResponseOptions struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
}

// Prompt selects the closing request of an instruction.
type Prompt int

const (
	// PromptInitial opens the session without visual context.
	PromptInitial Prompt = iota
	// PromptSample asks about the cumulative drawing.
	PromptSample
	// PromptStroke asks for a reaction to the stroke just completed.
	PromptStroke
)

// InitialInstruction is sent once, when the control channel opens.
func InitialInstruction(c config.Commentary) ResponseCreate {
	return newResponseCreate(c, PromptInitial, "")
}

// SampleInstruction embeds a periodic canvas snapshot.
func SampleInstruction(c config.Commentary, imageBase64 string) ResponseCreate {
	return newResponseCreate(c, PromptSample, imageBase64)
}

// StrokeInstruction embeds the snapshot taken right after a stroke ends.
func StrokeInstruction(c config.Commentary, imageBase64 string) ResponseCreate {
	return newResponseCreate(c, PromptStroke, imageBase64)
}

func newResponseCreate(c config.Commentary, p Prompt, imageBase64 string) ResponseCreate {
	return ResponseCreate{
		Type: EventResponseCreate,
		Response: ResponseOptions{
			Modalities:   []string{types.ModalityText, types.ModalityAudio},
			Instructions: buildInstructions(c, p, imageBase64),
		},
	}
}

func buildInstructions(c config.Commentary, p Prompt, imageBase64 string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are Agent 1: %s;\n", c.Agent1Personality)
	if c.NumAgents != 1 {
		fmt.Fprintf(&b, "You are Agent 2: %s.\n", c.Agent2Personality)
	}
	if c.NumAgents > 2 {
		fmt.Fprintf(&b, "There are %d commentators in total; voice the others as you see fit.\n", c.NumAgents)
	}
	fmt.Fprintf(&b, "Commentary style: %s.\n", c.Style)
	fmt.Fprintf(&b, "Clip sampling: %ss\n", strconv.FormatFloat(c.SamplingInterval, 'f', -1, 64))
	fmt.Fprintf(&b, "Speed: %s\n", c.Pace)
	fmt.Fprintf(&b, "Target length: %d seconds\n", c.TargetLength)
	if c.URL != "" {
		fmt.Fprintf(&b, "(Use the content at: %s for context!)\n", c.URL)
	}

	switch p {
	case PromptSample:
		b.WriteString("Here is the current state of the sketch. Comment on the drawing as a whole.\n")
	case PromptStroke:
		b.WriteString("The artist just finished a stroke. React to that newest stroke rather than the whole drawing.\n")
	}
	if imageBase64 != "" {
		b.WriteString("Sketch (PNG): data:image/png;base64,")
		b.WriteString(imageBase64)
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}
