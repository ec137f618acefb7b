package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.aimuz.me/commentator/activity"
	"go.aimuz.me/commentator/internal/types"
	"go.aimuz.me/commentator/recorder"
)

// controller is the part of the service the console drives.
type controller interface {
	GenerateCommentary(ctx context.Context) error
	StopCommentary() error
	Status() types.SessionStatus
	ToggleRecording(ctx context.Context) (*recorder.Artifact, error)
	RecordingStatus() types.RecordingStatus
	Stroke(points []types.Point)
	ClearCanvas()
	Set(key, value string) error
	Subtitles() *activity.Subtitles
}

const consoleHelp = `commands:
  generate              start a new session (replaces the current one)
  stop                  end the session
  record                start or stop recording the agent's voice
  stroke x,y x,y ...    draw a stroke on the canvas
  clear                 clear the canvas
  set key=value         change a setting (url, agents, agent1, agent2, style,
                        interval, pace, target, color, width)
  subtitles             print the recent transcript
  status                print session and recording state
  quit                  exit`

type console struct {
	svc controller
	out io.Writer
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "generate", "regenerate":
		if err := c.svc.GenerateCommentary(ctx); err != nil {
			c.errorf("%v", err)
		}
	case "stop":
		if err := c.svc.StopCommentary(); err != nil {
			c.errorf("%v", err)
		}
	case "record":
		a, err := c.svc.ToggleRecording(ctx)
		switch {
		case err != nil:
			c.errorf("%v", err)
		case a != nil:
			fmt.Fprintf(c.out, "recording saved: %s\n", c.svc.RecordingStatus().Location)
		case c.svc.RecordingStatus().Recording:
			fmt.Fprintln(c.out, "recording started")
		default:
			fmt.Fprintln(c.out, "no agent audio to record yet")
		}
	case "stroke":
		points, err := parsePoints(args)
		if err != nil {
			c.errorf("%v", err)
			return false
		}
		c.svc.Stroke(points)
	case "clear":
		c.svc.ClearCanvas()
	case "set":
		if len(args) == 0 {
			c.errorf("usage: set key=value")
			return false
		}
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				c.errorf("invalid setting %q, want key=value", arg)
				return false
			}
			if err := c.svc.Set(key, value); err != nil {
				c.errorf("%v", err)
				return false
			}
		}
	case "subtitles":
		for _, l := range c.svc.Subtitles().Lines() {
			fmt.Fprintln(c.out, l)
		}
	case "status":
		st := c.svc.Status()
		rec := c.svc.RecordingStatus()
		fmt.Fprintf(c.out, "session active=%t id=%s channel_open=%t state=%s sampling=%t duration=%ds\n",
			st.Active, st.ID, st.ChannelOpen, st.ConnectionState, st.Sampling, st.Duration)
		fmt.Fprintf(c.out, "recording active=%t chunks=%d last=%s\n", rec.Recording, rec.Chunks, rec.Location)
	default:
		c.errorf("unknown command %q (try help)", name)
	}
	return false
}

func (c *console) errorf(format string, args ...any) {
	fmt.Fprintf(c.out, "error: "+format+"\n", args...)
}

// parsePoints parses "x,y" pairs. A stroke needs at least one point.
func parsePoints(args []string) ([]types.Point, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("stroke needs at least one x,y point")
	}
	points := make([]types.Point, 0, len(args))
	for _, a := range args {
		xs, ys, ok := strings.Cut(a, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q, want x,y", a)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", a, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", a, err)
		}
		points = append(points, types.Point{X: float32(x), Y: float32(y)})
	}
	return points, nil
}
