package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Fallbacks substituted for malformed form input.
const (
	DefaultAgentCount       = 2
	DefaultSamplingInterval = 1.0
	DefaultTargetLength     = 15
	DefaultStrokeColor      = "#000000"
	DefaultStrokeWidth      = 3.0
)

// ParseAgentCount coerces the agent count field. Empty or non-numeric input
// yields DefaultAgentCount; values below one are raised to one.
func ParseAgentCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultAgentCount
	}
	return max(n, 1)
}

// ParseSamplingInterval coerces the sampling interval in seconds.
func ParseSamplingInterval(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return DefaultSamplingInterval
	}
	return f
}

// ParseTargetLength coerces the target video length in seconds.
func ParseTargetLength(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultTargetLength
	}
	return n
}

// ParseStrokeWidth coerces the pen width in pixels.
func ParseStrokeWidth(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return DefaultStrokeWidth
	}
	return f
}

// ParseStrokeColor accepts #rgb, #rrggbb or a CSS color name. Anything else
// is black.
func ParseStrokeColor(s string) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return c
	}
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
			}
		}
	}
	return color.RGBA{A: 0xff}
}

// normalized replaces out-of-range numeric fields with their fallbacks.
func (c Commentary) normalized() Commentary {
	if c.NumAgents < 1 {
		c.NumAgents = DefaultAgentCount
	}
	if c.SamplingInterval <= 0 {
		c.SamplingInterval = DefaultSamplingInterval
	}
	if c.TargetLength == 0 {
		c.TargetLength = DefaultTargetLength
	}
	if c.StrokeWidth <= 0 {
		c.StrokeWidth = DefaultStrokeWidth
	}
	if c.StrokeColor == "" {
		c.StrokeColor = DefaultStrokeColor
	}
	return c
}

// Keys lists the commentary fields accepted by Set.
var Keys = []string{
	"url", "agents", "agent1", "agent2", "style",
	"interval", "pace", "target", "color", "width",
}

// set applies one key=value edit with coercion.
func (c *Commentary) set(key, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "url":
		c.URL = value
	case "agents", "num_agents":
		c.NumAgents = ParseAgentCount(value)
	case "agent1", "agent1_personality":
		c.Agent1Personality = value
	case "agent2", "agent2_personality":
		c.Agent2Personality = value
	case "style":
		c.Style = value
	case "interval", "sampling_interval":
		c.SamplingInterval = ParseSamplingInterval(value)
	case "pace", "speed":
		c.Pace = value
	case "target", "target_length":
		c.TargetLength = ParseTargetLength(value)
	case "color", "stroke_color":
		c.StrokeColor = value
	case "width", "stroke_width":
		c.StrokeWidth = ParseStrokeWidth(value)
	default:
		return fmt.Errorf("unknown setting %q (want one of %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Set applies one key=value edit to the whole configuration. Commentary
// keys are accepted bare; other sections use dotted keys.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "log_level":
		c.LogLevel = value
	case "realtime.session_url":
		c.Realtime.SessionURL = value
	case "realtime.base_url":
		c.Realtime.BaseURL = value
	case "realtime.model":
		c.Realtime.Model = value
	case "realtime.ice_servers":
		c.Realtime.ICEServers = splitTrim(value, ",")
	case "audio.device":
		c.Audio.Device = value
	case "recording.output_dir":
		c.Recording.OutputDir = value
	case "recording.s3_bucket":
		c.Recording.S3Bucket = value
	case "recording.s3_region":
		c.Recording.S3Region = value
	case "recording.s3_prefix":
		c.Recording.S3Prefix = value
	default:
		if err := c.Commentary.set(key, value); err != nil {
			return err
		}
		c.Commentary = c.Commentary.normalized()
	}
	return nil
}
