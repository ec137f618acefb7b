// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	appName        = "commentator"
	configFileName = "config.json"
)

// Defaults for the realtime endpoints.
const (
	DefaultSessionURL = "http://localhost:3001/session"
	DefaultBaseURL    = "https://api.openai.com/v1/realtime"
	DefaultModel      = "gpt-4o-realtime-preview-2024-12-17"
)

// Config represents the application configuration.
type Config struct {
	Commentary Commentary      `json:"commentary"`
	Realtime   RealtimeConfig  `json:"realtime"`
	Audio      AudioConfig     `json:"audio"`
	Canvas     CanvasConfig    `json:"canvas"`
	Recording  RecordingConfig `json:"recording"`
	LogLevel   string          `json:"log_level,omitempty"`
}

// Commentary holds the user-adjustable parameters read whenever an
// instruction is built.
type Commentary struct {
	URL               string  `json:"url"`
	NumAgents         int     `json:"num_agents"`
	Agent1Personality string  `json:"agent1_personality"`
	Agent2Personality string  `json:"agent2_personality"`
	Style             string  `json:"style"`
	SamplingInterval  float64 `json:"sampling_interval"` // seconds
	Pace              string  `json:"pace"`
	TargetLength      int     `json:"target_length"` // seconds
	StrokeColor       string  `json:"stroke_color"`
	StrokeWidth       float64 `json:"stroke_width"`
}

// RealtimeConfig points at the control plane and the realtime service.
type RealtimeConfig struct {
	SessionURL string   `json:"session_url"`
	BaseURL    string   `json:"base_url"`
	Model      string   `json:"model"`
	ICEServers []string `json:"ice_servers,omitempty"`
}

// AudioConfig selects the local PCM source used as the microphone.
type AudioConfig struct {
	Device     string `json:"device,omitempty"` // path, "-" for stdin, empty for silence
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// CanvasConfig sizes the sketch surface.
type CanvasConfig struct {
	Width            int `json:"width"`
	Height           int `json:"height"`
	SnapshotMaxWidth int `json:"snapshot_max_width"`
}

// RecordingConfig controls where finished recordings are exported.
type RecordingConfig struct {
	OutputDir string `json:"output_dir,omitempty"`
	S3Bucket  string `json:"s3_bucket,omitempty"`
	S3Region  string `json:"s3_region,omitempty"`
	S3Prefix  string `json:"s3_prefix,omitempty"`
}

// Load loads configuration from the default config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from path, filling unset fields with defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save persists the configuration to the default config file.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveTo(path)
}

// SaveTo persists the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Commentary: DefaultCommentary(),
		Realtime: RealtimeConfig{
			SessionURL: DefaultSessionURL,
			BaseURL:    DefaultBaseURL,
			Model:      DefaultModel,
			ICEServers: []string{"stun:stun.l.google.com:19302"},
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			Channels:   1,
		},
		Canvas: CanvasConfig{
			Width:            800,
			Height:           600,
			SnapshotMaxWidth: 512,
		},
		LogLevel: "info",
	}
}

// DefaultCommentary mirrors the initial form values.
func DefaultCommentary() Commentary {
	return Commentary{
		NumAgents:        DefaultAgentCount,
		Style:            "Roast",
		SamplingInterval: DefaultSamplingInterval,
		Pace:             "Medium Pace",
		TargetLength:     DefaultTargetLength,
		StrokeColor:      DefaultStrokeColor,
		StrokeWidth:      DefaultStrokeWidth,
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Realtime.SessionURL == "" {
		c.Realtime.SessionURL = d.Realtime.SessionURL
	}
	if c.Realtime.BaseURL == "" {
		c.Realtime.BaseURL = d.Realtime.BaseURL
	}
	if c.Realtime.Model == "" {
		c.Realtime.Model = d.Realtime.Model
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = d.Audio.Channels
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		c.Canvas.Width, c.Canvas.Height = d.Canvas.Width, d.Canvas.Height
	}
	if c.Canvas.SnapshotMaxWidth <= 0 {
		c.Canvas.SnapshotMaxWidth = d.Canvas.SnapshotMaxWidth
	}
	c.Commentary = c.Commentary.normalized()
}

// LoadEnv reads .env files into the process environment. Missing files are
// ignored.
func LoadEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides fields from COMMENTATOR_* and AWS_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("COMMENTATOR_SESSION_URL"); v != "" {
		c.Realtime.SessionURL = v
	}
	if v := os.Getenv("COMMENTATOR_BASE_URL"); v != "" {
		c.Realtime.BaseURL = v
	}
	if v := os.Getenv("COMMENTATOR_MODEL"); v != "" {
		c.Realtime.Model = v
	}
	if v := os.Getenv("COMMENTATOR_ICE_SERVERS"); v != "" {
		c.Realtime.ICEServers = splitTrim(v, ",")
	}
	if v := os.Getenv("COMMENTATOR_AUDIO_DEVICE"); v != "" {
		c.Audio.Device = v
	}
	if v := os.Getenv("COMMENTATOR_AUDIO_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Audio.SampleRate = n
		}
	}
	if v := os.Getenv("COMMENTATOR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("COMMENTATOR_RECORDING_DIR"); v != "" {
		c.Recording.OutputDir = v
	}
	if v := os.Getenv("COMMENTATOR_S3_BUCKET"); v != "" {
		c.Recording.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && c.Recording.S3Region == "" {
		c.Recording.S3Region = v
	}
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
