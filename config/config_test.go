package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAgentCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 2},
		{"abc", 2},
		{"3", 3},
		{" 4 ", 4},
		{"0", 1},
		{"-2", 1},
	}
	for _, tt := range tests {
		if got := ParseAgentCount(tt.in); got != tt.want {
			t.Errorf("ParseAgentCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseSamplingInterval(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 1.0},
		{"0.5", 0.5},
		{"5", 5},
		{"0", 1.0},
		{"-1", 1.0},
		{"fast", 1.0},
	}
	for _, tt := range tests {
		if got := ParseSamplingInterval(tt.in); got != tt.want {
			t.Errorf("ParseSamplingInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTargetLength(t *testing.T) {
	if got := ParseTargetLength(""); got != 15 {
		t.Errorf("empty target length = %d, want 15", got)
	}
	if got := ParseTargetLength("30"); got != 30 {
		t.Errorf("target length = %d, want 30", got)
	}
}

func TestParseStrokeColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ff0000", color.RGBA{R: 0xff, A: 0xff}},
		{"#0f0", color.RGBA{G: 0xff, A: 0xff}},
		{"Blue", color.RGBA{B: 0xff, A: 0xff}},
		{"not-a-color", color.RGBA{A: 0xff}},
		{"#12345", color.RGBA{A: 0xff}},
	}
	for _, tt := range tests {
		if got := ParseStrokeColor(tt.in); got != tt.want {
			t.Errorf("ParseStrokeColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Commentary.NumAgents != DefaultAgentCount {
		t.Errorf("NumAgents = %d, want %d", cfg.Commentary.NumAgents, DefaultAgentCount)
	}
	if cfg.Realtime.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Realtime.Model, DefaultModel)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := Default()
	cfg.Commentary.Agent1Personality = "grumpy chef"
	cfg.Commentary.Style = "Supportive"
	cfg.Recording.OutputDir = "/tmp/rec"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.Commentary.Agent1Personality != "grumpy chef" {
		t.Errorf("Agent1Personality = %q", got.Commentary.Agent1Personality)
	}
	if got.Commentary.Style != "Supportive" {
		t.Errorf("Style = %q", got.Commentary.Style)
	}
	if got.Recording.OutputDir != "/tmp/rec" {
		t.Errorf("OutputDir = %q", got.Recording.OutputDir)
	}
}

func TestLoadFromFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"commentary":{"num_agents":0,"sampling_interval":-3},"realtime":{"model":""}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Commentary.NumAgents != 2 {
		t.Errorf("NumAgents = %d, want 2", cfg.Commentary.NumAgents)
	}
	if cfg.Commentary.SamplingInterval != 1.0 {
		t.Errorf("SamplingInterval = %v, want 1.0", cfg.Commentary.SamplingInterval)
	}
	if cfg.Realtime.Model != DefaultModel {
		t.Errorf("Model = %q, want default", cfg.Realtime.Model)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("COMMENTATOR_SESSION_URL", "http://example.test/session")
	t.Setenv("COMMENTATOR_ICE_SERVERS", "stun:a, stun:b ,")
	t.Setenv("COMMENTATOR_AUDIO_DEVICE", "-")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Realtime.SessionURL != "http://example.test/session" {
		t.Errorf("SessionURL = %q", cfg.Realtime.SessionURL)
	}
	if len(cfg.Realtime.ICEServers) != 2 || cfg.Realtime.ICEServers[1] != "stun:b" {
		t.Errorf("ICEServers = %v", cfg.Realtime.ICEServers)
	}
	if cfg.Audio.Device != "-" {
		t.Errorf("Device = %q", cfg.Audio.Device)
	}
}

func TestHandleSetAndNotify(t *testing.T) {
	h := NewHandle(DefaultCommentary())

	var calls int
	var old, updated Commentary
	h.OnChange(func(o, u Commentary) {
		calls++
		old, updated = o, u
	})

	if err := h.Set("agent1", "A"); err != nil {
		t.Fatalf("Set agent1: %v", err)
	}
	if err := h.Set("interval", "5"); err != nil {
		t.Fatalf("Set interval: %v", err)
	}
	if err := h.Set("agents", ""); err != nil {
		t.Fatalf("Set agents: %v", err)
	}

	got := h.Load()
	if got.Agent1Personality != "A" {
		t.Errorf("Agent1Personality = %q, want A", got.Agent1Personality)
	}
	if got.Interval() != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", got.Interval())
	}
	if got.NumAgents != 2 {
		t.Errorf("NumAgents = %d, want 2", got.NumAgents)
	}
	if calls != 3 {
		t.Errorf("OnChange calls = %d, want 3", calls)
	}
	if old.SamplingInterval != 5 || updated.NumAgents != 2 {
		t.Errorf("last change = %+v -> %+v", old, updated)
	}
}

func TestHandleSetUnknownKey(t *testing.T) {
	h := NewHandle(DefaultCommentary())
	if err := h.Set("volume", "11"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestHandleLoadIsCopy(t *testing.T) {
	h := NewHandle(DefaultCommentary())
	c := h.Load()
	c.Style = "Analytical"
	if h.Load().Style != "Roast" {
		t.Errorf("Load returned a shared value")
	}
}

func TestConfigSet(t *testing.T) {
	cfg := Default()
	tests := []struct {
		key, value string
		check      func() bool
	}{
		{"realtime.model", "m1", func() bool { return cfg.Realtime.Model == "m1" }},
		{"audio.device", "/tmp/mic.raw", func() bool { return cfg.Audio.Device == "/tmp/mic.raw" }},
		{"recording.s3_bucket", "clips", func() bool { return cfg.Recording.S3Bucket == "clips" }},
		{"realtime.ice_servers", "stun:a, ,stun:b", func() bool { return len(cfg.Realtime.ICEServers) == 2 }},
		{"agents", "0", func() bool { return cfg.Commentary.NumAgents == 1 }},
		{"interval", "nope", func() bool { return cfg.Commentary.SamplingInterval == DefaultSamplingInterval }},
	}
	for _, tt := range tests {
		if err := cfg.Set(tt.key, tt.value); err != nil {
			t.Fatalf("Set(%q) error = %v", tt.key, err)
		}
		if !tt.check() {
			t.Errorf("Set(%q, %q) not applied: %+v", tt.key, tt.value, cfg)
		}
	}
	if err := cfg.Set("bogus", "1"); err == nil {
		t.Error("Set(bogus) should fail")
	}
}
