package activity

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"go.aimuz.me/commentator/realtime"
)

func mustParse(t *testing.T, s string) realtime.Event {
	t.Helper()
	e, err := realtime.ParseEvent([]byte(s))
	if err != nil {
		t.Fatalf("ParseEvent(%s): %v", s, err)
	}
	return e
}

func TestSubtitlesKeepLastFive(t *testing.T) {
	s := NewSubtitles(0)
	for i := 1; i <= 6; i++ {
		s.Push(fmt.Sprintf("f%d", i))
	}

	want := []string{"f2", "f3", "f4", "f5", "f6"}
	if got := s.Lines(); !slices.Equal(got, want) {
		t.Errorf("Lines() = %v, want %v", got, want)
	}
}

func TestSubtitlesNeverExceedMax(t *testing.T) {
	s := NewSubtitles(3)
	for i := range 20 {
		s.Push(fmt.Sprint(i))
		lines := s.Lines()
		if len(lines) > 3 {
			t.Fatalf("len = %d after %d pushes", len(lines), i+1)
		}
		if lines[len(lines)-1] != fmt.Sprint(i) {
			t.Fatalf("last = %q, want %q", lines[len(lines)-1], fmt.Sprint(i))
		}
	}
}

func TestAggregator(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantLines []string
	}{
		{
			name:    "no delta",
			payload: `{"type":"session.created","session":{"id":"s1"}}`,
		},
		{
			name:    "delta without text",
			payload: `{"type":"response.audio.delta","delta":"AAAA"}`,
		},
		{
			name:      "text delta",
			payload:   `{"type":"response.text.delta","delta":{"text":"nice line"}}`,
			wantLines: []string{"nice line"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewLog()
			subs := NewSubtitles(DefaultSubtitleLines)
			a := NewAggregator(log, subs)

			a.HandleEvent(mustParse(t, tt.payload))

			if got := subs.Lines(); !slices.Equal(got, tt.wantLines) {
				t.Errorf("subtitles = %v, want %v", got, tt.wantLines)
			}
			entries := log.Entries()
			if len(entries) != 1 {
				t.Fatalf("log entries = %d, want 1", len(entries))
			}
			if !strings.Contains(entries[0].Text, "\n  \"type\"") {
				t.Errorf("entry not pretty-printed: %q", entries[0].Text)
			}
		})
	}
}

func TestAggregatorParseError(t *testing.T) {
	log := NewLog()
	subs := NewSubtitles(DefaultSubtitleLines)
	a := NewAggregator(log, subs)

	_, err := realtime.ParseEvent([]byte(`{oops`))
	if err == nil {
		t.Fatal("expected parse error")
	}
	a.HandleParseError(err)

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	text := entries[0].Text
	if !strings.HasPrefix(text, "Error parsing message: ") {
		t.Errorf("entry = %q", text)
	}
	if strings.Contains(text, "protocol error") {
		t.Errorf("entry carries the classification: %q", text)
	}
	if len(subs.Lines()) != 0 {
		t.Error("parse error reached subtitles")
	}
}

func TestLogSubscribeAndOrder(t *testing.T) {
	log := NewLog()
	var seen []string
	log.Subscribe(func(e Entry) { seen = append(seen, e.Text) })

	log.Append("one")
	log.Appendf("two %d", 2)

	if log.Len() != 2 {
		t.Fatalf("Len() = %d", log.Len())
	}
	if !slices.Equal(seen, []string{"one", "two 2"}) {
		t.Errorf("subscriber saw %v", seen)
	}
	entries := log.Entries()
	entries[0].Text = "mutated"
	if log.Entries()[0].Text != "one" {
		t.Error("Entries() exposes internal storage")
	}
}

func TestSubtitlesSubscribe(t *testing.T) {
	s := NewSubtitles(2)
	var last []string
	s.Subscribe(func(lines []string) { last = lines })

	s.Push("a")
	s.Push("b")
	s.Push("c")

	if !slices.Equal(last, []string{"b", "c"}) {
		t.Errorf("subscriber saw %v", last)
	}
}
