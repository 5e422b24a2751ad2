package capture

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/terminal"
)

func record(t *testing.T, steps []struct {
	after time.Duration
	data  string
}) []byte {
	t.Helper()
	fc := clock.Fake(time.Unix(1700000000, 0))
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, fc)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	for _, s := range steps {
		fc.Advance(s.after)
		if err := rec.Record([]byte(s.data)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestRecordAndRead(t *testing.T) {
	data := record(t, []struct {
		after time.Duration
		data  string
	}{
		{0, "a"},
		{10 * time.Millisecond, "\x1b[1;5"},
		{time.Millisecond, "A"},
	})

	header, frames, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if header.Version != formatVersion || header.SessionID == "" {
		t.Fatalf("header = %+v", header)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[2].Offset != 11*time.Millisecond || string(frames[1].Data) != "\x1b[1;5" {
		t.Fatalf("frames = %+v", frames)
	}
}

func TestReplayPreservesTiming(t *testing.T) {
	data := record(t, []struct {
		after time.Duration
		data  string
	}{
		{0, `\`},
		{5 * time.Millisecond, "\r"},
		{time.Second, `\`},
		{100 * time.Millisecond, "\r"},
		{0, "\x1b"},
	})
	_, frames, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	events := Replay(frames, terminal.Options{})
	var got []string
	for _, ev := range events {
		got = append(got, ev.String())
	}
	want := []string{"shift+return", `\`, "return", "escape"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("replayed %q, want %q", got, want)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, _, err := Read(strings.NewReader("not a recording")); err == nil {
		t.Fatal("Read accepted garbage")
	}
}
