package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestEventInfoToJSON(t *testing.T) {
	e := Info("read_chunk").WithChunk("image_collection", 7).WithDuration(250 * time.Millisecond)
	out, err := e.ToJSON()
	if err != nil {
		t.Fatalf("failed to serialize event: %v", err)
	}
	for _, want := range []string{`"level":"info"`, `"event":"read_chunk"`, `"cube_type":"image_collection"`, `"chunk_id":7`} {
		if !strings.Contains(out, want) {
			t.Errorf("event JSON missing %s: %s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("event JSON must be newline terminated")
	}
}

func TestWarnEvent(t *testing.T) {
	e := Warn("mask configuration ignored")
	out, err := e.ToJSON()
	if err != nil {
		t.Fatalf("failed to serialize event: %v", err)
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "mask configuration ignored") {
		t.Errorf("unexpected warning JSON: %s", out)
	}
}

func TestDiscardLogger(t *testing.T) {
	// must not panic on nil-ish usage patterns
	NewDiscardLogger().Log(Info("read_chunk"))
}
