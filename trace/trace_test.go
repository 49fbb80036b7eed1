package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestNewRunIDUnique(t *testing.T) {
	a, err := NewRunID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewRunID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct run ids")
	}
	if len(a) == 0 {
		t.Fatal("expected non-empty run id")
	}
}

func TestEmitterNoSinkIsNoop(t *testing.T) {
	e := NewEmitter("run1", nil)
	if err := e.Emit(EventRunStart, nil, nil); err != nil {
		t.Fatalf("expected no-op, got error: %v", err)
	}
}

func TestJSONSinkOrderAndTimestampMonotonicity(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONSink(&buf)
	e := NewEmitter("run1", sink)
	if err := e.Emit(EventRunStart, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Emit(EventStmtStart, nil, map[string]any{"n": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Emit(EventRunEnd, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	var prevTs string
	for i, line := range lines {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("line %d: invalid JSON: %v", i, err)
		}
		if decoded["runId"] != "run1" {
			t.Fatalf("line %d: expected runId 'run1', got %v", i, decoded["runId"])
		}
		ts, _ := decoded["ts"].(string)
		if ts <= prevTs {
			t.Fatalf("line %d: timestamps not strictly increasing: %q <= %q", i, ts, prevTs)
		}
		prevTs = ts
	}
}

func TestCBORSinkRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewCBORSink(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := NewEmitter("run1", sink)
	if err := e.Emit(EventToolStart, nil, map[string]any{"tool": "fs.read"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty CBOR output")
	}
	var decoded map[string]any
	if err := cbor.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("CBOR output does not decode: %v", err)
	}
	if decoded["event"] != "tool_start" || decoded["runId"] != "run1" {
		t.Fatalf("expected tool_start event for run1, got %v", decoded)
	}
}
