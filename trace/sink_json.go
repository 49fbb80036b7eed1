package trace

import (
	"encoding/json"
	"io"
	"sync"
)

type jsonSpan struct {
	File      string `json:"file" cbor:"file"`
	StartLine int    `json:"startLine" cbor:"startLine"`
	StartCol  int    `json:"startCol" cbor:"startCol"`
	EndLine   int    `json:"endLine" cbor:"endLine"`
	EndCol    int    `json:"endCol" cbor:"endCol"`
}

type jsonEvent struct {
	Ts    string         `json:"ts" cbor:"ts"`
	RunID string         `json:"runId" cbor:"runId"`
	Event EventType      `json:"event" cbor:"event"`
	Span  *jsonSpan      `json:"span,omitempty" cbor:"span,omitempty"`
	Data  map[string]any `json:"data,omitempty" cbor:"data,omitempty"`
}

// JSONSink writes one JSON object per line (JSON Lines) to w. Safe for
// a single run (the evaluator is single-threaded; the mutex guards
// only against a host reading the stream concurrently with writes).
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink wraps w as a line-delimited JSON trace sink.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	je := jsonEvent{Ts: e.Ts, RunID: e.RunID, Event: e.Event, Data: e.Data}
	if e.Span != nil {
		je.Span = &jsonSpan{
			File:      e.Span.File,
			StartLine: e.Span.StartLine,
			StartCol:  e.Span.StartCol,
			EndLine:   e.Span.EndLine,
			EndCol:    e.Span.EndCol,
		}
	}
	return s.enc.Encode(je)
}
