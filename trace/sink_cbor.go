package trace

import (
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// CBORSink writes one CBOR-encoded record per event to w, back to back
// (a CBOR sequence). Used by hosts that want a smaller, binary trace
// file. It builds its own encoder from the same canonical CBOR options
// that value.Canonicalize uses.
type CBORSink struct {
	mu  sync.Mutex
	w   io.Writer
	enc cbor.EncMode
}

// NewCBORSink wraps w as a CBOR-sequence trace sink.
func NewCBORSink(w io.Writer) (*CBORSink, error) {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &CBORSink{w: w, enc: mode}, nil
}

func (s *CBORSink) Emit(e Event) error {
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
	data, err := s.enc.Marshal(je)
	if err != nil {
		return err
	}
	_, err = s.w.Write(data)
	return err
}
