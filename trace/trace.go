// Package trace implements the run trace emitter (spec §4.C8): a
// totally-ordered, synchronous stream of events describing evaluation
// progress. Grounded on the teacher's event-sourcing style emit/
// emitWithData helpers (see the evaluator reference in the retrieved
// corpus) and its JSON-first persistence, extended with an optional
// CBOR sink using the same codec already wired for value digests.
package trace

import (
	"time"

	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
)

// EventType is one of the documented trace event names (spec §4.C8).
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventRunEnd         EventType = "run_end"
	EventStmtStart      EventType = "stmt_start"
	EventStmtEnd        EventType = "stmt_end"
	EventToolStart      EventType = "tool_start"
	EventToolEnd        EventType = "tool_end"
	EventEvidence       EventType = "evidence"
	EventBudgetExceeded EventType = "budget_exceeded"
	EventForStart       EventType = "for_start"
	EventForEnd         EventType = "for_end"
	EventFnCallStart    EventType = "fn_call_start"
	EventFnCallEnd      EventType = "fn_call_end"
	EventMatchStart     EventType = "match_start"
	EventMatchEnd       EventType = "match_end"
	EventMapStart       EventType = "map_start"
	EventMapEnd         EventType = "map_end"
	EventReduceStart    EventType = "reduce_start"
	EventReduceEnd      EventType = "reduce_end"
	EventTryStart       EventType = "try_start"
	EventTryEnd         EventType = "try_end"
	EventFilterStart    EventType = "filter_start"
	EventFilterEnd      EventType = "filter_end"
	EventLoopStart      EventType = "loop_start"
	EventLoopEnd        EventType = "loop_end"
)

// Event is one trace record.
type Event struct {
	Ts    string
	RunID string
	Event EventType
	Span  *diagnostics.Span
	Data  map[string]any
}

// Sink receives events as they are emitted. If no sink is configured,
// emission is a no-op (spec §4.C8).
type Sink interface {
	Emit(Event) error
}

// Emitter stamps events with a monotonically increasing ISO-8601
// timestamp and a fixed run id, then forwards them to a Sink.
type Emitter struct {
	runID  string
	sink   Sink
	lastTs time.Time
}

// NewEmitter creates an Emitter for one run. sink may be nil, in which
// case Emit is a no-op.
func NewEmitter(runID string, sink Sink) *Emitter {
	return &Emitter{runID: runID, sink: sink}
}

// RunID returns the run id this emitter stamps onto every event.
func (e *Emitter) RunID() string { return e.runID }

func (e *Emitter) nextTs() time.Time {
	now := time.Now()
	if !now.After(e.lastTs) {
		now = e.lastTs.Add(time.Nanosecond)
	}
	e.lastTs = now
	return now
}

// Emit stamps and forwards one event. A nil sink makes this a no-op,
// matching the spec's "if no sink is configured, all event emissions
// are no-ops".
func (e *Emitter) Emit(eventType EventType, span *diagnostics.Span, data map[string]any) error {
	if e.sink == nil {
		return nil
	}
	ev := Event{
		Ts:    e.nextTs().Format(time.RFC3339Nano),
		RunID: e.runID,
		Event: eventType,
		Span:  span,
		Data:  data,
	}
	return e.sink.Emit(ev)
}
