// Package budget implements the run-scoped resource accountant (spec
// §4.C7): tool-call, byte, iteration and wall-clock limits checked at
// the points the evaluator calls out. Grounded on the teacher's
// runtime.go cancellation-handle pattern (a context.Context derived
// from an optional deadline, checked cooperatively rather than by
// preemption).
package budget

import (
	"context"
	"time"

	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
)

// Limits are the optional fields parsed out of a program's `budget {
// ... }` header. A zero Set bit means the field is unset (no limit).
type Limits struct {
	TimeMs          int64
	HasTimeMs       bool
	MaxToolCalls    int64
	HasMaxToolCalls bool
	MaxBytesWritten int64
	HasMaxBytesWritten bool
	MaxIterations   int64
	HasMaxIterations   bool
}

// Accountant tracks consumption against Limits for one run.
type Accountant struct {
	limits Limits

	toolCalls    int64
	bytesWritten int64
	iterations   int64

	startMonotonic time.Time
	ctx            context.Context
	cancel         context.CancelFunc
}

// New creates an Accountant and, if a time limit is set, a
// cancellation handle that fires at the deadline (spec §5
// "Cancellation & timeouts").
func New(parent context.Context, limits Limits) *Accountant {
	a := &Accountant{limits: limits, startMonotonic: time.Now()}
	if limits.HasTimeMs {
		a.ctx, a.cancel = context.WithTimeout(parent, time.Duration(limits.TimeMs)*time.Millisecond)
	} else {
		a.ctx, a.cancel = context.WithCancel(parent)
	}
	return a
}

// Context returns the cancellation handle passed into tool executors.
func (a *Accountant) Context() context.Context { return a.ctx }

// Close releases the cancellation handle. Safe to call more than once.
func (a *Accountant) Close() { a.cancel() }

// elapsedMs returns the monotonic elapsed time since the run started.
func (a *Accountant) elapsedMs() int64 {
	return time.Since(a.startMonotonic).Milliseconds()
}

func budgetErr(field string, msg string) *diagnostics.Diagnostic {
	return diagnostics.New(diagnostics.EBudget, msg).WithContext("field", field)
}

// CheckTime is called before every statement execution (spec §4.C7).
func (a *Accountant) CheckTime() *diagnostics.Diagnostic {
	if !a.limits.HasTimeMs {
		return nil
	}
	if a.elapsedMs() >= a.limits.TimeMs || a.ctx.Err() != nil {
		return budgetErr("timeMs", "time budget exceeded")
	}
	return nil
}

// CheckToolCall is called before dispatching a call?/do. On success
// the caller must call IncrementToolCall after the tool returns.
func (a *Accountant) CheckToolCall() *diagnostics.Diagnostic {
	if a.limits.HasMaxToolCalls && a.toolCalls >= a.limits.MaxToolCalls {
		return budgetErr("maxToolCalls", "tool call budget exceeded")
	}
	return nil
}

// IncrementToolCall records one successful tool dispatch.
func (a *Accountant) IncrementToolCall() { a.toolCalls++ }

// AddBytesWritten records bytes a tool reported writing and checks the
// byte budget. Must be called after a tool call that returns a record
// with a numeric `bytes` field.
func (a *Accountant) AddBytesWritten(n int64) *diagnostics.Diagnostic {
	a.bytesWritten += n
	if a.limits.HasMaxBytesWritten && a.bytesWritten > a.limits.MaxBytesWritten {
		return budgetErr("maxBytesWritten", "byte-write budget exceeded")
	}
	return nil
}

// CheckIteration is called before entering each iteration of
// for/filter/loop and before each map/reduce/filter step. On success
// the iteration counter is incremented.
func (a *Accountant) CheckIteration() *diagnostics.Diagnostic {
	if a.limits.HasMaxIterations && a.iterations >= a.limits.MaxIterations {
		return budgetErr("maxIterations", "iteration budget exceeded")
	}
	a.iterations++
	return nil
}

// Snapshot returns the current counters, primarily for trace data and
// tests.
type Snapshot struct {
	ToolCalls    int64
	BytesWritten int64
	Iterations   int64
	ElapsedMs    int64
}

func (a *Accountant) Snapshot() Snapshot {
	return Snapshot{
		ToolCalls:    a.toolCalls,
		BytesWritten: a.bytesWritten,
		Iterations:   a.iterations,
		ElapsedMs:    a.elapsedMs(),
	}
}
