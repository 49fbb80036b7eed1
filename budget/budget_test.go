package budget

import (
	"context"
	"testing"
	"time"
)

func TestToolCallBudget(t *testing.T) {
	a := New(context.Background(), Limits{MaxToolCalls: 2, HasMaxToolCalls: true})
	defer a.Close()
	if err := a.CheckToolCall(); err != nil {
		t.Fatalf("unexpected error on call 1: %v", err)
	}
	a.IncrementToolCall()
	if err := a.CheckToolCall(); err != nil {
		t.Fatalf("unexpected error on call 2: %v", err)
	}
	a.IncrementToolCall()
	if err := a.CheckToolCall(); err == nil {
		t.Fatal("expected budget error on call 3")
	}
}

func TestBytesWrittenBudget(t *testing.T) {
	a := New(context.Background(), Limits{MaxBytesWritten: 100, HasMaxBytesWritten: true})
	defer a.Close()
	if err := a.AddBytesWritten(60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.AddBytesWritten(50); err == nil {
		t.Fatal("expected budget error after exceeding maxBytesWritten")
	}
}

func TestIterationBudget(t *testing.T) {
	a := New(context.Background(), Limits{MaxIterations: 2, HasMaxIterations: true})
	defer a.Close()
	if err := a.CheckIteration(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.CheckIteration(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.CheckIteration(); err == nil {
		t.Fatal("expected budget error on third iteration")
	}
}

func TestTimeBudgetExceeded(t *testing.T) {
	a := New(context.Background(), Limits{TimeMs: 1, HasTimeMs: true})
	defer a.Close()
	time.Sleep(5 * time.Millisecond)
	if err := a.CheckTime(); err == nil {
		t.Fatal("expected time budget error")
	}
}

func TestNoLimitsNeverTrip(t *testing.T) {
	a := New(context.Background(), Limits{})
	defer a.Close()
	if err := a.CheckTime(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.CheckToolCall(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.CheckIteration(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
