package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/ThomasRohde/Agent0-sub003/value"
)

func TestShellExecCapturesStdout(t *testing.T) {
	tool := ShellExec()
	out, err := tool.Execute(context.Background(), rec(value.Entry{Key: "cmd", Value: value.NewString("echo hi")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stdout, _ := out.Get("stdout")
	if strings.TrimSpace(stdout.AsString()) != "hi" {
		t.Fatalf("expected stdout 'hi', got %q", stdout.AsString())
	}
	exitCode, _ := out.Get("exitCode")
	if exitCode.AsNumber() != 0 {
		t.Fatalf("expected exitCode 0, got %v", exitCode)
	}
}

func TestShellExecReportsNonZeroExit(t *testing.T) {
	tool := ShellExec()
	out, err := tool.Execute(context.Background(), rec(value.Entry{Key: "cmd", Value: value.NewString("exit 7")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exitCode, _ := out.Get("exitCode")
	if exitCode.AsNumber() != 7 {
		t.Fatalf("expected exitCode 7, got %v", exitCode)
	}
}
