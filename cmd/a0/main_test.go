package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestRunCmdSucceedsOnPureProgram(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "ok.a0", `
let x = 1 + 2
return x
`)
	cmd := newRunCmd()
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected success, got %v (exit %d)", err, exitFromError(err))
	}
}

func TestRunCmdExitsTwoOnParseFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "bad.a0", `let = }`)
	cmd := newRunCmd()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected a parse failure")
	}
	if code := exitFromError(err); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRunCmdExitsThreeOnDeniedCapability(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "cap.a0", `
cap { fs.read: true }
let r = call? fs.read { path: "x.txt" }
return r
`)
	cmd := newRunCmd()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected a policy denial (no --policy flag given)")
	}
	if code := exitFromError(err); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
}

func TestRunCmdExitsFiveOnAssertFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "assert.a0", `
let _ = assert { that: false, msg: "always fails" }
return 1
`)
	cmd := newRunCmd()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected an assertion failure")
	}
	if code := exitFromError(err); code != 5 {
		t.Fatalf("expected exit code 5, got %d", code)
	}
}

func TestValidateCmdReportsUnboundIdentifier(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "unbound.a0", `
return missing
`)
	cmd := newValidateCmd()
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected validation to fail on an unbound identifier")
	}
	if code := exitFromError(err); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestFmtCmdIsIdempotentOnAlreadyFormattedSource(t *testing.T) {
	dir := t.TempDir()
	src := "let x = 1\nreturn x\n"
	path := writeSource(t, dir, "fmt.a0", src)

	cmd := newFmtCmd()
	cmd.SetArgs([]string{path, "--diff"})
	var out strings.Builder
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no diff for already formatted source, got:\n%s", out.String())
	}
}
