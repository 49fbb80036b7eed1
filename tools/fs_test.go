package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThomasRohde/Agent0-sub003/value"
)

func rec(entries ...value.Entry) value.Value { return value.NewRecord(entries) }

func TestFSWriteThenRead(t *testing.T) {
	root := t.TempDir()
	write := FSWrite(root)
	read := FSRead(root)

	out, err := write.Execute(context.Background(), rec(
		value.Entry{Key: "path", Value: value.NewString("sub/a.txt")},
		value.Entry{Key: "content", Value: value.NewString("hello")},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bytesV, _ := out.Get("bytes")
	if bytesV.AsNumber() != 5 {
		t.Fatalf("expected bytes=5, got %v", bytesV)
	}

	in, err := read.Execute(context.Background(), rec(value.Entry{Key: "path", Value: value.NewString("sub/a.txt")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, _ := in.Get("content")
	if content.AsString() != "hello" {
		t.Fatalf("expected content 'hello', got %v", content)
	}
}

func TestFSReadRejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	read := FSRead(root)
	_, err := read.Execute(context.Background(), rec(value.Entry{Key: "path", Value: value.NewString("../etc/passwd")}))
	if err == nil {
		t.Fatal("expected path escape to be rejected")
	}
}

func TestFSReadRejectsAbsolutePath(t *testing.T) {
	root := t.TempDir()
	read := FSRead(root)
	_, err := read.Execute(context.Background(), rec(value.Entry{Key: "path", Value: value.NewString("/etc/passwd")}))
	if err == nil {
		t.Fatal("expected absolute path to be rejected")
	}
}

func TestFSWriteCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	write := FSWrite(root)
	_, err := write.Execute(context.Background(), rec(
		value.Entry{Key: "path", Value: value.NewString("a/b/c.txt")},
		value.Entry{Key: "content", Value: value.NewString("x")},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b", "c.txt")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}
