package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchAndRun runs the program once, then re-runs it every time the source
// file is written to, until the process is interrupted. Errors from
// individual runs are reported but do not stop the watch loop; only a
// failure to set up the watcher itself is fatal.
func watchAndRun(path string, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &exitCodeError{code: 1, err: fmt.Errorf("starting file watcher: %w", err)}
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return &exitCodeError{code: 1, err: fmt.Errorf("watching %s: %w", dir, err)}
	}

	target := filepath.Clean(path)
	runAndReport := func() {
		if err := run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	runAndReport()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			runAndReport()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}
