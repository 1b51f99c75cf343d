package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce duration - wait for rapid saves to settle
const watchDebounce = 100 * time.Millisecond

// watchFile runs filename, then runs it again every time it changes until
// ctx is cancelled. A change while a run is in progress stops that run.
func (r *runner) watchFile(ctx context.Context, filename string) int {
	path, err := filepath.Abs(filename)
	if err != nil {
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		return exitUsage
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer watcher.Close()

	// Editors often replace the file on save, so watch its directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		fmt.Fprintf(r.stderr, "Error: failed to watch %s: %v\n", filename, err)
		return exitUsage
	}
	fmt.Fprintf(r.stderr, "[watch] watching %s\n", filename)

	// Runs write from their own goroutine while the loop reports events
	run := *r
	run.stdout = &lockedWriter{w: r.stdout}
	run.stderr = &lockedWriter{w: r.stderr}
	r = &run

	var (
		wg     sync.WaitGroup
		cancel context.CancelFunc = func() {}
	)
	start := func(changed bool) {
		cancel()
		wg.Wait()
		if changed {
			fmt.Fprintf(r.stderr, "[watch] %s changed, re-running\n", filename)
		}
		var runCtx context.Context
		runCtx, cancel = context.WithCancel(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runFile(runCtx, filename)
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	start(false)

	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return exitOK

		case event, ok := <-watcher.Events:
			if !ok {
				return exitOK
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(watchDebounce)

		case <-timer.C:
			start(true)

		case err, ok := <-watcher.Errors:
			if !ok {
				return exitOK
			}
			fmt.Fprintf(r.stderr, "[watch] watcher error: %v\n", err)
		}
	}
}

// lockedWriter serializes writes from the watch loop and the running program.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
