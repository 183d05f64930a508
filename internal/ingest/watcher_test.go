package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mkessler/pflegedocs/internal/pipeline"
)

type fakeProcessor struct {
	mu       sync.Mutex
	paths    []string
	failures int // fail this many calls before succeeding
}

func (f *fakeProcessor) Process(ctx context.Context, path string, force bool) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("boom")
	}
	return &pipeline.Result{DocID: 1, Filename: filepath.Base(path)}, nil
}

func (f *fakeProcessor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func testWatcher(proc Processor) *Watcher {
	return NewWatcher(Config{
		InboxDir:      "",
		RetryAttempts: 2,
		RetryCooldown: 10 * time.Millisecond,
		StablePoll:    5 * time.Millisecond,
	}, proc, nil)
}

func TestWaitStableReturnsWhenSizeSettles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Grow the file a couple of times, then stop writing.
	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(3 * time.Millisecond)
			f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			f.Write([]byte("more"))
			f.Close()
		}
	}()

	w := testWatcher(&fakeProcessor{})
	if err := w.waitStable(context.Background(), path); err != nil {
		t.Fatalf("waitStable: %v", err)
	}
}

func TestWaitStableHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := testWatcher(&fakeProcessor{})
	if err := w.waitStable(ctx, "/nonexistent.pdf"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHandleRetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, []byte("stable content"), 0o644); err != nil {
		t.Fatal(err)
	}

	proc := &fakeProcessor{failures: 1}
	w := testWatcher(proc)
	w.handle(context.Background(), path)

	if got := proc.calls(); got != 2 {
		t.Errorf("process calls = %d, want 2 (one failure, one success)", got)
	}
}

func TestHandleGivesUpAfterBudget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, []byte("stable content"), 0o644); err != nil {
		t.Fatal(err)
	}

	proc := &fakeProcessor{failures: 10}
	w := testWatcher(proc)
	w.handle(context.Background(), path)

	if got := proc.calls(); got != 2 {
		t.Errorf("process calls = %d, want exactly the retry budget", got)
	}
}

func TestRunPicksUpNewPDF(t *testing.T) {
	dir := t.TempDir()
	proc := &fakeProcessor{}
	w := NewWatcher(Config{
		InboxDir:      dir,
		RetryAttempts: 1,
		RetryCooldown: 10 * time.Millisecond,
		StablePoll:    5 * time.Millisecond,
	}, proc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register, then drop a PDF and a file it
	// must ignore.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("pdf content"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for proc.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("watcher never processed the new PDF")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	for _, p := range proc.paths {
		if filepath.Ext(p) != ".pdf" {
			t.Errorf("non-pdf processed: %s", p)
		}
	}
}
