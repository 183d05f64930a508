// Package ingest watches the inbox directory and feeds new PDFs into
// the processing pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkessler/pflegedocs/constants"
	"github.com/mkessler/pflegedocs/internal/pipeline"
)

// Processor is the pipeline entry point the watcher drives.
type Processor interface {
	Process(ctx context.Context, path string, force bool) (*pipeline.Result, error)
}

const stableChecks = 10

type Config struct {
	InboxDir      string
	RetryAttempts int           // pipeline attempts per file before giving up
	RetryCooldown time.Duration // wait between attempts
	StablePoll    time.Duration // interval between file-size checks
}

type Watcher struct {
	cfg    Config
	proc   Processor
	logger *slog.Logger
}

func NewWatcher(cfg Config, proc Processor, logger *slog.Logger) *Watcher {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.RetryCooldown <= 0 {
		cfg.RetryCooldown = 30 * time.Second
	}
	if cfg.StablePoll <= 0 {
		cfg.StablePoll = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{cfg: cfg, proc: proc, logger: logger}
}

// Run watches the inbox until the context is cancelled. Each new PDF is
// size-stabilized first (a scanner may still be writing it), then
// processed with a bounded retry.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.InboxDir); err != nil {
		return fmt.Errorf("ingest: watch %s: %w", w.cfg.InboxDir, err)
	}
	w.logger.InfoContext(ctx, "watcher.started", "dir", w.cfg.InboxDir)

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "watcher.stopped")
			return ctx.Err()
		case e, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if e.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !constants.IsAllowedFile(e.Name) {
				continue
			}
			w.handle(ctx, e.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.ErrorContext(ctx, "watcher.error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	filename := filepath.Base(path)
	log := w.logger.With("filename", filename)
	log.InfoContext(ctx, "watcher.new_file")

	if err := w.waitStable(ctx, path); err != nil {
		log.WarnContext(ctx, "watcher.cancelled_while_stabilizing", "error", err)
		return
	}

	for attempt := 1; attempt <= w.cfg.RetryAttempts; attempt++ {
		res, err := w.proc.Process(ctx, path, false)
		if err == nil {
			if res == nil {
				log.WarnContext(ctx, "watcher.skipped")
			} else {
				log.InfoContext(ctx, "watcher.processed",
					"doc_id", res.DocID, "doc_type", res.DocType)
			}
			return
		}
		log.ErrorContext(ctx, "watcher.attempt_failed",
			"attempt", attempt, "max_attempts", w.cfg.RetryAttempts, "error", err)
		if attempt < w.cfg.RetryAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.RetryCooldown):
			}
		}
	}
	log.ErrorContext(ctx, "watcher.gave_up", "attempts", w.cfg.RetryAttempts)
}

// waitStable polls until the file size is unchanged across consecutive
// checks and non-zero. When the check budget runs out the file is
// handed to the pipeline anyway; a truncated PDF fails there and goes
// through the retry loop.
func (w *Watcher) waitStable(ctx context.Context, path string) error {
	prev := int64(-1)
	for i := 0; i < stableChecks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.StablePoll):
		}
		info, err := os.Stat(path)
		if err != nil {
			prev = -1
			continue
		}
		size := info.Size()
		if size == prev && size > 0 {
			return nil
		}
		prev = size
	}
	w.logger.WarnContext(ctx, "watcher.stabilize_budget_exhausted", "path", path)
	return nil
}
