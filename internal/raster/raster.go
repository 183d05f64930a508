// Package raster converts paged PDF documents into ordered JPEG page images.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrTooManyPages is returned when a document's page count exceeds the
// configured ceiling. This is a cost guard against the downstream model,
// not a parsing limitation.
var ErrTooManyPages = errors.New("page count exceeds ceiling")

type Config struct {
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	DPI         int    // default 150
	JPEGQuality int    // default 85
	MaxPages    int    // page-count ceiling, default 20; 0 = no limit
}

type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 20
	}
	return &Rasterizer{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Pages renders every page of the PDF at path to a JPEG buffer, in page
// order. Returns ErrTooManyPages (wrapped) when the document is over the
// configured ceiling; any conversion error is fatal for the document.
func (r *Rasterizer) Pages(ctx context.Context, path string) ([][]byte, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "pflegedocs-raster-*")
	if err != nil {
		return nil, fmt.Errorf("raster: temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			r.logger.Warn("raster.tmpdir.remove_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -jpeg -jpegopt quality=<q> <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", r.cfg.DPI),
		"-jpeg", "-jpegopt", fmt.Sprintf("quality=%d", r.cfg.JPEGQuality),
		path, prefix)
	if err != nil {
		return nil, fmt.Errorf("raster: pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm pads page numbers to a fixed width, so a string sort
	// preserves page order.
	matches, _ := filepath.Glob(prefix + "-*.jpg")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("raster: pdftoppm produced no pages for %s", filepath.Base(path))
	}
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		return nil, fmt.Errorf("raster: %s has %d pages (limit %d): %w",
			filepath.Base(path), len(matches), r.cfg.MaxPages, ErrTooManyPages)
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("raster: read page image: %w", err)
		}
		pages = append(pages, b)
	}

	r.logger.Debug("raster.ok",
		"file", filepath.Base(path),
		"pages", len(pages),
		"dpi", r.cfg.DPI,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}
