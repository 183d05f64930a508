// Package pipeline orchestrates document processing: rasterize, extract
// page by page, merge, validate, persist, link.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mkessler/pflegedocs/internal/llm"
	"github.com/mkessler/pflegedocs/internal/raster"
	"github.com/mkessler/pflegedocs/internal/store"
)

// Store is the subset of persistence operations the processor needs.
type Store interface {
	GetDocumentByFilename(filename string) (*store.Document, error)
	UpsertDocumentWithActions(doc store.Document, actions []store.NewAction) (int64, error)
}

// Rasterizer converts a PDF into ordered page images.
type Rasterizer interface {
	Pages(ctx context.Context, path string) ([][]byte, error)
}

// IssueLinker attaches a persisted document to an issue.
type IssueLinker interface {
	Link(ctx context.Context, docID int64, doc llm.Extraction) (int64, error)
}

// Result summarizes one processed document.
type Result struct {
	DocID     int64
	Filename  string
	DocType   string
	Subject   string
	PageCount int
	IssueID   int64
	Warnings  []string
	FromStore bool // short-circuited to the already-stored record
}

// Processor runs the per-document pipeline. Documents are processed
// strictly sequentially; there is no concurrency within or across
// documents here.
type Processor struct {
	logger       *slog.Logger
	store        Store
	raster       Rasterizer
	analyzer     llm.PageAnalyzer
	linker       IssueLinker
	processedDir string
}

func NewProcessor(st Store, r Rasterizer, analyzer llm.PageAnalyzer, linker IssueLinker, processedDir string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:       logger,
		store:        st,
		raster:       r,
		analyzer:     analyzer,
		linker:       linker,
		processedDir: processedDir,
	}
}

// Process runs the full pipeline for one PDF. Without force, a filename
// already in the store short-circuits to the stored record. A page
// count over the ceiling is a clean skip, returned as (nil, nil). Any
// artifacts written during a failed run are removed before the error is
// returned.
func (p *Processor) Process(ctx context.Context, path string, force bool) (*Result, error) {
	filename := filepath.Base(path)
	log := p.logger.With("filename", filename)

	if !force {
		stored, err := p.store.GetDocumentByFilename(filename)
		switch {
		case err == nil:
			log.InfoContext(ctx, "pipeline.already_processed", "doc_id", stored.ID)
			return resultFromStored(stored), nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	log.InfoContext(ctx, "pipeline.start", "force", force)

	pages, err := p.raster.Pages(ctx, path)
	if err != nil {
		if errors.Is(err, raster.ErrTooManyPages) {
			log.WarnContext(ctx, "pipeline.skipped", "reason", err.Error())
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: rasterize %s: %w", filename, err)
	}

	// Everything written from here on is rolled back unless the
	// database commit succeeds.
	var written []string
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, f := range written {
			os.Remove(f)
		}
	}()

	results := make([]llm.PageResult, 0, len(pages))
	for i, page := range pages {
		text, err := p.analyzer.AnalyzePage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("pipeline: extract page %d of %s: %w", i+1, filename, err)
		}
		results = append(results, llm.ParseResponse(text))
	}

	merged := llm.MergePages(results)
	ext, warnings := llm.Validate(merged)
	for _, w := range warnings {
		log.WarnContext(ctx, "pipeline.validation", "warning", w)
	}
	if ext.ParseFailed {
		log.WarnContext(ctx, "pipeline.parse_failed", "pages", len(pages))
	}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if err := os.MkdirAll(p.processedDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: processed dir: %w", err)
	}
	for i, page := range pages {
		imgPath := filepath.Join(p.processedDir, fmt.Sprintf("%s_p%d.jpg", stem, i+1))
		if err := os.WriteFile(imgPath, page, 0o644); err != nil {
			return nil, fmt.Errorf("pipeline: write page image: %w", err)
		}
		written = append(written, imgPath)
	}
	jsonPath := filepath.Join(p.processedDir, stem+".json")
	artifact, err := json.MarshalIndent(ext, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("pipeline: marshal extraction: %w", err)
	}
	if err := os.WriteFile(jsonPath, artifact, 0o644); err != nil {
		return nil, fmt.Errorf("pipeline: write extraction artifact: %w", err)
	}
	written = append(written, jsonPath)

	docID, err := p.store.UpsertDocumentWithActions(documentFrom(ext, filename, jsonPath, len(pages)), actionsFrom(ext))
	if err != nil {
		return nil, fmt.Errorf("pipeline: persist %s: %w", filename, err)
	}
	committed = true

	issueID, err := p.linker.Link(ctx, docID, ext)
	if err != nil {
		return nil, fmt.Errorf("pipeline: link %s: %w", filename, err)
	}

	log.InfoContext(ctx, "pipeline.done",
		"doc_id", docID,
		"doc_type", ext.DocType,
		"pages", len(pages),
		"issue_id", issueID,
		"warnings", len(warnings))

	return &Result{
		DocID:     docID,
		Filename:  filename,
		DocType:   ext.DocType,
		Subject:   ext.Subject,
		PageCount: len(pages),
		IssueID:   issueID,
		Warnings:  warnings,
	}, nil
}

// ProcessDirectory processes every PDF in dir in lexicographic order.
// Failures are recorded per file and do not abort the batch.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string, force bool) ([]Result, []string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	var results []Result
	var failed []string
	for _, path := range matches {
		res, err := p.Process(ctx, path, force)
		if err != nil {
			p.logger.ErrorContext(ctx, "pipeline.file_failed",
				"filename", filepath.Base(path), "error", err)
			failed = append(failed, filepath.Base(path))
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, failed, nil
}

func resultFromStored(d *store.Document) *Result {
	r := &Result{
		DocID:     d.ID,
		Filename:  d.Filename,
		DocType:   d.DocType,
		Subject:   d.Subject,
		PageCount: d.PageCount,
		FromStore: true,
	}
	if d.IssueID != nil {
		r.IssueID = *d.IssueID
	}
	return r
}

func documentFrom(ext llm.Extraction, filename, jsonPath string, pageCount int) store.Document {
	doc := store.Document{
		Filename:       filename,
		DocType:        ext.DocType,
		Sender:         ext.Sender,
		Subject:        ext.Subject,
		Amount:         ext.Amount,
		Urgency:        ext.Urgency,
		LetterType:     ext.LetterType,
		SummaryEN:      ext.SummaryEN,
		Recommendation: ext.RecommendationEN,
		JSONPath:       jsonPath,
		PageCount:      pageCount,
	}
	if ext.DocDate != "" {
		doc.DocDate = &ext.DocDate
	}
	if ext.Deadline != "" {
		doc.Deadline = &ext.Deadline
	}
	return doc
}

func actionsFrom(ext llm.Extraction) []store.NewAction {
	if len(ext.ActionItems) == 0 {
		return nil
	}
	out := make([]store.NewAction, 0, len(ext.ActionItems))
	for _, item := range ext.ActionItems {
		a := store.NewAction{Action: item.Action}
		if item.Deadline != "" {
			d := item.Deadline
			a.Deadline = &d
		}
		out = append(out, a)
	}
	return out
}
