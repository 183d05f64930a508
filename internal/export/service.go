// Package export produces XLSX workbooks from the document store.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mkessler/pflegedocs/internal/store"
)

// Store is the subset of persistence reads the exporter needs.
type Store interface {
	ListDocuments(f store.DocumentFilter) ([]store.Document, error)
	ListActions(pendingOnly bool) ([]store.ActionRow, error)
	ListIssues() ([]store.Issue, error)
}

// Service produces XLSX bytes with Documents, Actions and Issues sheets.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(st Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// ExportXLSX returns a workbook with one sheet each for documents,
// action items and issues.
func (s *Service) ExportXLSX() ([]byte, error) {
	start := time.Now()

	docs, err := s.store.ListDocuments(store.DocumentFilter{})
	if err != nil {
		return nil, fmt.Errorf("export: query documents: %w", err)
	}
	actions, err := s.store.ListActions(false)
	if err != nil {
		return nil, fmt.Errorf("export: query actions: %w", err)
	}
	issues, err := s.store.ListIssues()
	if err != nil {
		return nil, fmt.Errorf("export: query issues: %w", err)
	}

	f := excelize.NewFile()

	if err := s.writeDocuments(f, docs); err != nil {
		return nil, err
	}
	if err := s.writeActions(f, actions); err != nil {
		return nil, err
	}
	if err := s.writeIssues(f, issues); err != nil {
		return nil, err
	}

	// The default sheet excelize creates is replaced by Documents.
	if idx, _ := f.GetSheetIndex("Documents"); idx >= 0 {
		f.SetActiveSheet(idx)
	}
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(docs),
		"actions", len(actions),
		"issues", len(issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func newSheet(f *excelize.File, name string, headers []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("export: new sheet %s: %w", name, err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return fmt.Errorf("export: header %s: %w", name, err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func (s *Service) writeDocuments(f *excelize.File, docs []store.Document) error {
	const sheet = "Documents"
	err := newSheet(f, sheet, []string{
		"Filename", "Date", "Type", "Sender", "Subject", "Amount",
		"Deadline", "Urgency", "Letter Type", "Summary", "Status", "Issue",
	})
	if err != nil {
		return err
	}
	for i, d := range docs {
		writeRow(f, sheet, i+2, []any{
			d.Filename, strVal(d.DocDate), d.DocType, d.Sender, d.Subject,
			floatVal(d.Amount), strVal(d.Deadline), d.Urgency, d.LetterType,
			d.SummaryEN, d.Status, d.IssueTitle,
		})
	}
	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "D", "E", 28)
	_ = f.SetColWidth(sheet, "J", "J", 60)
	return nil
}

func (s *Service) writeActions(f *excelize.File, actions []store.ActionRow) error {
	const sheet = "Actions"
	err := newSheet(f, sheet, []string{
		"Action", "Deadline", "Done", "Done At", "Document", "Sender", "Subject", "Issue",
	})
	if err != nil {
		return err
	}
	for i, a := range actions {
		writeRow(f, sheet, i+2, []any{
			a.Action, strVal(a.Deadline), a.Done, strVal(a.DoneAt),
			a.Filename, a.Sender, a.Subject, a.IssueTitle,
		})
	}
	_ = f.SetColWidth(sheet, "A", "A", 48)
	_ = f.SetColWidth(sheet, "E", "H", 24)
	return nil
}

func (s *Service) writeIssues(f *excelize.File, issues []store.Issue) error {
	const sheet = "Issues"
	err := newSheet(f, sheet, []string{
		"Title", "Sender", "Reference", "Category", "Status",
		"First Seen", "Latest Date", "Latest Deadline", "Urgency", "Documents",
	})
	if err != nil {
		return err
	}
	for i, it := range issues {
		writeRow(f, sheet, i+2, []any{
			it.Title, it.Sender, it.RefNumber, it.Category, it.Status,
			strVal(it.FirstSeen), strVal(it.LatestDate), strVal(it.LatestDeadline),
			it.Urgency, it.DocCount,
		})
	}
	_ = f.SetColWidth(sheet, "A", "B", 32)
	return nil
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func floatVal(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}
