// Package linker assigns each processed document to an issue, either an
// existing one (by reference match or model judgement) or a fresh one.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkessler/pflegedocs/internal/llm"
	"github.com/mkessler/pflegedocs/internal/store"
)

// Store is the subset of persistence operations the linker needs.
type Store interface {
	IssuesForLinking() ([]store.IssueOverview, error)
	CreateIssue(issue store.Issue) (int64, error)
	LinkDocumentToIssue(docID, issueID int64) error
}

// MinConfidence is the default acceptance threshold for model-assisted
// matches.
const MinConfidence = 0.6

type Linker struct {
	store         Store
	matcher       llm.IssueMatcher
	minConfidence float64
	logger        *slog.Logger
}

func New(st Store, matcher llm.IssueMatcher, minConfidence float64, logger *slog.Logger) *Linker {
	if minConfidence <= 0 {
		minConfidence = MinConfidence
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{store: st, matcher: matcher, minConfidence: minConfidence, logger: logger}
}

// Link attaches the document to exactly one issue and returns its id.
// A model-call failure degrades to creating a new issue; it never fails
// the caller.
func (l *Linker) Link(ctx context.Context, docID int64, doc llm.Extraction) (int64, error) {
	candidates, err := l.store.IssuesForLinking()
	if err != nil {
		return 0, fmt.Errorf("linker: load candidates: %w", err)
	}

	if issueID, ok := l.fastMatch(doc, candidates); ok {
		l.logger.InfoContext(ctx, "linker.fast_match", "doc_id", docID, "issue_id", issueID)
		return issueID, l.store.LinkDocumentToIssue(docID, issueID)
	}

	if len(candidates) > 0 && l.matcher != nil {
		if issueID, ok := l.modelMatch(ctx, doc, candidates); ok {
			l.logger.InfoContext(ctx, "linker.model_match", "doc_id", docID, "issue_id", issueID)
			return issueID, l.store.LinkDocumentToIssue(docID, issueID)
		}
	}

	issueID, err := l.createIssue(doc)
	if err != nil {
		return 0, fmt.Errorf("linker: create issue: %w", err)
	}
	l.logger.InfoContext(ctx, "linker.new_issue", "doc_id", docID, "issue_id", issueID)
	return issueID, l.store.LinkDocumentToIssue(docID, issueID)
}

// fastMatch links without a model call when sender and one reference
// number both match an existing issue exactly.
func (l *Linker) fastMatch(doc llm.Extraction, candidates []store.IssueOverview) (int64, bool) {
	sender := normalize(doc.Sender)
	if sender == "" {
		return 0, false
	}
	for _, c := range candidates {
		if normalize(c.Sender) != sender || c.RefNumber == "" {
			continue
		}
		for _, ref := range doc.ReferenceNumbers {
			if ref == c.RefNumber {
				return c.ID, true
			}
		}
	}
	return 0, false
}

func (l *Linker) modelMatch(ctx context.Context, doc llm.Extraction, candidates []store.IssueOverview) (int64, bool) {
	summaries := make([]llm.IssueSummary, 0, len(candidates))
	valid := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		valid[c.ID] = true
		summaries = append(summaries, llm.IssueSummary{
			ID:         c.ID,
			Title:      c.Title,
			Sender:     c.Sender,
			RefNumber:  c.RefNumber,
			Category:   c.Category,
			FirstSeen:  deref(c.FirstSeen),
			LatestDate: deref(c.LatestDate),
			Status:     c.Status,
			DocCount:   c.DocCount,
		})
	}

	raw, err := l.matcher.LinkIssues(ctx, llm.BuildLinkPrompt(doc, summaries))
	if err != nil {
		l.logger.WarnContext(ctx, "linker.model_call_failed", "error", err)
		return 0, false
	}
	decision := llm.ParseLinkResponse(raw)
	if decision.IssueID == nil {
		return 0, false
	}
	if decision.Confidence < l.minConfidence {
		l.logger.InfoContext(ctx, "linker.low_confidence",
			"issue_id", *decision.IssueID,
			"confidence", decision.Confidence,
			"reason", decision.Reason)
		return 0, false
	}
	if !valid[*decision.IssueID] {
		l.logger.WarnContext(ctx, "linker.unknown_issue_id", "issue_id", *decision.IssueID)
		return 0, false
	}
	return *decision.IssueID, true
}

// createIssue seeds a new issue from the document's own metadata.
func (l *Linker) createIssue(doc llm.Extraction) (int64, error) {
	issue := store.Issue{
		Title:    issueTitle(doc),
		Sender:   doc.Sender,
		Category: doc.DocType,
		Urgency:  doc.Urgency,
	}
	if len(doc.ReferenceNumbers) > 0 {
		issue.RefNumber = doc.ReferenceNumbers[0]
	}
	if doc.DocDate != "" {
		issue.FirstSeen = &doc.DocDate
		issue.LatestDate = &doc.DocDate
	}
	if doc.Deadline != "" {
		issue.LatestDeadline = &doc.Deadline
	}
	return l.store.CreateIssue(issue)
}

func issueTitle(doc llm.Extraction) string {
	sender := strings.TrimSpace(doc.Sender)
	subject := strings.TrimSpace(doc.Subject)
	switch {
	case sender != "" && subject != "":
		return sender + ": " + subject
	case subject != "":
		return subject
	case sender != "":
		return sender
	default:
		return "Untitled matter"
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
