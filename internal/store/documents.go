package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Document represents a processed input file.
type Document struct {
	ID             int64
	Filename       string
	ProcessedAt    string
	DocType        string
	DocDate        *string
	Sender         string
	Subject        string
	Amount         *float64
	Deadline       *string
	Urgency        string
	LetterType     string
	SummaryEN      string
	Recommendation string
	JSONPath       string
	PageCount      int
	Status         string
	IssueID        *int64
	IssueTitle     string
	Actions        []Action
}

// Action is a follow-up item owned by a document.
type Action struct {
	ID       int64
	DocID    int64
	Action   string
	Deadline *string
	Done     bool
	DoneAt   *string
	Notes    string
}

// NewAction is an action item as produced by extraction, before it has
// a row identity.
type NewAction struct {
	Action   string
	Deadline *string
}

// DocumentFilter narrows ListDocuments. Zero values match everything.
type DocumentFilter struct {
	DocType string
	Urgency string
	Status  string
}

// IsProcessed reports whether a document with this filename is already
// stored.
func (s *Store) IsProcessed(filename string) (bool, error) {
	var one int
	err := s.conn.QueryRow(`SELECT 1 FROM documents WHERE filename = ?`, filename).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: is processed: %w", err)
	}
	return true, nil
}

// UpsertDocumentWithActions inserts or updates a document by filename
// and replaces its action items wholesale, all in one transaction.
// The document's id is returned. On update the existing issue link and
// workflow status are preserved.
func (s *Store) UpsertDocumentWithActions(doc Document, actions []NewAction) (int64, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var docID int64
	err = tx.QueryRow(`SELECT id FROM documents WHERE filename = ?`, doc.Filename).Scan(&docID)
	switch {
	case err == nil:
		_, err = tx.Exec(`
			UPDATE documents SET
				processed_at=?, doc_type=?, doc_date=?, sender=?, subject=?,
				amount=?, deadline=?, urgency=?, letter_type=?, summary_en=?,
				recommendation=?, json_path=?, page_count=?
			WHERE id=?`,
			nowUTC(), doc.DocType, derefOrNil(doc.DocDate), doc.Sender, doc.Subject,
			derefOrNil(doc.Amount), derefOrNil(doc.Deadline), doc.Urgency, doc.LetterType,
			doc.SummaryEN, doc.Recommendation, doc.JSONPath, doc.PageCount, docID)
		if err != nil {
			return 0, fmt.Errorf("store: update document: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM action_items WHERE doc_id = ?`, docID); err != nil {
			return 0, fmt.Errorf("store: clear actions: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.Exec(`
			INSERT INTO documents
				(filename, processed_at, doc_type, doc_date, sender, subject,
				 amount, deadline, urgency, letter_type, summary_en, recommendation,
				 json_path, page_count, status, issue_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'new', ?)`,
			doc.Filename, nowUTC(), doc.DocType, derefOrNil(doc.DocDate), doc.Sender,
			doc.Subject, derefOrNil(doc.Amount), derefOrNil(doc.Deadline), doc.Urgency,
			doc.LetterType, doc.SummaryEN, doc.Recommendation, doc.JSONPath,
			doc.PageCount, derefOrNil(doc.IssueID))
		if err != nil {
			return 0, fmt.Errorf("store: insert document: %w", err)
		}
		docID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("store: document id: %w", err)
		}
	default:
		return 0, fmt.Errorf("store: lookup document: %w", err)
	}

	if len(actions) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO action_items (doc_id, action_text, deadline) VALUES (?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("store: prepare action insert: %w", err)
		}
		defer stmt.Close()
		for _, a := range actions {
			if _, err := stmt.Exec(docID, a.Action, derefOrNil(a.Deadline)); err != nil {
				return 0, fmt.Errorf("store: insert action: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return docID, nil
}

const documentColumns = `
	d.id, d.filename, d.processed_at, d.doc_type, d.doc_date, d.sender,
	d.subject, d.amount, d.deadline, d.urgency, d.letter_type,
	d.summary_en, d.recommendation, d.json_path, d.page_count, d.status,
	d.issue_id, i.title
`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	var docType, docDate, sender, subject, deadline, urgency sql.NullString
	var letterType, summary, rec, jsonPath, issueTitle sql.NullString
	var amount sql.NullFloat64
	var issueID sql.NullInt64
	err := row.Scan(&d.ID, &d.Filename, &d.ProcessedAt, &docType, &docDate, &sender,
		&subject, &amount, &deadline, &urgency, &letterType,
		&summary, &rec, &jsonPath, &d.PageCount, &d.Status,
		&issueID, &issueTitle)
	if err != nil {
		return Document{}, err
	}
	d.DocType = strOrEmpty(docType)
	d.DocDate = strPtr(docDate)
	d.Sender = strOrEmpty(sender)
	d.Subject = strOrEmpty(subject)
	d.Amount = floatPtr(amount)
	d.Deadline = strPtr(deadline)
	d.Urgency = strOrEmpty(urgency)
	d.LetterType = strOrEmpty(letterType)
	d.SummaryEN = strOrEmpty(summary)
	d.Recommendation = strOrEmpty(rec)
	d.JSONPath = strOrEmpty(jsonPath)
	d.IssueID = int64Ptr(issueID)
	d.IssueTitle = strOrEmpty(issueTitle)
	return d, nil
}

// GetDocument returns one document with its action items, or
// ErrNotFound when no such row exists.
func (s *Store) GetDocument(id int64) (*Document, error) {
	row := s.conn.QueryRow(`
		SELECT `+documentColumns+`
		FROM documents d
		LEFT JOIN issues i ON d.issue_id = i.id
		WHERE d.id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: document %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	actions, err := s.actionsForDocument(d.ID)
	if err != nil {
		return nil, err
	}
	d.Actions = actions
	return &d, nil
}

// GetDocumentByFilename returns the document stored under filename, or
// ErrNotFound when none exists.
func (s *Store) GetDocumentByFilename(filename string) (*Document, error) {
	var id int64
	err := s.conn.QueryRow(`SELECT id FROM documents WHERE filename = ?`, filename).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: document %q: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup by filename: %w", err)
	}
	return s.GetDocument(id)
}

func (s *Store) actionsForDocument(docID int64) ([]Action, error) {
	rows, err := s.conn.Query(`
		SELECT id, doc_id, action_text, deadline, done, done_at, notes
		FROM action_items WHERE doc_id = ? ORDER BY id`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: document actions: %w", err)
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		var deadline, doneAt, notes sql.NullString
		var done int
		if err := rows.Scan(&a.ID, &a.DocID, &a.Action, &deadline, &done, &doneAt, &notes); err != nil {
			return nil, err
		}
		a.Deadline = strPtr(deadline)
		a.Done = done != 0
		a.DoneAt = strPtr(doneAt)
		a.Notes = strOrEmpty(notes)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and its action items. The owning
// issue, if any, is left intact.
func (s *Store) DeleteDocument(id int64) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM action_items WHERE doc_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete actions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	return tx.Commit()
}

// UpdateDocumentStatus sets the workflow status of a document.
func (s *Store) UpdateDocumentStatus(id int64, status string) error {
	_, err := s.conn.Exec(`UPDATE documents SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	return nil
}

// SetActionDone flips the completion flag of an action item. The
// completion timestamp is set exactly when done is true; non-empty
// notes replace the stored notes.
func (s *Store) SetActionDone(actionID int64, done bool, notes string) error {
	var doneAt any
	if done {
		doneAt = nowUTC()
	}
	doneInt := 0
	if done {
		doneInt = 1
	}
	_, err := s.conn.Exec(`
		UPDATE action_items
		SET done = ?, done_at = ?, notes = COALESCE(NULLIF(?, ''), notes)
		WHERE id = ?`, doneInt, doneAt, notes, actionID)
	if err != nil {
		return fmt.Errorf("store: set action done: %w", err)
	}
	return nil
}

// ListDocuments returns documents matching the filter, most recent
// first.
func (s *Store) ListDocuments(f DocumentFilter) ([]Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents d
		LEFT JOIN issues i ON d.issue_id = i.id
		WHERE 1=1`
	var params []any
	if f.DocType != "" {
		query += " AND d.doc_type = ?"
		params = append(params, f.DocType)
	}
	if f.Urgency != "" {
		query += " AND d.urgency = ?"
		params = append(params, f.Urgency)
	}
	if f.Status != "" {
		query += " AND d.status = ?"
		params = append(params, f.Status)
	}
	query += " ORDER BY d.doc_date DESC, d.processed_at DESC"

	rows, err := s.conn.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ActionRow is an action item joined with its owning document, for
// dashboard views.
type ActionRow struct {
	ID         int64
	Action     string
	Deadline   *string
	Done       bool
	DoneAt     *string
	Notes      string
	DocID      int64
	Filename   string
	Sender     string
	Subject    string
	DocDate    *string
	DocUrgency string
	IssueTitle string
}

// ListActions returns action items with document context, ordered by
// completion, then document urgency (critical first), then deadline
// with absent deadlines last, then id.
func (s *Store) ListActions(pendingOnly bool) ([]ActionRow, error) {
	query := `
		SELECT a.id, a.action_text, a.deadline, a.done, a.done_at, a.notes,
		       d.id, d.filename, d.sender, d.subject, d.doc_date, d.urgency,
		       i.title
		FROM action_items a
		JOIN documents d ON a.doc_id = d.id
		LEFT JOIN issues i ON d.issue_id = i.id`
	if pendingOnly {
		query += " WHERE a.done = 0"
	}
	query += `
		ORDER BY
			a.done ASC,
			CASE d.urgency
				WHEN 'critical' THEN 0 WHEN 'high' THEN 1
				WHEN 'normal' THEN 2 WHEN 'low' THEN 3
			END,
			a.deadline ASC NULLS LAST,
			a.id ASC`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("store: list actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRow
	for rows.Next() {
		var r ActionRow
		var deadline, doneAt, notes, sender, subject, docDate, urgency, issueTitle sql.NullString
		var done int
		err := rows.Scan(&r.ID, &r.Action, &deadline, &done, &doneAt, &notes,
			&r.DocID, &r.Filename, &sender, &subject, &docDate, &urgency, &issueTitle)
		if err != nil {
			return nil, err
		}
		r.Deadline = strPtr(deadline)
		r.Done = done != 0
		r.DoneAt = strPtr(doneAt)
		r.Notes = strOrEmpty(notes)
		r.Sender = strOrEmpty(sender)
		r.Subject = strOrEmpty(subject)
		r.DocDate = strPtr(docDate)
		r.DocUrgency = strOrEmpty(urgency)
		r.IssueTitle = strOrEmpty(issueTitle)
		out = append(out, r)
	}
	return out, rows.Err()
}
