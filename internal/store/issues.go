package store

import (
	"database/sql"
	"fmt"
)

// Issue clusters documents concerning the same real-world matter.
type Issue struct {
	ID             int64
	Title          string
	Sender         string
	RefNumber      string
	Category       string
	Status         string
	FirstSeen      *string
	LatestDate     *string
	LatestDeadline *string
	Urgency        string
	Notes          string
	DocCount       int
	NewDocs        int
}

// IssueOverview is the compact issue summary handed to the linking
// model.
type IssueOverview struct {
	ID         int64
	Title      string
	Sender     string
	RefNumber  string
	Category   string
	FirstSeen  *string
	LatestDate *string
	Status     string
	DocCount   int
}

// CreateIssue inserts a new open issue and returns its id.
func (s *Store) CreateIssue(issue Issue) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO issues
			(title, sender, ref_number, category, status,
			 first_seen, latest_date, latest_deadline, urgency)
		VALUES (?, ?, ?, ?, 'open', ?, ?, ?, ?)`,
		issue.Title, nullStr(issue.Sender), nullStr(issue.RefNumber),
		nullStr(issue.Category), derefOrNil(issue.FirstSeen),
		derefOrNil(issue.LatestDate), derefOrNil(issue.LatestDeadline),
		issue.Urgency)
	if err != nil {
		return 0, fmt.Errorf("store: create issue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: issue id: %w", err)
	}
	return id, nil
}

// issueRecomputeSQL refreshes the derived fields of an issue from all
// currently linked documents. Urgency is the most severe among them
// (critical > high > normal > low).
const issueRecomputeSQL = `
	UPDATE issues SET
		first_seen = (SELECT MIN(doc_date) FROM documents WHERE issue_id = ?1 AND doc_date IS NOT NULL),
		latest_date = (SELECT MAX(doc_date) FROM documents WHERE issue_id = ?1 AND doc_date IS NOT NULL),
		latest_deadline = (SELECT MAX(deadline) FROM documents WHERE issue_id = ?1 AND deadline IS NOT NULL),
		urgency = COALESCE((
			SELECT CASE MIN(CASE urgency
					WHEN 'critical' THEN 0 WHEN 'high' THEN 1
					WHEN 'normal' THEN 2 WHEN 'low' THEN 3
				END)
				WHEN 0 THEN 'critical' WHEN 1 THEN 'high'
				WHEN 2 THEN 'normal' WHEN 3 THEN 'low'
			END
			FROM documents WHERE issue_id = ?1
		), urgency)
	WHERE id = ?1`

// LinkDocumentToIssue attaches a document to an issue and recomputes
// the issue's derived fields in the same transaction.
func (s *Store) LinkDocumentToIssue(docID, issueID int64) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`UPDATE documents SET issue_id = ? WHERE id = ?`, issueID, docID); err != nil {
		return fmt.Errorf("store: link document: %w", err)
	}
	if _, err := tx.Exec(issueRecomputeSQL, issueID); err != nil {
		return fmt.Errorf("store: recompute issue: %w", err)
	}
	return tx.Commit()
}

// ReassignDocumentIssue moves a document to a different issue, or
// unlinks it when newIssueID is nil. Derived fields of both the old
// and the new issue are recomputed.
func (s *Store) ReassignDocumentIssue(docID int64, newIssueID *int64) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var oldIssueID sql.NullInt64
	if err := tx.QueryRow(`SELECT issue_id FROM documents WHERE id = ?`, docID).Scan(&oldIssueID); err != nil {
		return fmt.Errorf("store: lookup document issue: %w", err)
	}
	if _, err := tx.Exec(`UPDATE documents SET issue_id = ? WHERE id = ?`, derefOrNil(newIssueID), docID); err != nil {
		return fmt.Errorf("store: reassign document: %w", err)
	}
	if oldIssueID.Valid {
		if _, err := tx.Exec(issueRecomputeSQL, oldIssueID.Int64); err != nil {
			return fmt.Errorf("store: recompute old issue: %w", err)
		}
	}
	if newIssueID != nil {
		if _, err := tx.Exec(issueRecomputeSQL, *newIssueID); err != nil {
			return fmt.Errorf("store: recompute new issue: %w", err)
		}
	}
	return tx.Commit()
}

// UpdateIssueStatus sets the status of an issue.
func (s *Store) UpdateIssueStatus(issueID int64, status string) error {
	_, err := s.conn.Exec(`UPDATE issues SET status = ? WHERE id = ?`, status, issueID)
	if err != nil {
		return fmt.Errorf("store: update issue status: %w", err)
	}
	return nil
}

// IssuesForLinking returns unresolved issues with document counts,
// newest activity first.
func (s *Store) IssuesForLinking() ([]IssueOverview, error) {
	rows, err := s.conn.Query(`
		SELECT i.id, i.title, i.sender, i.ref_number, i.category,
		       i.first_seen, i.latest_date, i.status,
		       COUNT(d.id) AS doc_count
		FROM issues i
		LEFT JOIN documents d ON d.issue_id = i.id
		WHERE i.status != 'resolved'
		GROUP BY i.id
		ORDER BY i.latest_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: issues for linking: %w", err)
	}
	defer rows.Close()

	var out []IssueOverview
	for rows.Next() {
		var o IssueOverview
		var sender, ref, category, firstSeen, latestDate sql.NullString
		err := rows.Scan(&o.ID, &o.Title, &sender, &ref, &category,
			&firstSeen, &latestDate, &o.Status, &o.DocCount)
		if err != nil {
			return nil, err
		}
		o.Sender = strOrEmpty(sender)
		o.RefNumber = strOrEmpty(ref)
		o.Category = strOrEmpty(category)
		o.FirstSeen = strPtr(firstSeen)
		o.LatestDate = strPtr(latestDate)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListIssues returns all issues with document counts, most urgent
// first, then earliest deadline.
func (s *Store) ListIssues() ([]Issue, error) {
	rows, err := s.conn.Query(`
		SELECT i.id, i.title, i.sender, i.ref_number, i.category, i.status,
		       i.first_seen, i.latest_date, i.latest_deadline, i.urgency, i.notes,
		       COUNT(d.id) AS doc_count,
		       SUM(CASE WHEN d.status = 'new' THEN 1 ELSE 0 END) AS new_docs
		FROM issues i
		LEFT JOIN documents d ON d.issue_id = i.id
		GROUP BY i.id
		ORDER BY
			CASE i.urgency
				WHEN 'critical' THEN 0 WHEN 'high' THEN 1
				WHEN 'normal' THEN 2 WHEN 'low' THEN 3
			END,
			i.latest_deadline ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list issues: %w", err)
	}
	defer rows.Close()

	var out []Issue
	for rows.Next() {
		var it Issue
		var sender, ref, category, firstSeen, latestDate, latestDeadline, urgency, notes sql.NullString
		var newDocs sql.NullInt64
		err := rows.Scan(&it.ID, &it.Title, &sender, &ref, &category, &it.Status,
			&firstSeen, &latestDate, &latestDeadline, &urgency, &notes,
			&it.DocCount, &newDocs)
		if err != nil {
			return nil, err
		}
		it.Sender = strOrEmpty(sender)
		it.RefNumber = strOrEmpty(ref)
		it.Category = strOrEmpty(category)
		it.FirstSeen = strPtr(firstSeen)
		it.LatestDate = strPtr(latestDate)
		it.LatestDeadline = strPtr(latestDeadline)
		it.Urgency = strOrEmpty(urgency)
		it.Notes = strOrEmpty(notes)
		if newDocs.Valid {
			it.NewDocs = int(newDocs.Int64)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// IssueTimeline returns the documents linked to an issue in
// chronological order.
func (s *Store) IssueTimeline(issueID int64) ([]Document, error) {
	rows, err := s.conn.Query(`
		SELECT `+documentColumns+`
		FROM documents d
		LEFT JOIN issues i ON d.issue_id = i.id
		WHERE d.issue_id = ?
		ORDER BY d.doc_date ASC, d.processed_at ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("store: issue timeline: %w", err)
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
