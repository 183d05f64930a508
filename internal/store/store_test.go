package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func sampleDocument(filename string) Document {
	return Document{
		Filename:       filename,
		DocType:        "pflegekasse_letter",
		DocDate:        ptr("2024-02-10"),
		Sender:         "AOK Pflegekasse",
		Subject:        "Pflegegrad 3 Bescheid",
		Amount:         ptr(125.50),
		Deadline:       ptr("2024-03-01"),
		Urgency:        "high",
		LetterType:     "decision",
		SummaryEN:      "Care level 3 was granted.",
		Recommendation: "File the decision.",
		JSONPath:       "/data/processed/bescheid.json",
		PageCount:      2,
	}
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	s := testStore(t)

	id1, err := s.UpsertDocumentWithActions(sampleDocument("bescheid.pdf"), []NewAction{
		{Action: "File the decision", Deadline: ptr("2024-03-01")},
		{Action: "Inform the care service"},
	})
	if err != nil {
		t.Fatalf("UpsertDocumentWithActions: %v", err)
	}

	updated := sampleDocument("bescheid.pdf")
	updated.Urgency = "critical"
	id2, err := s.UpsertDocumentWithActions(updated, []NewAction{
		{Action: "Appeal within four weeks", Deadline: ptr("2024-03-09")},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert created a second row: ids %d, %d", id1, id2)
	}

	doc, err := s.GetDocument(id1)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Urgency != "critical" {
		t.Errorf("urgency = %q, want critical", doc.Urgency)
	}
	if len(doc.Actions) != 1 {
		t.Fatalf("actions = %d, want 1 (wholesale replacement)", len(doc.Actions))
	}
	if doc.Actions[0].Action != "Appeal within four weeks" {
		t.Errorf("action = %q", doc.Actions[0].Action)
	}
}

func TestUpsertPreservesStatusAndIssueLink(t *testing.T) {
	s := testStore(t)

	id, err := s.UpsertDocumentWithActions(sampleDocument("bescheid.pdf"), nil)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	issueID, err := s.CreateIssue(Issue{Title: "AOK Pflegegrad", Urgency: "normal"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if err := s.LinkDocumentToIssue(id, issueID); err != nil {
		t.Fatalf("LinkDocumentToIssue: %v", err)
	}
	if err := s.UpdateDocumentStatus(id, "reviewed"); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}

	if _, err := s.UpsertDocumentWithActions(sampleDocument("bescheid.pdf"), nil); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	doc, err := s.GetDocument(id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Status != "reviewed" {
		t.Errorf("status = %q, want reviewed", doc.Status)
	}
	if doc.IssueID == nil || *doc.IssueID != issueID {
		t.Errorf("issue link lost on re-upsert: %v", doc.IssueID)
	}
}

func TestIsProcessedAndLookupByFilename(t *testing.T) {
	s := testStore(t)

	ok, err := s.IsProcessed("bescheid.pdf")
	if err != nil || ok {
		t.Fatalf("IsProcessed before insert = %v, %v", ok, err)
	}
	if _, err := s.UpsertDocumentWithActions(sampleDocument("bescheid.pdf"), nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ok, err = s.IsProcessed("bescheid.pdf")
	if err != nil || !ok {
		t.Fatalf("IsProcessed after insert = %v, %v", ok, err)
	}

	doc, err := s.GetDocumentByFilename("bescheid.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByFilename: %v", err)
	}
	if doc == nil || doc.Sender != "AOK Pflegekasse" {
		t.Errorf("unexpected document: %+v", doc)
	}

	missing, err := s.GetDocumentByFilename("nope.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup missing: err = %v, want ErrNotFound", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown filename, got %+v", missing)
	}

	if _, err := s.GetDocument(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument(9999): err = %v, want ErrNotFound", err)
	}
}

func TestDeleteDocumentCascadesToActionsOnly(t *testing.T) {
	s := testStore(t)

	id, err := s.UpsertDocumentWithActions(sampleDocument("bescheid.pdf"), []NewAction{
		{Action: "File the decision"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	issueID, err := s.CreateIssue(Issue{Title: "AOK Pflegegrad", Urgency: "normal"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if err := s.LinkDocumentToIssue(id, issueID); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := s.DeleteDocument(id); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM action_items`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("orphaned actions: %d", count)
	}
	issues, err := s.ListIssues()
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("issue was deleted with its document")
	}
}

func TestSetActionDoneStampsTimestamp(t *testing.T) {
	s := testStore(t)

	id, err := s.UpsertDocumentWithActions(sampleDocument("bescheid.pdf"), []NewAction{
		{Action: "File the decision"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	doc, _ := s.GetDocument(id)
	actionID := doc.Actions[0].ID

	if err := s.SetActionDone(actionID, true, "filed in binder"); err != nil {
		t.Fatalf("SetActionDone: %v", err)
	}
	doc, _ = s.GetDocument(id)
	if !doc.Actions[0].Done || doc.Actions[0].DoneAt == nil {
		t.Errorf("done action missing timestamp: %+v", doc.Actions[0])
	}
	if doc.Actions[0].Notes != "filed in binder" {
		t.Errorf("notes = %q", doc.Actions[0].Notes)
	}

	if err := s.SetActionDone(actionID, false, ""); err != nil {
		t.Fatalf("undo: %v", err)
	}
	doc, _ = s.GetDocument(id)
	if doc.Actions[0].Done || doc.Actions[0].DoneAt != nil {
		t.Errorf("undone action kept timestamp: %+v", doc.Actions[0])
	}
	if doc.Actions[0].Notes != "filed in binder" {
		t.Errorf("empty notes overwrote stored notes: %q", doc.Actions[0].Notes)
	}
}

func TestLinkRecomputesDerivedFields(t *testing.T) {
	s := testStore(t)

	issueID, err := s.CreateIssue(Issue{Title: "AOK Pflegegrad", Urgency: "low"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	first := sampleDocument("a.pdf")
	first.DocDate = ptr("2024-01-01")
	first.Deadline = ptr("2024-02-01")
	first.Urgency = "normal"
	second := sampleDocument("b.pdf")
	second.DocDate = ptr("2024-03-15")
	second.Deadline = ptr("2024-04-01")
	second.Urgency = "critical"
	third := sampleDocument("c.pdf")
	third.DocDate = ptr("2024-02-10")
	third.Deadline = nil
	third.Urgency = "high"

	for _, d := range []Document{first, second, third} {
		id, err := s.UpsertDocumentWithActions(d, nil)
		if err != nil {
			t.Fatalf("upsert %s: %v", d.Filename, err)
		}
		if err := s.LinkDocumentToIssue(id, issueID); err != nil {
			t.Fatalf("link %s: %v", d.Filename, err)
		}
	}

	issues, err := s.ListIssues()
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	issue := issues[0]
	if issue.FirstSeen == nil || *issue.FirstSeen != "2024-01-01" {
		t.Errorf("first_seen = %v, want 2024-01-01", issue.FirstSeen)
	}
	if issue.LatestDate == nil || *issue.LatestDate != "2024-03-15" {
		t.Errorf("latest_date = %v, want 2024-03-15", issue.LatestDate)
	}
	if issue.LatestDeadline == nil || *issue.LatestDeadline != "2024-04-01" {
		t.Errorf("latest_deadline = %v, want 2024-04-01", issue.LatestDeadline)
	}
	if issue.Urgency != "critical" {
		t.Errorf("urgency = %q, want critical", issue.Urgency)
	}
	if issue.DocCount != 3 {
		t.Errorf("doc_count = %d, want 3", issue.DocCount)
	}
}

func TestReassignRecomputesBothIssues(t *testing.T) {
	s := testStore(t)

	a, _ := s.CreateIssue(Issue{Title: "Issue A", Urgency: "normal"})
	b, _ := s.CreateIssue(Issue{Title: "Issue B", Urgency: "normal"})

	doc := sampleDocument("a.pdf")
	doc.Urgency = "critical"
	doc.DocDate = ptr("2024-01-01")
	id, err := s.UpsertDocumentWithActions(doc, nil)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.LinkDocumentToIssue(id, a); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := s.ReassignDocumentIssue(id, &b); err != nil {
		t.Fatalf("ReassignDocumentIssue: %v", err)
	}

	issues, err := s.ListIssues()
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	byTitle := map[string]Issue{}
	for _, it := range issues {
		byTitle[it.Title] = it
	}
	if got := byTitle["Issue A"].DocCount; got != 0 {
		t.Errorf("old issue doc_count = %d, want 0", got)
	}
	if got := byTitle["Issue B"].Urgency; got != "critical" {
		t.Errorf("new issue urgency = %q, want critical", got)
	}
	if byTitle["Issue B"].FirstSeen == nil || *byTitle["Issue B"].FirstSeen != "2024-01-01" {
		t.Errorf("new issue first_seen = %v", byTitle["Issue B"].FirstSeen)
	}
}

func TestIssuesForLinkingExcludesResolved(t *testing.T) {
	s := testStore(t)

	open, _ := s.CreateIssue(Issue{Title: "Open issue", Urgency: "normal"})
	resolved, _ := s.CreateIssue(Issue{Title: "Resolved issue", Urgency: "normal"})
	if err := s.UpdateIssueStatus(resolved, "resolved"); err != nil {
		t.Fatalf("UpdateIssueStatus: %v", err)
	}

	overviews, err := s.IssuesForLinking()
	if err != nil {
		t.Fatalf("IssuesForLinking: %v", err)
	}
	if len(overviews) != 1 || overviews[0].ID != open {
		t.Errorf("overviews = %+v, want only the open issue", overviews)
	}
}

func TestListActionsOrdering(t *testing.T) {
	s := testStore(t)

	lowDoc := sampleDocument("low.pdf")
	lowDoc.Urgency = "low"
	lowID, _ := s.UpsertDocumentWithActions(lowDoc, []NewAction{
		{Action: "low doc action", Deadline: ptr("2024-01-01")},
	})
	criticalDoc := sampleDocument("critical.pdf")
	criticalDoc.Urgency = "critical"
	_, err := s.UpsertDocumentWithActions(criticalDoc, []NewAction{
		{Action: "no deadline"},
		{Action: "early deadline", Deadline: ptr("2024-01-05")},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := s.ListActions(false)
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	// Critical-urgency document first, within it deadline before NULL.
	if rows[0].Action != "early deadline" || rows[1].Action != "no deadline" || rows[2].Action != "low doc action" {
		t.Errorf("order = %q, %q, %q", rows[0].Action, rows[1].Action, rows[2].Action)
	}

	doc, _ := s.GetDocument(lowID)
	if err := s.SetActionDone(doc.Actions[0].ID, true, ""); err != nil {
		t.Fatalf("SetActionDone: %v", err)
	}
	pending, err := s.ListActions(true)
	if err != nil {
		t.Fatalf("ListActions pending: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}
}

func TestPersonalTaskLifecycle(t *testing.T) {
	s := testStore(t)

	id, err := s.AddPersonalTask("Call the Pflegekasse", ptr("2024-05-01"))
	if err != nil {
		t.Fatalf("AddPersonalTask: %v", err)
	}
	if _, err := s.AddPersonalTask("Sort receipts", nil); err != nil {
		t.Fatalf("AddPersonalTask: %v", err)
	}

	tasks, err := s.ListPersonalTasks(false)
	if err != nil {
		t.Fatalf("ListPersonalTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	if tasks[0].ID != id {
		t.Errorf("task with deadline should sort before the one without")
	}

	if err := s.SetPersonalTaskDone(id, true); err != nil {
		t.Fatalf("SetPersonalTaskDone: %v", err)
	}
	pending, err := s.ListPersonalTasks(true)
	if err != nil {
		t.Fatalf("pending list: %v", err)
	}
	if len(pending) != 1 || pending[0].Task != "Sort receipts" {
		t.Errorf("pending = %+v", pending)
	}

	if err := s.DeletePersonalTask(id); err != nil {
		t.Fatalf("DeletePersonalTask: %v", err)
	}
	tasks, _ = s.ListPersonalTasks(false)
	if len(tasks) != 1 {
		t.Errorf("tasks after delete = %d, want 1", len(tasks))
	}
}
