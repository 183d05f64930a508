package constants

// DocStatus is the workflow status of a processed document.
type DocStatus string

// Stable values (store these exact strings in the DB).
const (
	DocStatusNew      DocStatus = "new"
	DocStatusReviewed DocStatus = "reviewed"
	DocStatusActioned DocStatus = "actioned"
	DocStatusArchived DocStatus = "archived"
)

// IssueStatus is the lifecycle status of an issue.
type IssueStatus string

const (
	IssueStatusOpen      IssueStatus = "open"
	IssueStatusResolved  IssueStatus = "resolved"
	IssueStatusEscalated IssueStatus = "escalated"
)

// IsDocStatus reports whether s is a known document status.
func IsDocStatus(s string) bool {
	switch DocStatus(s) {
	case DocStatusNew, DocStatusReviewed, DocStatusActioned, DocStatusArchived:
		return true
	}
	return false
}

// IsIssueStatus reports whether s is a known issue status.
func IsIssueStatus(s string) bool {
	switch IssueStatus(s) {
	case IssueStatusOpen, IssueStatusResolved, IssueStatusEscalated:
		return true
	}
	return false
}
