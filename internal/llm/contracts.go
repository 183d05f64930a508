package llm

import "context"

// PageResult is the outcome of extracting one page image: either a raw
// field map recovered from the model response, or a parse failure carrying
// the original text for diagnostics. Never both.
type PageResult struct {
	Fields      map[string]any
	ParseFailed bool
	Raw         string
}

// ActionItem is one actionable follow-up extracted from a document.
type ActionItem struct {
	Action   string `json:"action"`
	Deadline string `json:"deadline,omitempty"` // YYYY-MM-DD
}

// AmountDetail is one labeled line amount from the document.
type AmountDetail struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Extraction is the cleaned, typed record for one logical document, the
// validator's output. Every field is optional on the wire; absent values
// are zero here. When ParseFailed is set the scalar fields are empty and
// Raw holds the model's unparseable response.
type Extraction struct {
	DocType          string         `json:"doc_type,omitempty"`
	DocDate          string         `json:"doc_date,omitempty"` // YYYY-MM-DD
	Sender           string         `json:"sender,omitempty"`
	Subject          string         `json:"subject,omitempty"`
	ReferenceNumbers []string       `json:"reference_numbers,omitempty"`
	Amount           *float64       `json:"amount,omitempty"`
	AmountsDetail    []AmountDetail `json:"amounts_detail,omitempty"`
	Deadline         string         `json:"deadline,omitempty"` // YYYY-MM-DD
	Urgency          string         `json:"urgency,omitempty"`
	SummaryEN        string         `json:"summary_en,omitempty"`
	RecommendationEN string         `json:"recommendation_en,omitempty"`
	ActionItems      []ActionItem   `json:"action_items,omitempty"`
	FullTextDE       string         `json:"full_text_de,omitempty"`
	KeyTermsDE       []string       `json:"key_terms_de,omitempty"`
	LetterType       string         `json:"letter_type,omitempty"`

	ParseFailed bool   `json:"parse_failed,omitempty"`
	Raw         string `json:"raw_response,omitempty"`
}

// LinkDecision is the parsed issue-linking model response.
type LinkDecision struct {
	IssueID    *int64  `json:"issue_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// PageAnalyzer sends exactly one page image per call and returns the raw
// text response. It does not interpret JSON.
type PageAnalyzer interface {
	AnalyzePage(ctx context.Context, jpeg []byte) (string, error)
}

// IssueMatcher asks a cheaper model to match a new document against a
// textual listing of candidate issues.
type IssueMatcher interface {
	LinkIssues(ctx context.Context, prompt string) (string, error)
}
