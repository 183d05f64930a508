package llm

import (
	"fmt"
	"strings"

	"github.com/mkessler/pflegedocs/constants"
)

// BuildSystemPrompt composes the fixed system instruction for per-page
// extraction: target schema, enum sets, language and formatting rules.
func BuildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a document analysis assistant for German elder care (Altenpflege) documents.
The user manages care for an elderly parent in Germany.

You will receive a scanned image of a German document. Return ONLY valid JSON - no markdown fences, no explanation.

All summaries, recommendations, and action items must be in English.
Dates: YYYY-MM-DD format.
Amounts: numeric, no currency symbol (EUR implied).

Required JSON structure:
{
  "doc_type": "one of: `)
	b.WriteString(strings.Join(constants.DocTypes(), ", "))
	b.WriteString(`",
  "doc_date": "YYYY-MM-DD or null",
  "sender": "Organization or person who sent this",
  "subject": "Brief subject line in English",
  "reference_numbers": ["any case/invoice/account numbers found"],
  "amount": 1234.56,
  "amounts_detail": [
    {"label": "Description", "amount": 123.45}
  ],
  "deadline": "YYYY-MM-DD or null",
  "urgency": "`)
	b.WriteString(strings.Join(constants.Urgencies(), "/"))
	b.WriteString(`",
  "summary_en": "Clear English summary (100-200 words): what is this, why sent, what action needed, consequences if ignored.",
  "recommendation_en": "Specific actionable recommendation in English.",
  "action_items": [
    {"action": "Specific action in English", "deadline": "YYYY-MM-DD or null"}
  ],
  "full_text_de": "Complete German text transcription from the document.",
  "key_terms_de": ["important German terms found"],
  "letter_type": "`)
	b.WriteString(strings.Join(constants.LetterTypes(), "/"))
	b.WriteString(`"
}

Urgency rules:
- critical: deadline within 7 days OR legal/financial consequence mentioned
- high: deadline within 30 days
- normal: no urgent deadline but action needed
- low: informational only, no action required

letter_type helps with timeline grouping:
- original: first letter about a matter
- reminder: Mahnung, Erinnerung, follow-up
- final_notice: letzte Mahnung, Androhung, legal threat
- receipt: Quittung, Zahlungsbestaetigung
- confirmation: Bestaetigung, Zusage
- information: pure info, no action needed`)
	return b.String()
}

// UserPrompt is the fixed per-page user instruction.
const UserPrompt = `Analyze this scanned German document. Extract all information per the JSON structure.
If a field cannot be determined, use null.
For amounts_detail, list every line item you can read.
For full_text_de, transcribe all readable German text.
Be precise with dates, amounts, and reference numbers.`

// IssueSummary is the compact issue description used in the linking prompt.
type IssueSummary struct {
	ID         int64
	Title      string
	Sender     string
	RefNumber  string
	Category   string
	FirstSeen  string
	LatestDate string
	Status     string
	DocCount   int
}

// BuildLinkPrompt composes the issue-linking instruction from the new
// document's metadata and a listing of candidate issues.
func BuildLinkPrompt(doc Extraction, issues []IssueSummary) string {
	refs := "none"
	if len(doc.ReferenceNumbers) > 0 {
		refs = strings.Join(doc.ReferenceNumbers, ", ")
	}

	var list strings.Builder
	for _, iss := range issues {
		fmt.Fprintf(&list,
			"- Issue #%d: %s | sender: %s | ref: %s | category: %s | dates: %s to %s | %d docs | status: %s\n",
			iss.ID, iss.Title, iss.Sender, iss.RefNumber, iss.Category,
			iss.FirstSeen, iss.LatestDate, iss.DocCount, iss.Status)
	}

	return fmt.Sprintf(`You are matching a newly processed document to existing issues (groups of related documents about the same matter).

New document:
- Sender: %s
- Subject: %s
- Date: %s
- Type: %s
- Reference numbers: %s
- Letter type: %s

Existing issues:
%s
Does this document belong to an existing issue? Consider:
- Same sender + same/similar reference number = strong match
- Same sender + same topic/subject + overlapping time period = likely match
- Different sender but same reference number = possible match (e.g., insurance reply to original invoice)

Return ONLY valid JSON:
{"issue_id": <int or null>, "confidence": <0.0-1.0>, "reason": "brief explanation"}

Return issue_id=null if this is a new matter.`,
		orUnknown(doc.Sender), orUnknown(doc.Subject), orUnknown(doc.DocDate),
		orUnknown(doc.DocType), refs, orUnknown(doc.LetterType), list.String())
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
