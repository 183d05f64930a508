package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mkessler/pflegedocs/constants"
)

var requiredFields = []string{"doc_type", "sender", "summary_en"}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// letterTypeFallback maps German keyword groups to a letter type, evaluated
// top to bottom against the lower-cased transcription; first match wins.
// Kept data-driven so the table is testable on its own.
var letterTypeFallback = []struct {
	keywords []string
	letter   constants.LetterType
}{
	{[]string{"letzte mahnung", "androhung", "zwangsvollstreckung"}, constants.LetterFinalNotice},
	{[]string{"mahnung", "erinnerung", "zahlungserinnerung"}, constants.LetterReminder},
	{[]string{"quittung", "zahlungsbestätigung"}, constants.LetterReceipt},
	{[]string{"bestätigung", "bescheinigung", "zusage"}, constants.LetterConfirmation},
}

// ClassifyLetterType scans a lower-cased German transcription against the
// fallback keyword table. Returns false when no group matches.
func ClassifyLetterType(textDE string) (constants.LetterType, bool) {
	lower := strings.ToLower(textDE)
	for _, rule := range letterTypeFallback {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.letter, true
			}
		}
	}
	return "", false
}

// Validate enforces schema invariants on a parsed extraction: enum coercion
// with warned fallbacks, strict date format checks, amount coercion, list
// shape enforcement and keyword-based letter-type fallback. It is total:
// for any input it returns a usable Extraction plus human-readable warnings
// (empty if clean). Parse-failure results bypass all rules.
func Validate(res PageResult) (Extraction, []string) {
	if res.ParseFailed {
		return Extraction{
			ParseFailed: true,
			Raw:         res.Raw,
			Urgency:     string(constants.UrgencyNormal),
		}, nil
	}

	m := res.Fields
	warnings := make([]string, 0, 4)

	if w, bad := shapeWarning(m); bad {
		warnings = append(warnings, w)
	}

	for _, field := range requiredFields {
		if s, _ := m[field].(string); strings.TrimSpace(s) == "" {
			warnings = append(warnings, "missing required field: "+field)
		}
	}

	out := Extraction{
		DocType:          getString(m, "doc_type"),
		DocDate:          getString(m, "doc_date"),
		Sender:           getString(m, "sender"),
		Subject:          getString(m, "subject"),
		ReferenceNumbers: getStringList(m, "reference_numbers"),
		Deadline:         getString(m, "deadline"),
		Urgency:          getString(m, "urgency"),
		SummaryEN:        getString(m, "summary_en"),
		RecommendationEN: getString(m, "recommendation_en"),
		FullTextDE:       getString(m, "full_text_de"),
		KeyTermsDE:       getStringList(m, "key_terms_de"),
		LetterType:       getString(m, "letter_type"),
	}

	// Enum coercion with warned fallbacks.
	if out.DocType != "" && !constants.IsDocType(out.DocType) {
		warnings = append(warnings, fmt.Sprintf("unknown doc_type %q, defaulting to %q", out.DocType, constants.DocTypeOther))
		out.DocType = string(constants.DocTypeOther)
	}
	if out.Urgency == "" {
		out.Urgency = string(constants.UrgencyNormal)
	} else if !constants.IsUrgency(out.Urgency) {
		warnings = append(warnings, fmt.Sprintf("unknown urgency %q, defaulting to %q", out.Urgency, constants.UrgencyNormal))
		out.Urgency = string(constants.UrgencyNormal)
	}
	if out.LetterType != "" && !constants.IsLetterType(out.LetterType) {
		warnings = append(warnings, fmt.Sprintf("unknown letter_type %q, defaulting to %q", out.LetterType, constants.LetterOther))
		out.LetterType = string(constants.LetterOther)
	}

	// Amount: coerce to float, warn and null anything non-coercible.
	if v, present := m["amount"]; present && v != nil {
		if f, ok := coerceFloat(v); ok {
			out.Amount = &f
		} else {
			warnings = append(warnings, fmt.Sprintf("non-numeric amount %v, setting to null", v))
		}
	}

	// Dates must match YYYY-MM-DD exactly; no best-effort reparsing.
	if out.DocDate != "" && !dateRe.MatchString(out.DocDate) {
		warnings = append(warnings, fmt.Sprintf("invalid date format for doc_date: %q", out.DocDate))
		out.DocDate = ""
	}
	if out.Deadline != "" && !dateRe.MatchString(out.Deadline) {
		warnings = append(warnings, fmt.Sprintf("invalid date format for deadline: %q", out.Deadline))
		out.Deadline = ""
	}

	out.ActionItems = getActionItems(m)
	out.AmountsDetail = getAmountsDetail(m)

	// Keyword fallback when the model could not classify the letter.
	if out.LetterType == "" || out.LetterType == string(constants.LetterOther) {
		if lt, ok := ClassifyLetterType(out.FullTextDE); ok {
			out.LetterType = string(lt)
		}
	}

	return out, warnings
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func getStringList(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func getActionItems(m map[string]any) []ActionItem {
	raw, ok := m["action_items"].([]any)
	if !ok {
		return []ActionItem{}
	}
	out := make([]ActionItem, 0, len(raw))
	for _, v := range raw {
		item, ok := v.(map[string]any)
		if !ok {
			continue
		}
		a := ActionItem{Action: getString(item, "action")}
		if d := getString(item, "deadline"); dateRe.MatchString(d) {
			a.Deadline = d
		}
		if a.Action != "" {
			out = append(out, a)
		}
	}
	return out
}

func getAmountsDetail(m map[string]any) []AmountDetail {
	raw, ok := m["amounts_detail"].([]any)
	if !ok {
		return []AmountDetail{}
	}
	out := make([]AmountDetail, 0, len(raw))
	for _, v := range raw {
		item, ok := v.(map[string]any)
		if !ok {
			continue
		}
		d := AmountDetail{Label: getString(item, "label")}
		if f, ok := coerceFloat(item["amount"]); ok {
			d.Amount = f
		}
		out = append(out, d)
	}
	return out
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
