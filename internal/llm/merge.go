package llm

import (
	"strings"

	"github.com/mkessler/pflegedocs/constants"
)

// PageBreakMarker separates per-page transcriptions in a merged document.
const PageBreakMarker = "\n\n--- PAGE BREAK ---\n\n"

// MergePages combines per-page extraction results for one document into a
// single logical record. A single page passes through unchanged. For
// multi-page documents the scalar fields come from page 1; transcriptions
// concatenate in page order with an explicit page-break marker; action
// items and amount line-items concatenate without dedup (duplicates across
// pages are distinct entries); reference numbers and key terms dedup
// preserving first occurrence; the most severe urgency across pages wins.
func MergePages(pages []PageResult) PageResult {
	if len(pages) == 0 {
		return PageResult{ParseFailed: true}
	}
	if len(pages) == 1 {
		return pages[0]
	}

	// All pages unparseable: keep the raws together for diagnostics.
	if allFailed(pages) {
		raws := make([]string, 0, len(pages))
		for _, p := range pages {
			raws = append(raws, p.Raw)
		}
		return PageResult{ParseFailed: true, Raw: strings.Join(raws, PageBreakMarker)}
	}

	merged := make(map[string]any, len(pages[0].Fields))
	for k, v := range pages[0].Fields {
		merged[k] = v
	}

	var texts []string
	var actions, amounts []any
	var refs, terms []string
	urgencies := make([]string, 0, len(pages))

	for _, p := range pages {
		if p.ParseFailed {
			continue
		}
		if t, ok := p.Fields["full_text_de"].(string); ok && t != "" {
			texts = append(texts, t)
		}
		actions = append(actions, anyList(p.Fields, "action_items")...)
		amounts = append(amounts, anyList(p.Fields, "amounts_detail")...)
		refs = append(refs, stringList(p.Fields, "reference_numbers")...)
		terms = append(terms, stringList(p.Fields, "key_terms_de")...)
		// A page without an urgency still counts as "normal" in the
		// severity merge.
		u, _ := p.Fields["urgency"].(string)
		if u == "" {
			u = string(constants.UrgencyNormal)
		}
		urgencies = append(urgencies, u)
	}

	merged["full_text_de"] = strings.Join(texts, PageBreakMarker)
	merged["action_items"] = actions
	merged["amounts_detail"] = amounts
	merged["reference_numbers"] = toAnyList(dedupe(refs))
	merged["key_terms_de"] = toAnyList(dedupe(terms))
	merged["urgency"] = constants.MostSevere(urgencies)

	// Page 1 may miss the total while line items carry it.
	if !hasAmount(merged) && len(amounts) > 0 {
		var sum float64
		for _, a := range amounts {
			if item, ok := a.(map[string]any); ok {
				if f, ok := coerceFloat(item["amount"]); ok {
					sum += f
				}
			}
		}
		merged["amount"] = sum
	}

	return PageResult{Fields: merged}
}

func allFailed(pages []PageResult) bool {
	for _, p := range pages {
		if !p.ParseFailed {
			return false
		}
	}
	return true
}

func anyList(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

func stringList(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func hasAmount(m map[string]any) bool {
	f, ok := coerceFloat(m["amount"])
	return ok && f != 0
}
