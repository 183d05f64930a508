package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reFenceOpen  = regexp.MustCompile("^```(?:json)?\\s*\n?")
	reFenceClose = regexp.MustCompile("\n?```\\s*$")
)

// ParseResponse recovers a JSON object from a model text response despite
// formatting noise. It never fails: when no object can be recovered it
// returns a parse-failure result carrying the original text.
func ParseResponse(text string) PageResult {
	text = strings.TrimSpace(text)

	// Try direct parse.
	if m, ok := tryUnmarshal(text); ok {
		return PageResult{Fields: m}
	}

	// Strip markdown fences.
	stripped := reFenceOpen.ReplaceAllString(text, "")
	stripped = reFenceClose.ReplaceAllString(stripped, "")
	if m, ok := tryUnmarshal(strings.TrimSpace(stripped)); ok {
		return PageResult{Fields: m}
	}

	// Find first balanced {...} block.
	if block, ok := findJSONObject(text); ok {
		if m, ok := tryUnmarshal(block); ok {
			return PageResult{Fields: m}
		}
	}

	return PageResult{ParseFailed: true, Raw: text}
}

// ParseLinkResponse parses an issue-linking response. A parse failure
// normalizes to "no match, zero confidence" rather than an error.
func ParseLinkResponse(text string) LinkDecision {
	res := ParseResponse(text)
	if res.ParseFailed {
		return LinkDecision{Confidence: 0, Reason: "parse error"}
	}

	var d LinkDecision
	if id, ok := res.Fields["issue_id"].(float64); ok {
		v := int64(id)
		d.IssueID = &v
	}
	if c, ok := res.Fields["confidence"].(float64); ok {
		d.Confidence = c
	}
	if r, ok := res.Fields["reason"].(string); ok {
		d.Reason = r
	}
	return d
}

func tryUnmarshal(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

// findJSONObject locates the first top-level balanced {...} block using
// brace-depth counting. Braces inside quoted strings are ignored by
// tracking an in-string flag with escape lookahead.
func findJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inStr := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		switch {
		case c == '\\' && inStr:
			escape = true
		case c == '"':
			inStr = !inStr
		case inStr:
			// nothing
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
