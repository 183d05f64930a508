package llm

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildExtractionSchema returns a deliberately lenient JSON-Schema for the
// extraction object as a generic map: types only, no required fields and no
// value patterns. The validator coerces and warns field by field; this
// schema only flags gross shape problems.
func BuildExtractionSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"doc_type":          str,
			"doc_date":          str,
			"sender":            str,
			"subject":           str,
			"reference_numbers": map[string]any{"type": "array", "items": str},
			"amount":            map[string]any{"type": "number"},
			"amounts_detail": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label":  str,
						"amount": map[string]any{"type": "number"},
					},
				},
			},
			"deadline":          str,
			"urgency":           str,
			"summary_en":        str,
			"recommendation_en": str,
			"action_items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action":   str,
						"deadline": str,
					},
				},
			},
			"full_text_de": str,
			"key_terms_de": map[string]any{"type": "array", "items": str},
			"letter_type":  str,
		},
	}
}

var extractionSchema = mustCompile(BuildExtractionSchema())

func mustCompile(m map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("extraction.json", strings.NewReader(string(b))); err != nil {
		panic(err)
	}
	return c.MustCompile("extraction.json")
}

// shapeWarning validates a raw field map against the extraction schema and
// returns a single warning string when it does not conform. Never blocks:
// the caller records the warning and proceeds with coercion.
func shapeWarning(fields map[string]any) (string, bool) {
	if err := extractionSchema.Validate(map[string]any(fields)); err != nil {
		msg := err.Error()
		if i := strings.IndexByte(msg, '\n'); i > 0 {
			msg = msg[:i]
		}
		return "response shape: " + msg, true
	}
	return "", false
}
