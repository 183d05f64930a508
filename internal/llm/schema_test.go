package llm

import (
	"strings"
	"testing"
)

func TestShapeWarningCleanMap(t *testing.T) {
	if w, bad := shapeWarning(fields(nil)); bad {
		t.Errorf("clean map flagged: %q", w)
	}
}

func TestShapeWarningWrongTypes(t *testing.T) {
	w, bad := shapeWarning(map[string]any{"reference_numbers": "RE-1"})
	if !bad {
		t.Fatal("string where an array is expected was not flagged")
	}
	if !strings.HasPrefix(w, "response shape: ") {
		t.Errorf("warning = %q", w)
	}
	if strings.Contains(w, "\n") {
		t.Errorf("warning spans multiple lines: %q", w)
	}
}

func TestShapeWarningIgnoresExtraFields(t *testing.T) {
	if w, bad := shapeWarning(fields(map[string]any{"model_notes": "extra"})); bad {
		t.Errorf("additional property flagged: %q", w)
	}
}
