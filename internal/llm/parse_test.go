package llm

import "testing"

func TestParseResponseDirectJSON(t *testing.T) {
	res := ParseResponse(`{"doc_type": "invoice", "amount": 12.5}`)
	if res.ParseFailed {
		t.Fatalf("ParseFailed on clean JSON: %+v", res)
	}
	if res.Fields["doc_type"] != "invoice" {
		t.Errorf("doc_type = %v", res.Fields["doc_type"])
	}
}

func TestParseResponseStripsFences(t *testing.T) {
	for _, text := range []string{
		"```json\n{\"doc_type\": \"invoice\"}\n```",
		"```\n{\"doc_type\": \"invoice\"}\n```",
	} {
		res := ParseResponse(text)
		if res.ParseFailed {
			t.Errorf("ParseFailed on fenced JSON %q", text)
			continue
		}
		if res.Fields["doc_type"] != "invoice" {
			t.Errorf("doc_type = %v for %q", res.Fields["doc_type"], text)
		}
	}
}

func TestParseResponseExtractsEmbeddedObject(t *testing.T) {
	text := `Here is the extraction you asked for:
{"doc_type": "invoice", "subject": "Rechnung {Mai}", "note": "a \" quote"}
Let me know if you need anything else.`
	res := ParseResponse(text)
	if res.ParseFailed {
		t.Fatalf("ParseFailed on embedded object")
	}
	if res.Fields["subject"] != "Rechnung {Mai}" {
		t.Errorf("braces inside strings mishandled: %v", res.Fields["subject"])
	}
}

func TestParseResponseFailureKeepsRaw(t *testing.T) {
	text := "I cannot read this document, it is too blurry."
	res := ParseResponse(text)
	if !res.ParseFailed {
		t.Fatal("expected parse failure")
	}
	if res.Raw != text {
		t.Errorf("Raw = %q", res.Raw)
	}
	if res.Fields != nil {
		t.Errorf("failure result carries fields: %v", res.Fields)
	}
}

func TestParseLinkResponse(t *testing.T) {
	d := ParseLinkResponse(`{"issue_id": 7, "confidence": 0.8, "reason": "same ref"}`)
	if d.IssueID == nil || *d.IssueID != 7 || d.Confidence != 0.8 {
		t.Errorf("decision = %+v", d)
	}

	d = ParseLinkResponse(`{"issue_id": null, "confidence": 0.2, "reason": "new matter"}`)
	if d.IssueID != nil {
		t.Errorf("null issue_id parsed as %v", *d.IssueID)
	}

	d = ParseLinkResponse("not json at all")
	if d.IssueID != nil || d.Confidence != 0 || d.Reason != "parse error" {
		t.Errorf("parse failure decision = %+v", d)
	}
}
