package constants

// LetterType classifies a document's communicative role within a matter.
type LetterType string

const (
	LetterOriginal     LetterType = "original"
	LetterReminder     LetterType = "reminder"
	LetterFinalNotice  LetterType = "final_notice"
	LetterReceipt      LetterType = "receipt"
	LetterConfirmation LetterType = "confirmation"
	LetterInformation  LetterType = "information"
	LetterOther        LetterType = "other"
)

var allLetterTypes = []LetterType{
	LetterOriginal, LetterReminder, LetterFinalNotice, LetterReceipt,
	LetterConfirmation, LetterInformation, LetterOther,
}

// LetterTypes returns the allowed letter_type values in prompt order.
func LetterTypes() []string {
	out := make([]string, len(allLetterTypes))
	for i, t := range allLetterTypes {
		out[i] = string(t)
	}
	return out
}

// IsLetterType reports whether s is a known letter_type value.
func IsLetterType(s string) bool {
	for _, t := range allLetterTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}
