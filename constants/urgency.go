package constants

// Urgency is the severity ranking driving sort order and escalation.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyNormal   Urgency = "normal"
	UrgencyLow      Urgency = "low"
)

// urgencyRank orders urgencies by severity; lower rank is more severe.
var urgencyRank = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyNormal:   2,
	UrgencyLow:      3,
}

// UrgencyRank returns the severity rank for u. Unknown values rank after
// every known urgency so they never win an escalation.
func UrgencyRank(u string) int {
	if r, ok := urgencyRank[Urgency(u)]; ok {
		return r
	}
	return len(urgencyRank)
}

// IsUrgency reports whether s is a known urgency value.
func IsUrgency(s string) bool {
	_, ok := urgencyRank[Urgency(s)]
	return ok
}

// Urgencies returns the allowed urgency values from most to least severe.
func Urgencies() []string {
	return []string{
		string(UrgencyCritical), string(UrgencyHigh),
		string(UrgencyNormal), string(UrgencyLow),
	}
}

// MostSevere returns the most severe of the given urgencies, or "normal"
// when the list is empty or contains only unknown values.
func MostSevere(urgencies []string) string {
	best := ""
	bestRank := len(urgencyRank) + 1
	for _, u := range urgencies {
		if r := UrgencyRank(u); r < bestRank {
			best = u
			bestRank = r
		}
	}
	if best == "" || bestRank >= len(urgencyRank) {
		return string(UrgencyNormal)
	}
	return best
}
