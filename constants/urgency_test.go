package constants

import "testing"

func TestMostSevere(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, "normal"},
		{[]string{"low"}, "low"},
		{[]string{"low", "critical", "normal"}, "critical"},
		{[]string{"normal", "high"}, "high"},
		{[]string{"made-up", "low"}, "low"},
	}
	for _, c := range cases {
		if got := MostSevere(c.in); got != c.want {
			t.Errorf("MostSevere(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestUrgencyRankOrdering(t *testing.T) {
	if !(UrgencyRank("critical") < UrgencyRank("high") &&
		UrgencyRank("high") < UrgencyRank("normal") &&
		UrgencyRank("normal") < UrgencyRank("low")) {
		t.Error("urgency ranks out of order")
	}
}

func TestIsAllowedFile(t *testing.T) {
	cases := map[string]bool{
		"scan.pdf":  true,
		"SCAN.PDF":  true,
		"photo.jpg": false,
		"noext":     false,
	}
	for name, want := range cases {
		if got := IsAllowedFile(name); got != want {
			t.Errorf("IsAllowedFile(%q) = %v, want %v", name, got, want)
		}
	}
}
