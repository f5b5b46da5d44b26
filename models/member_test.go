package models

import "testing"

func TestMemberEligibilityWindow(t *testing.T) {
	m := Member{ActiveFrom: "2025-03", ArchiveFrom: "2025-06"}
	cases := []struct {
		month string
		want  bool
	}{
		{"2025-02", false}, // before joining
		{"2025-03", true},
		{"2025-05", true},
		{"2025-06", false}, // archive month is exclusive
		{"2025-07", false},
	}
	for _, c := range cases {
		if got := m.EligibleFor(c.month); got != c.want {
			t.Fatalf("EligibleFor(%s) = %v, want %v", c.month, got, c.want)
		}
	}
}

func TestMemberEligibilityOpenEnded(t *testing.T) {
	m := Member{ActiveFrom: "2024-11"}
	if !m.EligibleFor("2030-01") {
		t.Fatalf("member without archive month should stay eligible")
	}
	if m.EligibleFor("2024-10") {
		t.Fatalf("member should not be eligible before activeFrom")
	}
}
