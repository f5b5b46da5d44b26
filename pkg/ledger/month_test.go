package ledger

import "testing"

func TestParseMonth(t *testing.T) {
	if _, err := ParseMonth("2025-04"); err != nil {
		t.Fatalf("valid month rejected: %v", err)
	}
	for _, bad := range []string{"2025-4", "2025-13", "202504", "2025-04-01", "april", ""} {
		if _, err := ParseMonth(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestMonthPrevNextYearBoundary(t *testing.T) {
	if got := Month("2025-01").Prev(); got != "2024-12" {
		t.Fatalf("prev of 2025-01 = %s", got)
	}
	if got := Month("2024-12").Next(); got != "2025-01" {
		t.Fatalf("next of 2024-12 = %s", got)
	}
}

func TestMonthBefore(t *testing.T) {
	if !Month("2025-02").Before("2025-03") {
		t.Fatalf("2025-02 should sort before 2025-03")
	}
	if Month("2025-10").Before("2025-09") {
		t.Fatalf("2025-10 should not sort before 2025-09")
	}
}
