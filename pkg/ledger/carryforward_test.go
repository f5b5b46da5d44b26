package ledger

import (
	"testing"

	"messbook/models"
)

func TestCarryforwardSigns(t *testing.T) {
	balances := []models.MemberMonthBalance{
		{Month: "2025-04", MemberID: 1, ContributionCents: 50000, ConsumptionCents: 30000, BalanceCents: 20000},
		{Month: "2025-04", MemberID: 2, ContributionCents: 30000, ConsumptionCents: 50000, BalanceCents: -20000},
	}
	entries := ComputeCarryforward("2025-04", balances, nil)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].AwesCents != 20000 || entries[0].DuesCents != 0 {
		t.Fatalf("creditor member: awes=%d dues=%d, want 20000/0", entries[0].AwesCents, entries[0].DuesCents)
	}
	if entries[1].DuesCents != 20000 || entries[1].AwesCents != 0 {
		t.Fatalf("owing member: awes=%d dues=%d, want 0/20000", entries[1].AwesCents, entries[1].DuesCents)
	}
}

func TestCarryforwardChainsPriorNet(t *testing.T) {
	// Member 1 carries 5000 credit in, member 2 carries 5000 debt in.
	prior := []models.CarryforwardEntry{
		{Month: "2025-03", MemberID: 1, AwesCents: 5000},
		{Month: "2025-03", MemberID: 2, DuesCents: 5000},
	}
	balances := []models.MemberMonthBalance{
		{Month: "2025-04", MemberID: 1, ContributionCents: 10000, ConsumptionCents: 12000},
		{Month: "2025-04", MemberID: 2, ContributionCents: 10000, ConsumptionCents: 8000},
	}
	entries := ComputeCarryforward("2025-04", balances, prior)
	// 10000 + 5000 - 12000 = 3000 credit
	if entries[0].PriorNetCents != 5000 || entries[0].AwesCents != 3000 || entries[0].DuesCents != 0 {
		t.Fatalf("member 1: %+v", entries[0])
	}
	// 10000 - 5000 - 8000 = -3000 -> dues
	if entries[1].PriorNetCents != -5000 || entries[1].DuesCents != 3000 || entries[1].AwesCents != 0 {
		t.Fatalf("member 2: %+v", entries[1])
	}
}

func TestCarryforwardOnlyListedMembers(t *testing.T) {
	// A member archived before the month has no balance row and must not
	// appear even if an old carryforward entry exists.
	prior := []models.CarryforwardEntry{{Month: "2025-03", MemberID: 9, AwesCents: 7000}}
	balances := []models.MemberMonthBalance{{Month: "2025-04", MemberID: 1, ContributionCents: 100, ConsumptionCents: 100}}
	entries := ComputeCarryforward("2025-04", balances, prior)
	if len(entries) != 1 || entries[0].MemberID != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].DuesCents != 0 || entries[0].AwesCents != 0 {
		t.Fatalf("settled member should carry nothing: %+v", entries[0])
	}
}
