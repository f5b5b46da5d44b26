package ledger

import "messbook/models"

// ComputeCarryforward builds the carryforward rows for a month from its
// member balances and the prior month's entries. The prior net (awes minus
// dues) is applied explicitly so credit and debt chain across months instead
// of being recomputed from zero:
//
//	net  = given + priorNet - eaten
//	dues = max(0, -net)
//	awes = max(0, net)
//
// Balances must already be restricted to members eligible for the month, so
// a member archived before it never appears in its carryforward table.
func ComputeCarryforward(month Month, balances []models.MemberMonthBalance, prior []models.CarryforwardEntry) []models.CarryforwardEntry {
	priorNet := make(map[uint]int64, len(prior))
	for _, p := range prior {
		priorNet[p.MemberID] = p.AwesCents - p.DuesCents
	}

	entries := make([]models.CarryforwardEntry, 0, len(balances))
	for _, b := range balances {
		net := b.ContributionCents + priorNet[b.MemberID] - b.ConsumptionCents
		e := models.CarryforwardEntry{
			Month:         month.String(),
			MemberID:      b.MemberID,
			GivenCents:    b.ContributionCents,
			EatenCents:    b.ConsumptionCents,
			PriorNetCents: priorNet[b.MemberID],
		}
		if net < 0 {
			e.DuesCents = -net
		} else {
			e.AwesCents = net
		}
		entries = append(entries, e)
	}
	return entries
}
