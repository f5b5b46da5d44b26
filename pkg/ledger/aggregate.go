package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"messbook/models"
)

// MonthEvents is the raw event input for one month's aggregation: the
// expenses recorded for the month, the dues that have been resolved (keyed
// by expense id), and per-member meal counts and contributions.
type MonthEvents struct {
	Expenses        []models.Expense
	ResolvedDues    map[uint]bool // expense id -> due resolved
	MealsByMember   map[uint]int64
	ContribByMember map[uint]int64
}

// SumSpendings totals the month's expenses. Pay-later expenses are excluded
// until their due is resolved: money the fund has not paid out must not
// inflate the meal rate.
func SumSpendings(expenses []models.Expense, resolvedDues map[uint]bool) int64 {
	var total int64
	for _, e := range expenses {
		if e.PayLater && !resolvedDues[e.ID] {
			continue
		}
		total += e.AmountCents
	}
	return total
}

// AggregateMonth turns one month's events into its summary and per-member
// balances. members must already be filtered to those eligible for the
// month; balances come back ordered by member id.
//
// The meal rate is cents per meal. It is rounded to 2 decimal places for
// the stored summary, but each member's consumption is computed from the
// unrounded rate so rounding error does not compound across members;
// consumption itself is rounded to whole cents only at the end.
func AggregateMonth(month Month, members []models.Member, ev MonthEvents) (models.MonthlySummary, []models.MemberMonthBalance) {
	totalSpendings := SumSpendings(ev.Expenses, ev.ResolvedDues)

	var totalMeals int64
	for _, m := range members {
		totalMeals += ev.MealsByMember[m.ID]
	}

	rate := decimal.Zero
	if totalMeals > 0 {
		rate = decimal.NewFromInt(totalSpendings).Div(decimal.NewFromInt(totalMeals))
	}

	summary := models.MonthlySummary{
		Month:               month.String(),
		TotalMeals:          totalMeals,
		TotalSpendingsCents: totalSpendings,
		MealRate:            rate.Round(2),
	}

	balances := make([]models.MemberMonthBalance, 0, len(members))
	for _, m := range members {
		meals := ev.MealsByMember[m.ID]
		contribution := ev.ContribByMember[m.ID] // missing record defaults to 0
		consumption := rate.Mul(decimal.NewFromInt(meals)).Round(0).IntPart()
		balances = append(balances, models.MemberMonthBalance{
			Month:             month.String(),
			MemberID:          m.ID,
			ContributionCents: contribution,
			ConsumptionCents:  consumption,
			BalanceCents:      contribution - consumption,
		})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].MemberID < balances[j].MemberID })
	return summary, balances
}
