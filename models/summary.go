package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlySummary is the derived month aggregate and the single source of
// truth for the meal rate. It is recomputed and persisted together with the
// member balances whenever either total changes; Version guards against
// concurrent recomputations.
type MonthlySummary struct {
	ID                  uint            `gorm:"primaryKey" json:"-"`
	CreatedAt           time.Time       `json:"-"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Month               string          `gorm:"size:7;not null;uniqueIndex" json:"month"`
	TotalMeals          int64           `gorm:"not null" json:"total_meals"`
	TotalSpendingsCents int64           `gorm:"not null" json:"total_spendings_cents"`
	// MealRate is cents per meal, rounded to 2 decimal places. Zero when the
	// month has no meals.
	MealRate decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"meal_rate"`
	Version  int64           `gorm:"not null;default:0" json:"-"`
}

// MemberMonthBalance is one member's derived contribution-vs-consumption row
// for a month. BalanceCents = ContributionCents - ConsumptionCents.
type MemberMonthBalance struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
	Month             string    `gorm:"size:7;not null;index;uniqueIndex:idx_balance_month_member" json:"month"`
	MemberID          uint      `gorm:"not null;uniqueIndex:idx_balance_month_member" json:"member_id"`
	ContributionCents int64     `gorm:"not null" json:"contribution_cents"`
	ConsumptionCents  int64     `gorm:"not null" json:"consumption_cents"`
	BalanceCents      int64     `gorm:"not null" json:"balance_cents"`
}

// CarryforwardEntry rolls a member's month result into the next month.
// PriorNetCents is the previous entry's awes-dues (0 with no prior entry);
// the chain is applied explicitly rather than recomputed from zero:
//
//	net  = given + priorNet - eaten
//	dues = max(0, -net), awes = max(0, net)
type CarryforwardEntry struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
	Month         string    `gorm:"size:7;not null;index;uniqueIndex:idx_carry_month_member" json:"month"`
	MemberID      uint      `gorm:"not null;uniqueIndex:idx_carry_month_member" json:"member_id"`
	GivenCents    int64     `gorm:"not null" json:"given_cents"`
	EatenCents    int64     `gorm:"not null" json:"eaten_cents"`
	PriorNetCents int64     `gorm:"not null" json:"prior_net_cents"`
	DuesCents     int64     `gorm:"not null" json:"dues_cents"`
	AwesCents     int64     `gorm:"not null" json:"awes_cents"`
}
